// Package trigger は、フォトブース筐体の物理ボタンとフラッシュライトをGPIOで扱います。
//
// ボタンを押すと画面に応じて「はじめる」「撮影する」「もう一度」のいずれかを実行し、
// フラッシュイベントに合わせてライトを点灯します。
// Raspberry Pi 以外の環境ではモックドライバーを使います。
package trigger
