// Package server は、フォトブースの画面とAPIを配信するHTTPサーバーです。
//
// 責務:
//   - 4つの画面（入口、撮影、印刷中、完成）を持つページの配信
//   - セッション操作API（入場、撮影開始、フィルター切り替え、やり直し）
//   - Server-Sent Events によるセッションイベントの配信
//   - MJPEGによるライブプレビュー
//   - フィルムストリップPNGのダウンロード
//
// 仕様:
//   - ルーティングは gin を使用
//   - 撮影シーケンスはリクエストとは独立して実行し、シャットダウン時のみ中断する
//   - グレースフルシャットダウンに対応
package server
