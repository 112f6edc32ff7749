// Command photobooth はフォトブースのWebサーバーと補助コマンドを提供します。
//
//	photobooth serve    ブラウザ向けのフォトブースを起動する
//	photobooth shoot    画面なしで4枚撮影してストリップを保存する
//	photobooth devices  接続されているカメラを一覧表示する
//	photobooth config   読み込まれた設定を表示する
package main
