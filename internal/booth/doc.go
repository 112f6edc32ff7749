// Package booth はフォトブースの撮影セッションを実装する
//
// # 責務
// - 撮影フレームの変換（左右反転・モノクロ）
// - カウントダウン・フラッシュ・撮影・待機を繰り返すタイマー駆動のステートマシン
// - 撮影済みフレームの保持
// - フレームを縦に並べたフィルムストリップ画像の合成
// - ランディング → 撮影 → 印刷中 → 結果 の画面遷移の管理
//
// # 仕様
// - 1セッションの撮影枚数は4枚固定
// - 撮影は必ず直列に行い、前のフレームが保存されるまで次のカウントダウンは始まらない
// - 合成は全フレームのデコードに成功した場合のみ行う（部分的なストリップは作らない）
// - 各状態遷移は Event としてオブザーバーに通知される
// - 待ち時間はすべて Clock 経由で行うため、テストでは即時に進められる
package booth
