// Package camera 撮影セッションにライブ映像を提供する
//
// # 責務
// - カメラデバイスの検出
// - セッション単位でのデバイスの確保と解放
// - V4L2デバイスまたはテストパターンからのフレーム取得
// - 最新フレームの保持とデコード
//
// # 仕様
// - Manager: RequestAccess でデバイスを確保し Stream を返す
// - Discovery: /dev/video* の検出・実名取得
// - VideoSource: ffmpeg経由の連続キャプチャ（usb_camera / test_pattern）
// - 起動できない場合は ErrDeviceUnavailable を返す。リトライはしない
//
// # 前提要件
//   - v4l-utils: カメラ名の取得とデバイス制御に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
