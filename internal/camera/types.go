package camera

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceUnavailable はカメラが利用できない（デバイスが無い、権限が無い、起動に失敗した）ことを表す
var ErrDeviceUnavailable = errors.New("カメラデバイスが利用できません")

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // カメラは停止中
	StatusActive   Status = "active"   // カメラは動作中
	StatusError    Status = "error"    // カメラでエラーが発生
)

// Constraints はカメラアクセス時に希望する条件
// 実際の解像度はデバイスとのネゴシエーションで決まる
type Constraints struct {
	IdealWidth  int
	IdealHeight int
	FPS         int
}

// Stream はセッション中に保持するライブ映像へのハンドル
type Stream interface {
	// ID はストリームの一意識別子を返す
	ID() string

	// CurrentFrame は現在のフレームをデコードして返す
	// 幅と高さは画像のBoundsから得られる
	CurrentFrame(ctx context.Context) (image.Image, error)

	// LatestJPEG は最新フレームのJPEGデータを返す（ライブプレビュー用）
	LatestJPEG() ([]byte, error)

	// Release はデバイスを解放する。複数回呼んでも安全
	Release(ctx context.Context) error
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       // デバイスパス
	Name        string       // デバイス名
	Driver      string       // ドライバー名
	Resolutions []Resolution // サポートされる解像度
	Formats     []string     // サポートされるフォーマット
}

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int // 幅
	Height int // 高さ
}
