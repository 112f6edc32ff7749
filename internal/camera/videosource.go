package camera

import (
	"context"
	"errors"
	"log"
	"sync"
)

// errNoFrameYet は最新フレームがまだ届いていないことを表す
var errNoFrameYet = errors.New("フレームがまだ取得されていません")

// VideoSourceType はソースタイプを定義
type VideoSourceType string

const (
	// SourceTypeUSBCamera はUSBカメラソースを表す
	SourceTypeUSBCamera VideoSourceType = "usb_camera"
	// SourceTypeTestPattern はffmpegのテストパターンソースを表す
	SourceTypeTestPattern VideoSourceType = "test_pattern"
)

// VideoSource は全ての動画源を統一するインターフェース
type VideoSource interface {
	// 基本操作
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsAvailable(ctx context.Context) bool

	// CaptureFrame は最新フレームのJPEGデータを返す
	CaptureFrame(ctx context.Context) ([]byte, error)

	// メタデータ
	GetInfo() VideoSourceInfo
	GetCurrentSettings() VideoSettings

	// ステータス取得
	GetStatus() Status
}

// VideoSourceInfo はソース情報を表す
type VideoSourceInfo struct {
	ID          string
	Name        string
	Type        VideoSourceType
	Driver      string
	Description string
	Device      string // デバイスパス（USBカメラ等）
}

// VideoSettings は動画設定を統一
type VideoSettings struct {
	Width     int
	Height    int
	FrameRate int
	Format    string
	Quality   int
}

// BaseVideoSource は共通実装を提供
type BaseVideoSource struct {
	info     VideoSourceInfo
	settings VideoSettings
	status   Status
	mu       sync.RWMutex

	// 最新フレーム保持用
	latestFrame []byte
	latestMutex sync.RWMutex
}

// GetInfo は基本情報を返す
func (b *BaseVideoSource) GetInfo() VideoSourceInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

// GetCurrentSettings は現在の設定を返す
func (b *BaseVideoSource) GetCurrentSettings() VideoSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

// GetStatus はステータスを返す
func (b *BaseVideoSource) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// storeLatest は最新フレームのコピーを保存する
func (b *BaseVideoSource) storeLatest(frame []byte) {
	b.latestMutex.Lock()
	defer b.latestMutex.Unlock()
	b.latestFrame = make([]byte, len(frame))
	copy(b.latestFrame, frame)
}

// loadLatest は最新フレームのコピーを返す
func (b *BaseVideoSource) loadLatest() ([]byte, error) {
	b.latestMutex.RLock()
	defer b.latestMutex.RUnlock()

	if b.latestFrame == nil {
		return nil, errNoFrameYet
	}

	frame := make([]byte, len(b.latestFrame))
	copy(frame, b.latestFrame)
	return frame, nil
}

// clearLatest は保持しているフレームを破棄する
func (b *BaseVideoSource) clearLatest() {
	b.latestMutex.Lock()
	defer b.latestMutex.Unlock()
	b.latestFrame = nil
}

// forwardFrames はキャプチャからのフレームを最新フレームとして保持する
// stopCh が閉じられるか、フレームチャンネルが閉じられると終了する
func (b *BaseVideoSource) forwardFrames(stopCh <-chan struct{}, frameChan <-chan []byte, errorChan <-chan error) {
	for {
		select {
		case <-stopCh:
			return

		case frame, ok := <-frameChan:
			if !ok {
				return
			}
			b.storeLatest(frame)

		case err, ok := <-errorChan:
			if !ok {
				return
			}
			log.Printf("映像ソース %s でエラー: %v", b.GetInfo().ID, err)
			b.mu.Lock()
			b.status = StatusError
			b.mu.Unlock()
		}
	}
}
