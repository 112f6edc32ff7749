package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
)

// MockVideoSource はテスト用の VideoSource 実装
// SetFrame で設定したフレームを最新フレームとして返し続ける
type MockVideoSource struct {
	BaseVideoSource

	captures int
	stops    int
	fmu      sync.Mutex

	// テスト制御用
	shouldFailStart bool
}

// NewMockVideoSource は新しいMockVideoSourceを作成する
func NewMockVideoSource(info VideoSourceInfo, frame []byte) *MockVideoSource {
	m := &MockVideoSource{
		BaseVideoSource: BaseVideoSource{
			info:   info,
			status: StatusInactive,
		},
	}
	if frame != nil {
		m.storeLatest(frame)
	}
	return m
}

// Start はモックソースを開始する
func (m *MockVideoSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailStart {
		m.status = StatusError
		return fmt.Errorf("モック: 映像ソースの開始に失敗")
	}

	m.status = StatusActive
	return nil
}

// Stop はモックソースを停止する
func (m *MockVideoSource) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = StatusInactive
	m.fmu.Lock()
	m.stops++
	m.fmu.Unlock()
	return nil
}

// IsAvailable は常にtrueを返す
func (m *MockVideoSource) IsAvailable(_ context.Context) bool {
	return true
}

// CaptureFrame は最新フレームを返す
func (m *MockVideoSource) CaptureFrame(_ context.Context) ([]byte, error) {
	if m.GetStatus() != StatusActive {
		return nil, fmt.Errorf("映像ソースが非アクティブです")
	}

	frame, err := m.loadLatest()
	if err != nil {
		return nil, err
	}

	m.fmu.Lock()
	m.captures++
	m.fmu.Unlock()
	return frame, nil
}

// SetFrame は最新フレームを差し替える（ライブ映像が変化したことを模擬する）
func (m *MockVideoSource) SetFrame(frame []byte) {
	m.storeLatest(frame)
}

// SetShouldFailStart はテスト用にStart失敗を設定する
func (m *MockVideoSource) SetShouldFailStart(shouldFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailStart = shouldFail
}

// Captures はCaptureFrameが成功した回数を返す
func (m *MockVideoSource) Captures() int {
	m.fmu.Lock()
	defer m.fmu.Unlock()
	return m.captures
}

// Stops はStopが呼ばれた回数を返す
func (m *MockVideoSource) Stops() int {
	m.fmu.Lock()
	defer m.fmu.Unlock()
	return m.stops
}

// SolidJPEG は単色のJPEG画像を生成する（テスト用）
func SolidJPEG(width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
