package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// streamCapturer はffmpegなどによる連続キャプチャの実装
type streamCapturer interface {
	IsDeviceAvailable(ctx context.Context) bool
	TestCapture(ctx context.Context) error
	StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error)
}

// PipelineSource はキャプチャパイプラインを持つ VideoSource 実装
// USBカメラとテストパターンで共通に使う
type PipelineSource struct {
	BaseVideoSource

	capturer streamCapturer

	// 制御用
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewUSBCameraSource は新しいUSBカメラの VideoSource を作成する
func NewUSBCameraSource(info VideoSourceInfo, settings VideoSettings) *PipelineSource {
	return newPipelineSource(info, settings,
		NewV4L2Capturer(info.Device, settings.Width, settings.Height, settings.FrameRate))
}

func newPipelineSource(info VideoSourceInfo, settings VideoSettings, capturer streamCapturer) *PipelineSource {
	return &PipelineSource{
		BaseVideoSource: BaseVideoSource{
			info:     info,
			settings: settings,
			status:   StatusInactive,
		},
		capturer: capturer,
	}
}

// Start はキャプチャを開始する
// ストリームはリクエストのctxより長く生きるため、キャンセルはStopで行う
func (s *PipelineSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil // 既に開始済み
	}

	// デバイステストを実行
	if err := s.capturer.TestCapture(ctx); err != nil {
		s.status = StatusError
		return fmt.Errorf("テストキャプチャに失敗: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopCh = make(chan struct{})

	frameChan := make(chan []byte, 10)
	errorChan := make(chan error, 5)

	// ストリーミングを開始
	s.wg.Add(2)
	go func(stopCh chan struct{}) {
		defer s.wg.Done()
		s.capturer.StartStream(streamCtx, frameChan, errorChan)
		s.markPipelineEnded(stopCh)
	}(s.stopCh)
	go func(stopCh <-chan struct{}) {
		defer s.wg.Done()
		s.forwardFrames(stopCh, frameChan, errorChan)
	}(s.stopCh)

	s.status = StatusActive
	return nil
}

// markPipelineEnded はStopを経ずにキャプチャが終了した場合にソースをエラー状態にする
// （ffmpegの終了、カメラの取り外しなど）。最後に届いたフレームはもう返さない
func (s *PipelineSource) markPipelineEnded(stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != stopCh {
		return // Stopによる終了、または別のストリーム
	}
	if s.status != StatusError {
		log.Printf("映像ソース %s のキャプチャが終了しました", s.info.ID)
	}
	s.status = StatusError
}

// Stop はキャプチャを停止してデバイスを解放する
func (s *PipelineSource) Stop(_ context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.status = StatusInactive
		s.mu.Unlock()
		return nil // 既に停止済み
	}
	cancel, stopCh := s.cancel, s.stopCh
	s.cancel, s.stopCh = nil, nil
	s.status = StatusInactive
	s.mu.Unlock()

	// 停止シグナルを送信してゴルーチンの終了を待機
	cancel()
	close(stopCh)
	s.wg.Wait()

	s.clearLatest()
	return nil
}

// IsAvailable はソースが利用可能かチェックする
func (s *PipelineSource) IsAvailable(ctx context.Context) bool {
	return s.capturer.IsDeviceAvailable(ctx)
}

// CaptureFrame はストリーミング中の最新フレームを返す
func (s *PipelineSource) CaptureFrame(_ context.Context) ([]byte, error) {
	if status := s.GetStatus(); status != StatusActive {
		return nil, fmt.Errorf("映像ソースが非アクティブです (%s)", status)
	}
	return s.loadLatest()
}
