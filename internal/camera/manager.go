package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // JPEGデコーダの登録
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/config"
)

// Manager はセッション単位のカメラアクセスを担うインターフェース
type Manager interface {
	// RequestAccess はデバイスを確保してライブ映像の Stream を返す
	// 利用できない場合は ErrDeviceUnavailable をラップしたエラーを返す
	RequestAccess(ctx context.Context, constraints Constraints) (Stream, error)

	// ListDevices は検出されたデバイスの情報を返す
	ListDevices(ctx context.Context) ([]DeviceInfo, error)
}

// ManagerConfig はManagerの設定
type ManagerConfig struct {
	SourceType   VideoSourceType // 映像ソースの種類
	Device       string          // 固定するデバイスパス（空なら自動検出）
	StartTimeout time.Duration   // 最初のフレームを待つ時間
}

// DefaultManager はManagerのデフォルト実装
// 同時に確保できるデバイスは1つだけ
type DefaultManager struct {
	discovery Discovery
	factory   VideoSourceFactory
	config    ManagerConfig

	mu     sync.Mutex
	active *sourceStream

	pollInterval time.Duration
}

// NewDefaultManager は新しいDefaultManagerを作成する
func NewDefaultManager(discovery Discovery, factory VideoSourceFactory, config ManagerConfig) *DefaultManager {
	if config.SourceType == "" {
		config.SourceType = SourceTypeUSBCamera
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = 10 * time.Second
	}

	return &DefaultManager{
		discovery:    discovery,
		factory:      factory,
		config:       config,
		pollInterval: 50 * time.Millisecond,
	}
}

// NewManagerFromConfig は設定に従って実機用のManagerを作成する
func NewManagerFromConfig(cfg config.CameraConfig) *DefaultManager {
	return NewDefaultManager(NewLinuxDiscovery(), NewVideoSourceFactory(), ManagerConfig{
		SourceType:   VideoSourceType(cfg.Source),
		Device:       cfg.Device,
		StartTimeout: cfg.StartTimeout,
	})
}

// RequestAccess はデバイスを確保してライブ映像を開始する
func (m *DefaultManager) RequestAccess(ctx context.Context, constraints Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("カメラは既に使用中です (stream %s): %w", m.active.id, ErrDeviceUnavailable)
	}

	device, err := m.resolveDevice(ctx)
	if err != nil {
		return nil, err
	}

	source, err := m.factory.CreateSource(m.config.SourceType, SourceConfig{
		Device: device,
		Settings: VideoSettings{
			Width:     constraints.IdealWidth,
			Height:    constraints.IdealHeight,
			FrameRate: constraints.FPS,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("映像ソースの作成に失敗: %v: %w", err, ErrDeviceUnavailable)
	}

	if err := source.Start(ctx); err != nil {
		return nil, fmt.Errorf("映像ソースの開始に失敗: %v: %w", err, ErrDeviceUnavailable)
	}

	if err := m.waitFirstFrame(ctx, source); err != nil {
		_ = source.Stop(ctx)
		return nil, fmt.Errorf("最初のフレームを取得できません: %v: %w", err, ErrDeviceUnavailable)
	}

	stream := &sourceStream{
		id:      uuid.New().String(),
		source:  source,
		manager: m,
	}
	m.active = stream

	info := source.GetInfo()
	log.Printf("カメラを確保しました: %s (%s, stream %s)", info.Name, info.Type, stream.id)
	return stream, nil
}

// resolveDevice は使用するデバイスパスを決める
func (m *DefaultManager) resolveDevice(ctx context.Context) (string, error) {
	if m.config.SourceType != SourceTypeUSBCamera {
		return m.config.Device, nil
	}

	if m.config.Device != "" {
		if !m.discovery.IsDeviceAvailable(ctx, m.config.Device) {
			return "", fmt.Errorf("デバイス %s にアクセスできません: %w", m.config.Device, ErrDeviceUnavailable)
		}
		return m.config.Device, nil
	}

	devices, err := m.discovery.ScanDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("デバイスのスキャンに失敗: %v: %w", err, ErrDeviceUnavailable)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("カメラデバイスが見つかりません: %w", ErrDeviceUnavailable)
	}

	return devices[0], nil
}

// waitFirstFrame はソースから最初のフレームが届くまで待つ
func (m *DefaultManager) waitFirstFrame(ctx context.Context, source VideoSource) error {
	waitCtx, cancel := context.WithTimeout(ctx, m.config.StartTimeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := source.CaptureFrame(waitCtx); err == nil {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// release はアクティブなストリームの登録を外す
func (m *DefaultManager) release(stream *sourceStream) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == stream {
		m.active = nil
	}
}

// ListDevices は検出されたデバイスの情報を返す
func (m *DefaultManager) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	devices, err := m.discovery.ScanDevices(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, device := range devices {
		info, err := m.discovery.GetDeviceInfo(ctx, device)
		if err != nil {
			log.Printf("デバイス情報の取得に失敗 (%s): %v", device, err)
			continue
		}
		infos = append(infos, *info)
	}

	return infos, nil
}

// sourceStream は VideoSource をセッションに貸し出す Stream 実装
type sourceStream struct {
	id      string
	source  VideoSource
	manager *DefaultManager

	once sync.Once
}

func (s *sourceStream) ID() string {
	return s.id
}

// CurrentFrame は最新フレームをデコードして返す
func (s *sourceStream) CurrentFrame(ctx context.Context) (image.Image, error) {
	data, err := s.source.CaptureFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: フレームの取得に失敗: %w", ErrDeviceUnavailable, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("フレームのデコードに失敗: %w", err)
	}

	return img, nil
}

func (s *sourceStream) LatestJPEG() ([]byte, error) {
	return s.source.CaptureFrame(context.Background())
}

// Release はソースを停止してデバイスを解放する
func (s *sourceStream) Release(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		err = s.source.Stop(ctx)
		s.manager.release(s)
		log.Printf("カメラを解放しました (stream %s)", s.id)
	})
	return err
}
