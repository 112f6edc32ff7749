package camera

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// SourceConfig はソース作成設定
type SourceConfig struct {
	Device   string        // デバイスパス
	Settings VideoSettings // 設定
}

// VideoSourceFactory はソース作成ファクトリー
type VideoSourceFactory interface {
	CreateSource(sourceType VideoSourceType, config SourceConfig) (VideoSource, error)
	GetSupportedTypes() []VideoSourceType
}

// SourceCreator はソース作成関数の型
type SourceCreator func(config SourceConfig) (VideoSource, error)

// DefaultVideoSourceFactory は標準実装
type DefaultVideoSourceFactory struct {
	creators map[VideoSourceType]SourceCreator
}

// NewVideoSourceFactory は新しいファクトリーを作成する
func NewVideoSourceFactory() *DefaultVideoSourceFactory {
	factory := &DefaultVideoSourceFactory{
		creators: make(map[VideoSourceType]SourceCreator),
	}

	factory.Register(SourceTypeUSBCamera, NewUSBCameraSourceFromConfig)
	factory.Register(SourceTypeTestPattern, NewTestPatternSourceFromConfig)

	return factory
}

// Register はソース作成関数を登録する
func (f *DefaultVideoSourceFactory) Register(sourceType VideoSourceType, creator SourceCreator) {
	f.creators[sourceType] = creator
}

// CreateSource はソースを作成する
func (f *DefaultVideoSourceFactory) CreateSource(sourceType VideoSourceType, config SourceConfig) (VideoSource, error) {
	creator, exists := f.creators[sourceType]
	if !exists {
		return nil, fmt.Errorf("サポートされていないソースタイプ: %s", sourceType)
	}

	return creator(config)
}

// GetSupportedTypes はサポートされているソースタイプを名前順で返す
func (f *DefaultVideoSourceFactory) GetSupportedTypes() []VideoSourceType {
	types := make([]VideoSourceType, 0, len(f.creators))
	for sourceType := range f.creators {
		types = append(types, sourceType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// NewUSBCameraSourceFromConfig は設定からUSBカメラソースを作成する
func NewUSBCameraSourceFromConfig(config SourceConfig) (VideoSource, error) {
	if config.Device == "" {
		return nil, fmt.Errorf("USBカメラの作成にはデバイスパスが必要です")
	}

	settings := withDefaultSettings(config.Settings)

	// デバイス名を取得（取得できなければパスから生成）
	name := fmt.Sprintf("USB Camera (%s)", config.Device)
	deviceInfo, err := NewLinuxDiscovery().GetDeviceInfo(context.TODO(), config.Device)
	if err == nil && deviceInfo != nil {
		name = deviceInfo.Name
	}

	info := VideoSourceInfo{
		ID:          uuid.New().String(),
		Name:        name,
		Type:        SourceTypeUSBCamera,
		Driver:      "v4l2",
		Description: fmt.Sprintf("USB Camera: %s", name),
		Device:      config.Device,
	}

	return NewUSBCameraSource(info, settings), nil
}

// NewTestPatternSourceFromConfig は設定からテストパターンソースを作成する
func NewTestPatternSourceFromConfig(config SourceConfig) (VideoSource, error) {
	settings := withDefaultSettings(config.Settings)

	info := VideoSourceInfo{
		ID:          uuid.New().String(),
		Name:        "Test Pattern",
		Type:        SourceTypeTestPattern,
		Driver:      "lavfi",
		Description: fmt.Sprintf("ffmpeg testsrc2 %dx%d", settings.Width, settings.Height),
	}

	return NewTestPatternSource(info, settings), nil
}

// withDefaultSettings は未指定の項目にデフォルト値を入れる
func withDefaultSettings(settings VideoSettings) VideoSettings {
	if settings.Width <= 0 {
		settings.Width = 1280
	}
	if settings.Height <= 0 {
		settings.Height = 720
	}
	if settings.FrameRate <= 0 {
		settings.FrameRate = 15
	}
	if settings.Format == "" {
		settings.Format = "MJPEG"
	}
	if settings.Quality <= 0 {
		settings.Quality = 3
	}
	return settings
}
