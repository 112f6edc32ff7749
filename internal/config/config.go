package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Camera  CameraConfig  `yaml:"camera" toml:"camera"`
	Booth   BoothConfig   `yaml:"booth" toml:"booth"`
	Trigger TriggerConfig `yaml:"trigger" toml:"trigger"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`                                // リッスンするホスト
	Port int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"` // リッスンするポート番号 (0はランダム)

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout" validate:"gte=0"`   // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout" validate:"gte=0"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Source string `yaml:"source" toml:"source" validate:"oneof=usb_camera test_pattern"` // 映像ソースの種類
	Device string `yaml:"device" toml:"device"`                                          // デバイスパス (空の場合は自動検出)

	// 希望する解像度 (実際の解像度はデバイスとのネゴシエーションで決まる)
	IdealWidth  int `yaml:"ideal_width" toml:"ideal_width" validate:"gt=0,lte=4096"`
	IdealHeight int `yaml:"ideal_height" toml:"ideal_height" validate:"gt=0,lte=4096"`
	FPS         int `yaml:"fps" toml:"fps" validate:"gt=0,lte=60"`

	// 最初のフレームを待つ時間
	StartTimeout time.Duration `yaml:"start_timeout" toml:"start_timeout" validate:"gt=0"`
}

// BoothConfig は撮影セッションの設定
type BoothConfig struct {
	JPEGQuality int  `yaml:"jpeg_quality" toml:"jpeg_quality" validate:"gte=1,lte=100"` // 撮影フレームのJPEG品質
	Grayscale   bool `yaml:"grayscale" toml:"grayscale"`                                // モノクロフィルターの初期値
}

// TriggerConfig は物理ボタンとフラッシュライト（GPIO）の設定
// ピン番号はBCM番号
type TriggerConfig struct {
	Enabled   bool          `yaml:"enabled" toml:"enabled"`
	Mock      bool          `yaml:"mock" toml:"mock"` // GPIOを使わずログ出力のみ
	ButtonPin int           `yaml:"button_pin" toml:"button_pin" validate:"gte=0,lte=27"`
	FlashPin  int           `yaml:"flash_pin" toml:"flash_pin" validate:"gte=0,lte=27"`
	Debounce  time.Duration `yaml:"debounce" toml:"debounce" validate:"gte=0"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			Source:       "usb_camera",
			IdealWidth:   1280,
			IdealHeight:  720,
			FPS:          15,
			StartTimeout: 10 * time.Second,
		},
		Booth: BoothConfig{
			JPEGQuality: 90,
		},
		Trigger: TriggerConfig{
			ButtonPin: 17,
			FlashPin:  27,
			Debounce:  50 * time.Millisecond,
		},
	}
}

// Load は設定を読み込む
// PHOTOBOOTH_CONFIG が指定されていればファイルを読み、環境変数で上書きする
func Load() (*Config, error) {
	return LoadFile(os.Getenv("PHOTOBOOTH_CONFIG"))
}

// LoadFile は指定されたファイルから設定を読み込む
// path が空の場合はデフォルト値と環境変数のみを使う
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// decodeFile は拡張子に応じてYAMLまたはTOMLとしてファイルを読み込む
func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("YAMLの解析に失敗: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("TOMLの解析に失敗: %w", err)
		}
	default:
		return fmt.Errorf("サポートされていない設定ファイル形式: %s", path)
	}

	return nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Camera.Source = getEnvOrDefault("CAMERA_SOURCE", c.Camera.Source)
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)
	c.Trigger.Enabled = getEnvAsBoolOrDefault("TRIGGER_ENABLED", c.Trigger.Enabled)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Camera.Device != "" && !strings.HasPrefix(c.Camera.Device, "/dev/") {
		return fmt.Errorf("無効なデバイスパス: %s", c.Camera.Device)
	}

	if c.Trigger.Enabled && c.Trigger.ButtonPin == c.Trigger.FlashPin {
		return fmt.Errorf("ボタンとフラッシュに同じピンは使えません: %d", c.Trigger.ButtonPin)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault は環境変数を真偽値として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
