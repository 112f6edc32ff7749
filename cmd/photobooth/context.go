package main

import (
	"strings"
	"sync"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	newCameras func(cfg config.CameraConfig) camera.Manager
	clock      booth.Clock
}

type contextOption func(*commandContext)

// withCameras はカメラマネージャーの作成方法を差し替える
func withCameras(fn func(cfg config.CameraConfig) camera.Manager) contextOption {
	return func(c *commandContext) {
		c.newCameras = fn
	}
}

// withClock は撮影シーケンスのClockを差し替える
func withClock(clock booth.Clock) contextOption {
	return func(c *commandContext) {
		c.clock = clock
	}
}

func newCommandContext(configFlag *string, opts ...contextOption) *commandContext {
	c := &commandContext{
		configFlag: configFlag,
		newCameras: func(cfg config.CameraConfig) camera.Manager {
			return camera.NewManagerFromConfig(cfg)
		},
		clock: booth.RealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ensureConfig は設定を1回だけ読み込む
// --config が無い場合は PHOTOBOOTH_CONFIG を参照する
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		var cfg *config.Config
		var err error
		if path == "" {
			cfg, err = config.Load()
		} else {
			cfg, err = config.LoadFile(path)
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}
