package main

import (
	"bytes"
	"context"
	"image/color"
	"testing"
	"time"

	"photobooth/internal/camera"
	"photobooth/internal/config"
)

// instantClock は待ち時間なしで進むClock
type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (instantClock) Now() time.Time { return time.Now() }

// clearEnv は設定を上書きする環境変数を無効にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PHOTOBOOTH_CONFIG", "SERVER_HOST", "PORT", "CAMERA_SOURCE", "CAMERA_DEVICE", "TRIGGER_ENABLED"} {
		t.Setenv(key, "")
	}
}

// mockCameras はモック映像を返すカメラマネージャーを作成する
func mockCameras(devices []string, fill color.Color) func(config.CameraConfig) camera.Manager {
	return func(config.CameraConfig) camera.Manager {
		source := camera.NewMockVideoSource(
			camera.VideoSourceInfo{ID: "mock", Name: "テストカメラ", Type: camera.SourceTypeTestPattern},
			camera.SolidJPEG(160, 90, fill),
		)

		factory := camera.NewVideoSourceFactory()
		factory.Register(camera.SourceTypeTestPattern, func(camera.SourceConfig) (camera.VideoSource, error) {
			return source, nil
		})

		return camera.NewDefaultManager(camera.NewMockDiscovery(devices), factory, camera.ManagerConfig{
			SourceType:   camera.SourceTypeTestPattern,
			StartTimeout: time.Second,
		})
	}
}

// noCameras はカメラが接続されていない環境
func noCameras(config.CameraConfig) camera.Manager {
	return camera.NewDefaultManager(camera.NewMockDiscovery(nil), camera.NewVideoSourceFactory(), camera.ManagerConfig{
		SourceType: camera.SourceTypeUSBCamera,
	})
}

// runCommand はルートコマンドを実行して標準出力を返す
func runCommand(t *testing.T, ctx context.Context, opts []contextOption, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand(opts...)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return out.String(), err
}
