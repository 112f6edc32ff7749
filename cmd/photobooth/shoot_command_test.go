package main

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photobooth/internal/camera"
)

func TestShootCommand(t *testing.T) {
	clearEnv(t)

	output := filepath.Join(t.TempDir(), "strips", "photostrip.png")
	opts := []contextOption{
		withCameras(mockCameras(nil, color.RGBA{R: 200, G: 40, B: 40, A: 255})),
		withClock(instantClock{}),
	}

	out, err := runCommand(t, context.Background(), opts, "shoot", "-o", output, "--grayscale")
	if err != nil {
		t.Fatalf("shoot failed: %v\n%s", err, out)
	}

	for _, want := range []string{"3...", "撮影しました (4/4)", "印刷中... 1", "ストリップを保存しました"} {
		if !strings.Contains(out, want) {
			t.Errorf("出力に %q が含まれていません:\n%s", want, out)
		}
	}

	file, err := os.Open(output)
	if err != nil {
		t.Fatalf("保存されたファイルを開けません: %v", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("PNGデコードに失敗: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 540 || b.Dy() != 1225 {
		t.Fatalf("ストリップのサイズが一致しません: %v", b)
	}

	// 余白は白、写真はモノクロ
	assertGray(t, img, 5, 5, 250)
	r, g, b, _ := img.At(270, 160).RGBA()
	if diff(r>>8, g>>8) > 4 || diff(g>>8, b>>8) > 4 {
		t.Errorf("モノクロになっていません: r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestShootCommand_NoCamera(t *testing.T) {
	clearEnv(t)

	output := filepath.Join(t.TempDir(), "photostrip.png")
	opts := []contextOption{withCameras(noCameras), withClock(instantClock{})}

	_, err := runCommand(t, context.Background(), opts, "shoot", "-q", "-o", output)
	if !errors.Is(err, camera.ErrDeviceUnavailable) {
		t.Fatalf("ErrDeviceUnavailableになるべき: %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("失敗時にファイルを作成してはいけない")
	}
}

// cancelingClock は最初の待ちでコンテキストをキャンセルする（Ctrl-Cと同じ）
type cancelingClock struct {
	cancel context.CancelFunc
}

func (c cancelingClock) After(time.Duration) <-chan time.Time {
	c.cancel()
	return make(chan time.Time)
}

func (cancelingClock) Now() time.Time { return time.Now() }

func TestShootCommand_Interrupted(t *testing.T) {
	clearEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	output := filepath.Join(t.TempDir(), "photostrip.png")
	opts := []contextOption{
		withCameras(mockCameras(nil, color.White)),
		withClock(cancelingClock{cancel: cancel}),
	}

	_, err := runCommand(t, ctx, opts, "shoot", "-q", "-o", output)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("context.Canceledになるべき: %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("中断時にファイルを作成してはいけない")
	}
}

func assertGray(t *testing.T, img image.Image, x, y int, min uint32) {
	t.Helper()

	r, g, b, _ := img.At(x, y).RGBA()
	if r>>8 < min || g>>8 < min || b>>8 < min {
		t.Errorf("(%d,%d) は白であるべき: r=%d g=%d b=%d", x, y, r>>8, g>>8, b>>8)
	}
}

func diff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
