package main

import (
	"context"
	"image/color"
	"strings"
	"testing"

	"photobooth/internal/camera"
)

func TestDevicesCommand(t *testing.T) {
	clearEnv(t)

	testCases := []struct {
		name    string
		devices []string
		want    []string
	}{
		{
			name:    "カメラ2台",
			devices: []string{"/dev/video0", "/dev/video2"},
			want:    []string{"デバイス", "/dev/video0", "/dev/video2", "テストカメラ", "╭"},
		},
		{
			name: "カメラなし",
			want: []string{"カメラが見つかりません"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := []contextOption{withCameras(mockCameras(tc.devices, color.White))}
			out, err := runCommand(t, context.Background(), opts, "devices")
			if err != nil {
				t.Fatalf("devices failed: %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(out, want) {
					t.Errorf("出力に %q が含まれていません:\n%s", want, out)
				}
			}
		})
	}
}

func TestMaxResolution(t *testing.T) {
	testCases := []struct {
		name        string
		resolutions []camera.Resolution
		want        string
	}{
		{name: "なし", want: "-"},
		{
			name:        "最大を選ぶ",
			resolutions: []camera.Resolution{{Width: 640, Height: 480}, {Width: 1920, Height: 1080}, {Width: 1280, Height: 720}},
			want:        "1920x1080",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := maxResolution(tc.resolutions); got != tc.want {
				t.Errorf("maxResolution = %q, want %q", got, tc.want)
			}
		})
	}
}
