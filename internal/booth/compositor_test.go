package booth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestLayout(t *testing.T) {
	layout := DefaultLayout()

	if layout.PhotoHeight != 281.25 {
		t.Errorf("PhotoHeight = %v, want 281.25", layout.PhotoHeight)
	}

	width, height := layout.CanvasSize(4)
	if width != 540 || height != 1225 {
		t.Errorf("CanvasSize(4) = %dx%d, want 540x1225", width, height)
	}

	testCases := []struct {
		index int
		want  image.Rectangle
	}{
		{0, image.Rect(20, 20, 520, 301)},
		{1, image.Rect(20, 321, 520, 603)},
		{2, image.Rect(20, 623, 520, 904)},
		{3, image.Rect(20, 924, 520, 1205)},
	}
	for _, tc := range testCases {
		if got := layout.SlotRect(tc.index); got != tc.want {
			t.Errorf("SlotRect(%d) = %v, want %v", tc.index, got, tc.want)
		}
	}
}

func TestCompositor_Compose(t *testing.T) {
	frames := make([]Frame, len(testColors))
	for i, c := range testColors {
		frames[i] = solidFrame(t, i, c)
	}

	composite, err := NewCompositor(DefaultLayout(), DefaultShots).Compose(context.Background(), frames)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if composite.Width != 540 || composite.Height != 1225 {
		t.Fatalf("Unexpected size: %dx%d", composite.Width, composite.Height)
	}
	if b := composite.Image.Bounds(); b.Dx() != 540 || b.Dy() != 1225 {
		t.Fatalf("Unexpected image bounds: %v", b)
	}

	// i番目のスロットにはi番目のフレーム
	layout := DefaultLayout()
	for i, c := range testColors {
		rect := layout.SlotRect(i)
		center := image.Pt((rect.Min.X+rect.Max.X)/2, (rect.Min.Y+rect.Max.Y)/2)
		assertColorNear(t, "slot", composite.Image.At(center.X, center.Y), c)
	}

	// 余白は白
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, p := range []image.Point{{5, 5}, {270, 310}, {530, 600}, {270, 1215}} {
		if got := composite.Image.RGBAAt(p.X, p.Y); got != white {
			t.Errorf("余白 %v が白ではありません: %v", p, got)
		}
	}
}

func TestCompositor_AllOrNothing(t *testing.T) {
	valid := func() []Frame {
		frames := make([]Frame, len(testColors))
		for i, c := range testColors {
			frames[i] = solidFrame(t, i, c)
		}
		return frames
	}

	testCases := []struct {
		name   string
		frames func() []Frame
	}{
		{
			name: "壊れたフレーム",
			frames: func() []Frame {
				frames := valid()
				frames[2].Data = []byte("not a jpeg")
				return frames
			},
		},
		{
			name: "空のフレーム",
			frames: func() []Frame {
				frames := valid()
				frames[0].Data = nil
				return frames
			},
		},
		{
			name:   "枚数が足りない",
			frames: func() []Frame { return valid()[:3] },
		},
		{
			name:   "フレームなし",
			frames: func() []Frame { return nil },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			composite, err := NewCompositor(DefaultLayout(), DefaultShots).Compose(context.Background(), tc.frames())
			if !errors.Is(err, ErrCompositeFailed) {
				t.Fatalf("Expected ErrCompositeFailed, got %v", err)
			}
			if composite != nil {
				t.Error("失敗時に合成画像が返されました")
			}
		})
	}
}

func TestComposite_DataURI(t *testing.T) {
	frames := make([]Frame, len(testColors))
	for i, c := range testColors {
		frames[i] = solidFrame(t, i, c)
	}
	composite, err := NewCompositor(DefaultLayout(), DefaultShots).Compose(context.Background(), frames)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	uri, err := composite.DataURI()
	if err != nil {
		t.Fatalf("DataURI failed: %v", err)
	}
	assertPNGDataURI(t, uri, 540, 1225)
}

func assertPNGDataURI(t *testing.T, uri string, width, height int) {
	t.Helper()

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("data URIの形式が不正です: %.40s", uri)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("base64デコードに失敗: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PNGデコードに失敗: %v", err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		t.Errorf("PNGのサイズ = %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}
}
