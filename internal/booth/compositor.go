package booth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"math"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DownloadFilename はダウンロード時のファイル名
const DownloadFilename = "photostrip.png"

// Layout はフィルムストリップの配置設定
type Layout struct {
	PhotoWidth  float64     // 1枚の幅
	PhotoHeight float64     // 1枚の高さ（16:9）
	Padding     float64     // 写真の周囲の余白
	Background  color.Color // 背景色
}

// DefaultLayout はデフォルトの配置設定を返す
func DefaultLayout() Layout {
	const width = 500.0
	return Layout{
		PhotoWidth:  width,
		PhotoHeight: width * 9 / 16,
		Padding:     20,
		Background:  color.White,
	}
}

// CanvasSize は指定枚数を並べたときのキャンバスサイズを返す
func (l Layout) CanvasSize(count int) (int, int) {
	width := l.PhotoWidth + l.Padding*2
	height := (l.PhotoHeight+l.Padding)*float64(count) + l.Padding
	return int(math.Round(width)), int(math.Round(height))
}

// SlotRect はi番目の写真を描画する矩形を返す（ピクセル単位に丸める）
func (l Layout) SlotRect(i int) image.Rectangle {
	y := l.Padding + float64(i)*(l.PhotoHeight+l.Padding)
	return image.Rect(
		int(math.Round(l.Padding)),
		int(math.Round(y)),
		int(math.Round(l.Padding+l.PhotoWidth)),
		int(math.Round(y+l.PhotoHeight)),
	)
}

// Composite は完成したフィルムストリップ
type Composite struct {
	Width     int
	Height    int
	Image     *image.RGBA
	CreatedAt time.Time
}

// EncodePNG はPNGとして書き出す
func (c *Composite) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, c.Image); err != nil {
		return fmt.Errorf("PNGエンコードに失敗: %w", err)
	}
	return nil
}

// PNG はPNGのバイト列を返す
func (c *Composite) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI は data:image/png;base64 形式の文字列を返す
func (c *Composite) DataURI() (string, error) {
	data, err := c.PNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Compositor はフレームを縦に並べてフィルムストリップを作る
type Compositor struct {
	layout Layout
	count  int
	scaler draw.Interpolator
}

// NewCompositor は新しいCompositorを作成する
func NewCompositor(layout Layout, count int) *Compositor {
	return &Compositor{
		layout: layout,
		count:  count,
		scaler: draw.ApproxBiLinear,
	}
}

// Compose は全フレームのデコードが成功した場合のみストリップを作成する
// 1枚でも失敗した場合は ErrCompositeFailed を返し、途中までの画像は返さない
func (c *Compositor) Compose(ctx context.Context, frames []Frame) (*Composite, error) {
	if len(frames) != c.count {
		return nil, fmt.Errorf("%w: フレームが%d枚しかありません（%d枚必要）", ErrCompositeFailed, len(frames), c.count)
	}

	images := make([]image.Image, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := frame.Decode()
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("フィルムストリップの合成に失敗: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrCompositeFailed, err)
	}

	width, height := c.layout.CanvasSize(len(images))
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.layout.Background), image.Point{}, draw.Src)

	// 撮影順に上から配置
	for i, img := range images {
		c.scaler.Scale(canvas, c.layout.SlotRect(i), img, img.Bounds(), draw.Over, nil)
	}

	return &Composite{
		Width:     width,
		Height:    height,
		Image:     canvas,
		CreatedAt: time.Now(),
	}, nil
}
