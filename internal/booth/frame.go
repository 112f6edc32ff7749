package booth

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Frame は撮影された1枚の画像
// 生成後は変更しない
type Frame struct {
	Index      int       `json:"index"`       // 撮影順（0始まり）
	CapturedAt time.Time `json:"captured_at"` // 撮影時刻
	Width      int       `json:"width"`       // 画像幅
	Height     int       `json:"height"`      // 画像高さ
	Data       []byte    `json:"-"`           // JPEG画像データ
}

// NewFrame は画像をJPEGにエンコードしてFrameを作成する
func NewFrame(index int, img image.Image, quality int, capturedAt time.Time) (Frame, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, fmt.Errorf("フレーム %d のJPEGエンコードに失敗: %w", index, err)
	}

	bounds := img.Bounds()
	return Frame{
		Index:      index,
		CapturedAt: capturedAt,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Data:       buf.Bytes(),
	}, nil
}

// Decode はJPEGデータを画像にデコードする
func (f Frame) Decode() (image.Image, error) {
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("フレーム %d のデータが空です", f.Index)
	}

	img, err := jpeg.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("フレーム %d のJPEGデコードに失敗: %w", f.Index, err)
	}

	return img, nil
}
