package booth

import (
	"image"
	"image/color"
	"image/draw"
)

// TransformOptions はフレーム変換の指定
type TransformOptions struct {
	Mirror    bool // 左右反転（自分の縦軸を中心に反転）
	Grayscale bool // 輝度を保ったままモノクロにする
}

// Transform はフレームを変換した新しい画像を返す
// 入力画像は変更しない。同じ入力と指定に対して常に同じ結果を返す
func Transform(src image.Image, opts TransformOptions) *image.RGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// 原点を(0,0)にそろえたRGBAへコピー
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	if opts.Mirror {
		mirror(dst)
	}
	if opts.Grayscale {
		grayscale(dst)
	}

	return dst
}

// mirror は画像を左右反転する（x軸のスケールを-1にして幅だけ平行移動するのと同じ）
func mirror(img *image.RGBA) {
	width, height := img.Rect.Dx(), img.Rect.Dy()

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for left, right := 0, width-1; left < right; left, right = left+1, right-1 {
			l, r := left*4, right*4
			row[l], row[r] = row[r], row[l]
			row[l+1], row[r+1] = row[r+1], row[l+1]
			row[l+2], row[r+2] = row[r+2], row[l+2]
			row[l+3], row[r+3] = row[r+3], row[l+3]
		}
	}
}

// grayscale は各ピクセルを輝度（BT.601）に置き換える。アルファは保持する
// R=G=B のピクセルは同じ値に変換されるため、2回適用しても結果は変わらない
func grayscale(img *image.RGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		c := color.RGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
		y := color.GrayModel.Convert(c).(color.Gray).Y
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = y, y, y
	}
}
