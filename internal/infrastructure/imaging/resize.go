package imaging

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// TargetSize は、最大辺maxDimに収まるようアスペクト比を保って縮小したサイズを返します
// 既に収まっている場合は元のサイズをそのまま返します
func TargetSize(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}

	scale := math.Min(float64(maxDim)/float64(width), float64(maxDim)/float64(height))
	return scaleDimension(width, scale, maxDim), scaleDimension(height, scale, maxDim)
}

// scaleDimension は、1辺を縮小して[1, maxDim]の範囲に丸めます
func scaleDimension(dim int, scale float64, maxDim int) int {
	scaled := int(math.Round(float64(dim) * scale))
	if scaled < 1 {
		return 1
	}
	if scaled > maxDim {
		return maxDim
	}
	return scaled
}

// ResizeIfNeeded は、画像が最大辺を超える場合に縮小します
// 収まっている場合は同じ画像をそのまま返します
func ResizeIfNeeded(img image.Image, maxDim int) (resized image.Image, err error) {
	if img == nil {
		return nil, fmt.Errorf("画像がありません")
	}
	if maxDim <= 0 {
		return nil, fmt.Errorf("最大辺は正の値である必要があります: %d", maxDim)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("画像のサイズが不正です: %dx%d", width, height)
	}

	newWidth, newHeight := TargetSize(width, height, maxDim)
	if newWidth == width && newHeight == height {
		return img, nil
	}

	// draw内部でのpanicは縮小失敗として扱う
	defer func() {
		if r := recover(); r != nil {
			resized = nil
			err = fmt.Errorf("画像の縮小に失敗: %v", r)
		}
	}()

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst, nil
}
