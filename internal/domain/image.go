package domain

import "image"

// 画像処理に関する制約値
const (
	// MaxImageDimension は、送信する画像の縦横それぞれの最大ピクセル数です
	MaxImageDimension = 2048

	// MaxEncodedImageSize は、エンコード後の画像サイズの目安です。超過しても拒否はしません
	MaxEncodedImageSize = 10 * 1024 * 1024

	// DefaultJPEGQuality は、送信時のJPEG品質です（0.8相当）
	DefaultJPEGQuality = 80
)

// SourceImage は、ユーザーが撮影・選択した画像を表すドメインオブジェクトです
type SourceImage struct {
	Image  image.Image
	Format string
}

// NewSourceImage は新しいSourceImageを作成します
func NewSourceImage(img image.Image, format string) SourceImage {
	return SourceImage{Image: img, Format: format}
}

// Width は画像の幅を返します
func (s SourceImage) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height は画像の高さを返します
func (s SourceImage) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// GeneratedImage は、画像生成APIから返された画像です
type GeneratedImage struct {
	Image  image.Image
	Format string
	Data   []byte
	Model  string
	Prompt string
}

// Width は画像の幅を返します
func (g *GeneratedImage) Width() int {
	return g.Image.Bounds().Dx()
}

// Height は画像の高さを返します
func (g *GeneratedImage) Height() int {
	return g.Image.Bounds().Dy()
}

// Filename はアップロード時のファイル名を返します
func (g *GeneratedImage) Filename() string {
	switch g.Format {
	case "png":
		return "generated.png"
	case "webp":
		return "generated.webp"
	default:
		return "generated.jpg"
	}
}
