package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"

	// 対応する画像フォーマットを登録
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxDecodePixels は、デコードを許可する画素数の上限です
const MaxDecodePixels = 50_000_000

// ErrTooManyPixels は、ヘッダーの画素数が上限を超える場合のエラーです
var ErrTooManyPixels = errors.New("画像の画素数が上限を超えています")

// DecodeImage は、登録済みのフォーマット（jpeg/png/gif/webp）で画像をデコードします
// ヘッダーを先に読み、画素数が MaxDecodePixels を超える画像はデコードしません
func DecodeImage(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("画像の読み込みに失敗: %w", err)
	}
	return decodeBytes(data, MaxDecodePixels)
}

// decodeBytes は、画素数を確認してから画像をデコードします
func decodeBytes(data []byte, maxPixels int) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("画像のデコードに失敗: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("画像のデコードに失敗: %w", err)
	}
	return img, format, nil
}

// DecodeBase64Image は、base64文字列をデコードして画像と元のバイト列を返します
func DecodeBase64Image(payload string) (image.Image, []byte, string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, nil, "", fmt.Errorf("base64のデコードに失敗: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, "", fmt.Errorf("画像データが空です")
	}

	img, format, err := decodeBytes(data, MaxDecodePixels)
	if err != nil {
		return nil, nil, "", err
	}
	return img, data, format, nil
}
