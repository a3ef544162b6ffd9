package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
)

// JPEGDataURIPrefix は、JPEG画像を埋め込むデータURIの接頭辞です
const JPEGDataURIPrefix = "data:image/jpeg;base64,"

// EncodeJPEG は、画像を指定品質のJPEGにエンコードします
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("画像がありません")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI は、JPEGのバイト列をデータURIに変換します
func DataURI(jpegData []byte) string {
	return JPEGDataURIPrefix + base64.StdEncoding.EncodeToString(jpegData)
}

// EncodeDataURI は、画像をJPEGにエンコードしてデータURIを返します
// 2番目の戻り値はエンコード後のバイト数です
func EncodeDataURI(img image.Image, quality int) (string, int, error) {
	data, err := EncodeJPEG(img, quality)
	if err != nil {
		return "", 0, err
	}
	return DataURI(data), len(data), nil
}
