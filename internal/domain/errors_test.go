package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationError_IsKindAndCause(t *testing.T) {
	err := TransportError("enhance", io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "enhance")
}

func TestOperationError_As(t *testing.T) {
	err := MalformedResponseError("synthesize", "data配列が空です")

	var opErr *OperationError
	if assert.True(t, errors.As(err, &opErr)) {
		assert.Equal(t, "synthesize", opErr.Op)
		assert.Equal(t, ErrMalformedResponse, opErr.Kind)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "通信エラー", err: TransportError("op", io.EOF), want: ErrTransport},
		{name: "不正な応答", err: MalformedResponseError("op", "x"), want: ErrMalformedResponse},
		{name: "画像変換", err: ImageConversionError("op", io.EOF), want: ErrImageConversion},
		{name: "無効なリクエスト", err: InvalidRequestError("op", io.EOF), want: ErrInvalidRequest},
		{name: "設定エラー", err: ConfigurationError(StepAPIKeyName), want: ErrConfiguration},
		{name: "ラップされたエラー", err: errors.Join(errors.New("outer"), TransportError("op", nil)), want: ErrTransport},
		{name: "添付ファイル", err: fmt.Errorf("読み込み失敗: %w", ErrUnsupportedAttachment), want: ErrUnsupportedAttachment},
		{name: "分類不能", err: io.EOF, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
