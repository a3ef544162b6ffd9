package domain

import (
	"errors"
	"fmt"
)

// ドメイン固有のエラー種別を定義
var (
	// ErrTransport は、ネットワークや接続レベルの失敗を表します
	ErrTransport = errors.New("通信エラー")

	// ErrMalformedResponse は、応答が期待したJSON構造と一致しない場合のエラーです
	ErrMalformedResponse = errors.New("不正な応答です")

	// ErrImageConversion は、送信前の画像エンコードに失敗した場合のエラーです
	ErrImageConversion = errors.New("画像の変換に失敗しました")

	// ErrInvalidRequest は、リクエストのシリアライズに失敗した場合のエラーです
	ErrInvalidRequest = errors.New("無効なリクエストです")

	// ErrConfiguration は、必要な認証情報がどの設定ソースにも存在しない場合のエラーです
	ErrConfiguration = errors.New("設定エラー")

	// ErrInvalidPrompt は、無効なプロンプトの場合のエラーです
	ErrInvalidPrompt = errors.New("無効なプロンプトです")

	// ErrUnsupportedAttachment は、添付ファイルを元画像として扱えない場合のエラーです
	ErrUnsupportedAttachment = errors.New("画像として読み込めない添付ファイルです")
)

// OperationError は、操作名とエラー種別、原因を保持するエラーです
// errors.Is は種別と原因の両方に一致します
type OperationError struct {
	Op   string
	Kind error
	Err  error
}

// NewOperationError は新しいOperationErrorを作成します
func NewOperationError(op string, kind error, err error) *OperationError {
	return &OperationError{Op: op, Kind: kind, Err: err}
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap は種別と原因の両方を返します
func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// TransportError は、通信エラーを作成します
func TransportError(op string, err error) error {
	return NewOperationError(op, ErrTransport, err)
}

// MalformedResponseError は、不正な応答エラーを作成します
func MalformedResponseError(op string, format string, args ...any) error {
	return NewOperationError(op, ErrMalformedResponse, fmt.Errorf(format, args...))
}

// ImageConversionError は、画像変換エラーを作成します
func ImageConversionError(op string, err error) error {
	return NewOperationError(op, ErrImageConversion, err)
}

// InvalidRequestError は、無効なリクエストエラーを作成します
func InvalidRequestError(op string, err error) error {
	return NewOperationError(op, ErrInvalidRequest, err)
}

// ConfigurationError は、設定エラーを作成します
func ConfigurationError(name string) error {
	return NewOperationError("resolve "+name, ErrConfiguration,
		fmt.Errorf("%s がどの設定ソースにも見つかりません", name))
}

// ErrorKind は、エラーに対応する種別を返します。該当しない場合はnilを返します
func ErrorKind(err error) error {
	for _, kind := range []error{
		ErrTransport,
		ErrMalformedResponse,
		ErrImageConversion,
		ErrInvalidRequest,
		ErrConfiguration,
		ErrInvalidPrompt,
		ErrUnsupportedAttachment,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
