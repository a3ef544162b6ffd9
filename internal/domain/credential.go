package domain

import "fmt"

// 認証情報の論理名
const (
	StepAPIKeyName   = "STEP_API_KEY"
	OpenAIAPIKeyName = "OPENAI_API_KEY"
)

// credentialPrefixLength は、診断用に表示してよい先頭文字数です
const credentialPrefixLength = 4

// Credential は、Bearer認証に使用するAPIキーを表す値オブジェクトです
// 解決後は不変で、値そのものはログに出力しません
type Credential struct {
	name   string
	value  string
	source string
}

// NewCredential は新しいCredentialを作成します
func NewCredential(name, value, source string) Credential {
	return Credential{name: name, value: value, source: source}
}

// Name は認証情報の論理名を返します
func (c Credential) Name() string { return c.name }

// Value は秘密の値を返します。Authorizationヘッダーの生成以外で使用しないでください
func (c Credential) Value() string { return c.value }

// Source は値を取得した設定ソース名を返します
func (c Credential) Source() string { return c.source }

// IsZero は認証情報が空かどうかを返します
func (c Credential) IsZero() bool { return c.value == "" }

// Prefix は診断用の先頭数文字を返します
func (c Credential) Prefix() string {
	runes := []rune(c.value)
	if len(runes) <= credentialPrefixLength {
		return string(runes)
	}
	return string(runes[:credentialPrefixLength])
}

// BearerToken はAuthorizationヘッダーの値を返します
func (c Credential) BearerToken() string {
	return "Bearer " + c.value
}

// String は値をマスクした文字列表現を返します
func (c Credential) String() string {
	if c.IsZero() {
		return fmt.Sprintf("Credential{%s: <empty>}", c.name)
	}
	return fmt.Sprintf("Credential{%s: %s...}", c.name, c.Prefix())
}

// GoString は%#vでの出力時も値をマスクします
func (c Credential) GoString() string {
	return c.String()
}
