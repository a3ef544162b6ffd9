package domain

import (
	"fmt"
	"strings"
)

// Prompt は、画像の内容やスタイルを記述するテキストを表現する値オブジェクトです
// 長さの検証はリモートAPIに委ねます
type Prompt struct {
	Content string
}

// NewPrompt は新しいPromptを作成します
func NewPrompt(content string) Prompt {
	return Prompt{Content: content}
}

// IsEmpty は、空白を除いた内容が空かどうかを判定します
func (p Prompt) IsEmpty() bool {
	return strings.TrimSpace(p.Content) == ""
}

// String はPromptの内容を返します
func (p Prompt) String() string {
	return p.Content
}

// Requester は、操作を要求したユーザーを表す値オブジェクトです
type Requester struct {
	ChannelID string
	GuildID   string
	UserID    string
	Username  string
}

// String はRequesterの文字列表現を返します
func (r Requester) String() string {
	return fmt.Sprintf("Requester{ChannelID: %s, GuildID: %s, User: %s}", r.ChannelID, r.GuildID, r.Username)
}

// ImageGenerationRequest は、画像生成の要求を表します
type ImageGenerationRequest struct {
	Requester Requester
	Source    SourceImage
	Prompt    Prompt
	// EnhancedPrompt が空でない場合、Promptの代わりに使用されます
	EnhancedPrompt Prompt
	// Enhance がtrueでEnhancedPromptが空の場合、生成前にプロンプトを改善します
	Enhance bool
}

// EffectivePrompt は、実際に送信するプロンプトを返します
func (r ImageGenerationRequest) EffectivePrompt() Prompt {
	if !r.EnhancedPrompt.IsEmpty() {
		return r.EnhancedPrompt
	}
	return r.Prompt
}

// ImageGenerationResult は、画像生成の結果を表すドメインオブジェクトです
type ImageGenerationResult struct {
	Image          *GeneratedImage
	OriginalPrompt string
	UsedPrompt     string
	Enhanced       bool
}
