package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"akibot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// DiscordMessageLimit は、Discordのメッセージ文字数制限です
const DiscordMessageLimit = 2000

// ResponseHandler は、Discordへの応答内容のフォーマットを担当するハンドラーです
type ResponseHandler struct{}

// NewResponseHandler は新しいResponseHandlerインスタンスを作成します
func NewResponseHandler() *ResponseHandler {
	return &ResponseHandler{}
}

// formatEnhanceResult は、改善されたプロンプトを表示用にフォーマットします
func (h *ResponseHandler) formatEnhanceResult(original, enhanced string) string {
	header := fmt.Sprintf("✨ **プロンプトを改善しました**\n> %s\n\n", h.truncate(original, 300))
	return header + h.truncate(enhanced, DiscordMessageLimit-utf8.RuneCountInString(header))
}

// formatGenerateResult は、画像生成結果に添えるメッセージをフォーマットします
func (h *ResponseHandler) formatGenerateResult(result *domain.ImageGenerationResult) string {
	var b strings.Builder
	b.WriteString("🎨 **画像を生成しました**\n")
	if result.Enhanced {
		b.WriteString(fmt.Sprintf("📝 元のプロンプト: %s\n", h.truncate(result.OriginalPrompt, 300)))
		b.WriteString(fmt.Sprintf("✨ 改善後のプロンプト: %s\n", h.truncate(result.UsedPrompt, 1200)))
	} else {
		b.WriteString(fmt.Sprintf("📝 プロンプト: %s\n", h.truncate(result.UsedPrompt, 1500)))
	}
	if result.Image != nil {
		b.WriteString(fmt.Sprintf("🖼️ %dx%d (%s)", result.Image.Width(), result.Image.Height(), result.Image.Model))
	}
	return h.truncate(b.String(), DiscordMessageLimit)
}

// imageFile は、生成された画像をアップロード用のファイルに変換します
func (h *ResponseHandler) imageFile(image *domain.GeneratedImage) *discordgo.File {
	contentType := "image/jpeg"
	switch image.Format {
	case "png":
		contentType = "image/png"
	case "webp":
		contentType = "image/webp"
	}
	return &discordgo.File{
		Name:        image.Filename(),
		ContentType: contentType,
		Reader:      bytes.NewReader(image.Data),
	}
}

// formatStatus は、/statusコマンドの応答をフォーマットします
func (h *ResponseHandler) formatStatus(enhanceModel, synthesizeModel string, credentials []domain.Credential, state BusyState) string {
	var b strings.Builder
	b.WriteString("📊 **Bot設定状況**\n\n")
	for _, credential := range credentials {
		if credential.IsZero() {
			b.WriteString(fmt.Sprintf("❌ **%s**: 未設定\n", credential.Name()))
			continue
		}
		b.WriteString(fmt.Sprintf("✅ **%s**: `%s...` (%s)\n", credential.Name(), credential.Prefix(), credential.Source()))
	}
	b.WriteString(fmt.Sprintf("🤖 **プロンプト改善モデル**: %s\n", enhanceModel))
	b.WriteString(fmt.Sprintf("🎨 **画像生成モデル**: %s\n", synthesizeModel))
	b.WriteString(fmt.Sprintf("⏳ **このチャンネル**: %s", state))
	return b.String()
}

// formatBusy は、処理中のチャンネルへの応答です
func (h *ResponseHandler) formatBusy() string {
	return "⏳ **このチャンネルでは処理中です**\n完了してから再度お試しください。"
}

// truncate は、文字列を指定した文字数に収めます
func (h *ResponseHandler) truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// isTimeoutError は、エラーがタイムアウトエラーかどうかを判定します
func (h *ResponseHandler) isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// タイムアウト関連のエラーメッセージを検出
	errorMsg := strings.ToLower(err.Error())
	for _, keyword := range []string{"timeout", "タイムアウト", "deadline exceeded"} {
		if strings.Contains(errorMsg, keyword) {
			return true
		}
	}

	return false
}

// formatError は、エラーを種別に応じたメッセージにフォーマットします
func (h *ResponseHandler) formatError(err error) string {
	if err == nil {
		return "❌ **不明なエラーが発生しました**"
	}

	if h.isTimeoutError(err) {
		return "⏰ **タイムアウトしました**\n処理に時間がかかりすぎました。しばらく待ってから再度お試しください。"
	}

	switch domain.ErrorKind(err) {
	case domain.ErrInvalidPrompt:
		return "✏️ **プロンプトを入力してください**\n生成したい画像の内容を文章で指定してください。"
	case domain.ErrUnsupportedAttachment:
		return "🖼️ **添付ファイルを画像として読み込めませんでした**\nJPEG・PNG・GIF・WebPの画像を添付してください。"
	case domain.ErrConfiguration:
		return "🔑 **APIキーが設定されていません**\nBotの管理者に連絡してください。"
	case domain.ErrTransport:
		return "📡 **APIに接続できませんでした**\nしばらく待ってから再度お試しください。"
	case domain.ErrMalformedResponse:
		return "⚠️ **APIから不正な応答が返されました**\nプロンプトや画像を変えて再度お試しください。"
	case domain.ErrImageConversion:
		return "🖼️ **画像の変換に失敗しました**\n別の画像でお試しください。"
	case domain.ErrInvalidRequest:
		return "❌ **リクエストを作成できませんでした**\n入力内容を確認してください。"
	default:
		return fmt.Sprintf("❌ **エラーが発生しました**\n%s", h.truncate(err.Error(), 1500))
	}
}
