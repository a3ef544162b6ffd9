package discord

import (
	"context"

	"akibot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ImageService は、プロンプト改善と画像生成を提供するサービスのインターフェースです
type ImageService interface {
	EnhancePrompt(ctx context.Context, prompt domain.Prompt) (string, error)
	GenerateImage(ctx context.Context, request domain.ImageGenerationRequest) (*domain.ImageGenerationResult, error)
	Models() (enhanceModel, synthesizeModel string)
}

// ImageFetcher は、添付ファイルを元画像として読み込むインターフェースです
type ImageFetcher interface {
	FindImage(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment
	Fetch(ctx context.Context, attachment *discordgo.MessageAttachment) (domain.SourceImage, error)
}

// BusyRecorder は、処理中のため拒否した操作を記録するインターフェースです
type BusyRecorder interface {
	RecordBusyRejection()
}

type noopBusyRecorder struct{}

func (noopBusyRecorder) RecordBusyRejection() {}

// HandlerDeps は、ハンドラーが使用する依存関係です
type HandlerDeps struct {
	Service     ImageService
	Fetcher     ImageFetcher
	Busy        *BusyTracker
	Prompts     *EnhancedPromptStore
	Recorder    BusyRecorder
	Credentials []domain.Credential
	Logger      *zap.Logger
	// Context は、処理全体の親コンテキストです。Bot停止時にキャンセルされます
	Context context.Context
}

func (d HandlerDeps) withDefaults() HandlerDeps {
	if d.Busy == nil {
		d.Busy = NewBusyTracker()
	}
	if d.Prompts == nil {
		d.Prompts = NewEnhancedPromptStore()
	}
	if d.Recorder == nil {
		d.Recorder = noopBusyRecorder{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Context == nil {
		d.Context = context.Background()
	}
	return d
}

// DiscordHandler は、Discordのイベントハンドラです
type DiscordHandler struct {
	session             *discordgo.Session
	botID               string
	mentionHandler      *MentionHandler
	slashCommandHandler *SlashCommandHandler
}

// NewDiscordHandler は新しいDiscordHandlerインスタンスを作成します
// スラッシュコマンドとメンションは同じBusyTrackerと改善済みプロンプトを共有します
func NewDiscordHandler(session *discordgo.Session, botID string, deps HandlerDeps) *DiscordHandler {
	deps = deps.withDefaults()

	// ResponseHandlerを作成
	responseHandler := NewResponseHandler()

	return &DiscordHandler{
		session:             session,
		botID:               botID,
		mentionHandler:      NewMentionHandler(session, botID, deps, responseHandler),
		slashCommandHandler: NewSlashCommandHandler(session, deps, responseHandler),
	}
}

// SlashCommandHandler は、スラッシュコマンドハンドラーを返します
func (h *DiscordHandler) SlashCommandHandler() *SlashCommandHandler {
	return h.slashCommandHandler
}

// SetupHandlers は、Discordのイベントハンドラを設定します
func (h *DiscordHandler) SetupHandlers() {
	// メンションハンドラーを設定
	h.mentionHandler.SetupHandlers()

	// スラッシュコマンドハンドラーを設定
	h.slashCommandHandler.SetupSlashCommandHandlers()
}

// interactionResponder は、インタラクションへの応答を送信します
type interactionResponder interface {
	Respond(interaction *discordgo.Interaction, response *discordgo.InteractionResponse) error
	Edit(interaction *discordgo.Interaction, edit *discordgo.WebhookEdit) error
}

// sessionResponder は、discordgoのセッションで応答を送信します
type sessionResponder struct {
	session *discordgo.Session
}

func (r sessionResponder) Respond(interaction *discordgo.Interaction, response *discordgo.InteractionResponse) error {
	return r.session.InteractionRespond(interaction, response)
}

func (r sessionResponder) Edit(interaction *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	_, err := r.session.InteractionResponseEdit(interaction, edit)
	return err
}
