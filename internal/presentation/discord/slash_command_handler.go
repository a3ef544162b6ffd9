package discord

import (
	"fmt"

	"akibot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// スラッシュコマンド名
const (
	CommandEnhance  = "enhance"
	CommandGenerate = "generate"
	CommandStatus   = "status"
)

// Commands は、Botが登録するスラッシュコマンドの定義を返します
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandEnhance,
			Description: "画像生成用のプロンプトを改善します",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "改善するプロンプト",
					Required:    true,
				},
			},
		},
		{
			Name:        CommandGenerate,
			Description: "添付した写真とプロンプトから画像を生成します",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "image",
					Description: "元になる写真",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "生成したい画像の説明",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enhance",
					Description: "生成前にプロンプトを改善する（/enhance 済みのプロンプトは改善結果を再利用）",
					Required:    false,
				},
			},
		},
		{
			Name:        CommandStatus,
			Description: "Botの設定状況を表示します",
		},
	}
}

// SlashCommandHandler は、Discordのスラッシュコマンドを処理するハンドラーです
type SlashCommandHandler struct {
	session         *discordgo.Session
	deps            HandlerDeps
	responseHandler *ResponseHandler
	logger          *zap.Logger
}

// NewSlashCommandHandler は新しいSlashCommandHandlerインスタンスを作成します
func NewSlashCommandHandler(session *discordgo.Session, deps HandlerDeps, responseHandler *ResponseHandler) *SlashCommandHandler {
	deps = deps.withDefaults()
	if responseHandler == nil {
		responseHandler = NewResponseHandler()
	}
	return &SlashCommandHandler{
		session:         session,
		deps:            deps,
		responseHandler: responseHandler,
		logger:          deps.Logger.With(zap.String("component", "slash_command")),
	}
}

// SetupSlashCommands は、スラッシュコマンドを設定します
func (h *SlashCommandHandler) SetupSlashCommands() error {
	// BotのユーザーIDを取得
	user, err := h.session.User("@me")
	if err != nil {
		return fmt.Errorf("Botユーザー情報の取得に失敗: %w", err)
	}

	// グローバルコマンドとして登録
	for _, command := range Commands() {
		if _, err := h.session.ApplicationCommandCreate(user.ID, "", command); err != nil {
			h.logger.Error("スラッシュコマンドの登録に失敗", zap.String("command", command.Name), zap.Error(err))
			return err
		}
		h.logger.Info("スラッシュコマンドを登録しました", zap.String("command", command.Name))
	}

	return nil
}

// SetupSlashCommandHandlers は、スラッシュコマンドのハンドラーを設定します
func (h *SlashCommandHandler) SetupSlashCommandHandlers() {
	h.session.AddHandler(h.handleInteractionCreate)
}

// handleInteractionCreate は、インタラクション作成イベントを処理します
func (h *SlashCommandHandler) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	h.handleCommand(sessionResponder{session: s}, i.Interaction)
}

// handleCommand は、コマンド名に応じて処理を振り分けます
// 1つのインタラクションに対する応答はすべてこのゴルーチンで順に送信されます
func (h *SlashCommandHandler) handleCommand(r interactionResponder, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	logger := h.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("command", data.Name),
		zap.String("channel_id", i.ChannelID),
		zap.String("guild_id", i.GuildID),
	)

	switch data.Name {
	case CommandEnhance:
		h.handleEnhanceCommand(r, i, data, logger)
	case CommandGenerate:
		h.handleGenerateCommand(r, i, data, logger)
	case CommandStatus:
		h.handleStatusCommand(r, i, logger)
	default:
		logger.Warn("未知のスラッシュコマンド")
	}
}

// handleEnhanceCommand は、/enhanceコマンドを処理します
func (h *SlashCommandHandler) handleEnhanceCommand(r interactionResponder, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData, logger *zap.Logger) {
	prompt := stringOption(data.Options, "prompt")

	if !h.acquire(i.ChannelID) {
		h.respond(r, i, h.responseHandler.formatBusy(), true, logger)
		return
	}
	defer h.deps.Busy.Release(i.ChannelID)

	if !h.deferResponse(r, i, logger) {
		return
	}

	enhanced, err := h.deps.Service.EnhancePrompt(h.deps.Context, domain.NewPrompt(prompt))
	if err != nil {
		logger.Error("プロンプトの改善に失敗", zap.Error(err))
		h.editContent(r, i, h.responseHandler.formatError(err), nil, logger)
		return
	}
	h.deps.Prompts.Put(i.ChannelID, interactionRequester(i).UserID, prompt, enhanced)

	logger.Info("プロンプトを改善しました", zap.Int("length", len(enhanced)))
	h.editContent(r, i, h.responseHandler.formatEnhanceResult(prompt, enhanced), nil, logger)
}

// handleGenerateCommand は、/generateコマンドを処理します
func (h *SlashCommandHandler) handleGenerateCommand(r interactionResponder, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData, logger *zap.Logger) {
	options, err := parseGenerateOptions(data)
	if err != nil {
		h.respond(r, i, h.responseHandler.formatError(err), true, logger)
		return
	}

	if !h.acquire(i.ChannelID) {
		h.respond(r, i, h.responseHandler.formatBusy(), true, logger)
		return
	}
	defer h.deps.Busy.Release(i.ChannelID)

	if !h.deferResponse(r, i, logger) {
		return
	}

	source, err := h.deps.Fetcher.Fetch(h.deps.Context, options.attachment)
	if err != nil {
		logger.Warn("添付ファイルの読み込みに失敗", zap.Error(err))
		h.editContent(r, i, h.responseHandler.formatError(err), nil, logger)
		return
	}

	requester := interactionRequester(i)
	result, err := h.deps.Service.GenerateImage(h.deps.Context,
		newGenerationRequest(h.deps.Prompts, requester, source, options.prompt, options.enhance))
	if err != nil {
		logger.Error("画像生成に失敗", zap.Error(err))
		h.editContent(r, i, h.responseHandler.formatError(err), nil, logger)
		return
	}
	rememberEnhanced(h.deps.Prompts, requester, result)

	logger.Info("画像を生成しました",
		zap.Bool("enhanced", result.Enhanced),
		zap.Int("bytes", len(result.Image.Data)))
	h.editContent(r, i, h.responseHandler.formatGenerateResult(result),
		[]*discordgo.File{h.responseHandler.imageFile(result.Image)}, logger)
}

// handleStatusCommand は、/statusコマンドを処理します
func (h *SlashCommandHandler) handleStatusCommand(r interactionResponder, i *discordgo.Interaction, logger *zap.Logger) {
	enhanceModel, synthesizeModel := h.deps.Service.Models()
	message := h.responseHandler.formatStatus(enhanceModel, synthesizeModel, h.deps.Credentials, h.deps.Busy.State(i.ChannelID))
	h.respond(r, i, message, true, logger)
}

// acquire は、チャンネルを処理中にします。既に処理中の場合は拒否を記録します
func (h *SlashCommandHandler) acquire(channelID string) bool {
	if h.deps.Busy.TryAcquire(channelID) {
		return true
	}
	h.deps.Recorder.RecordBusyRejection()
	return false
}

// respond は、インタラクションに即時応答します
func (h *SlashCommandHandler) respond(r interactionResponder, i *discordgo.Interaction, content string, ephemeral bool, logger *zap.Logger) {
	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}
	if ephemeral {
		response.Data.Flags = discordgo.MessageFlagsEphemeral
	}

	if err := r.Respond(i, response); err != nil {
		logger.Error("インタラクションへの応答に失敗", zap.Error(err))
	}
}

// deferResponse は、時間のかかる処理の前に応答を保留します
func (h *SlashCommandHandler) deferResponse(r interactionResponder, i *discordgo.Interaction, logger *zap.Logger) bool {
	err := r.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		logger.Error("応答の保留に失敗", zap.Error(err))
		return false
	}
	return true
}

// editContent は、保留した応答を結果で置き換えます
func (h *SlashCommandHandler) editContent(r interactionResponder, i *discordgo.Interaction, content string, files []*discordgo.File, logger *zap.Logger) {
	edit := &discordgo.WebhookEdit{
		Content: &content,
		Files:   files,
	}
	if err := r.Edit(i, edit); err != nil {
		logger.Error("応答の更新に失敗", zap.Error(err))
	}
}

// generateOptions は、/generateコマンドの引数です
type generateOptions struct {
	attachment *discordgo.MessageAttachment
	prompt     string
	enhance    bool
}

// parseGenerateOptions は、/generateコマンドの引数を解析します
func parseGenerateOptions(data discordgo.ApplicationCommandInteractionData) (generateOptions, error) {
	options := generateOptions{
		prompt:  stringOption(data.Options, "prompt"),
		enhance: boolOption(data.Options, "enhance"),
	}

	if domain.NewPrompt(options.prompt).IsEmpty() {
		return options, fmt.Errorf("プロンプトが空です: %w", domain.ErrInvalidPrompt)
	}

	attachmentID := stringOption(data.Options, "image")
	if attachmentID != "" && data.Resolved != nil {
		options.attachment = data.Resolved.Attachments[attachmentID]
	}
	if options.attachment == nil {
		return options, fmt.Errorf("画像が添付されていません: %w", domain.ErrUnsupportedAttachment)
	}

	return options, nil
}

// stringOption は、指定された名前の文字列オプションを返します
func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option.Name != name {
			continue
		}
		if value, ok := option.Value.(string); ok {
			return value
		}
	}
	return ""
}

// boolOption は、指定された名前の真偽値オプションを返します
func boolOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	for _, option := range options {
		if option.Name != name {
			continue
		}
		if value, ok := option.Value.(bool); ok {
			return value
		}
	}
	return false
}

// interactionRequester は、インタラクションの送信者を返します
func interactionRequester(i *discordgo.Interaction) domain.Requester {
	requester := domain.Requester{
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user != nil {
		requester.UserID = user.ID
		requester.Username = user.Username
	}
	return requester
}

// newGenerationRequest は、画像生成の要求を作成します
// 改善が指定され、同じプロンプトを改善済みであれば、その結果を改善済みプロンプトとして渡します
func newGenerationRequest(prompts *EnhancedPromptStore, requester domain.Requester, source domain.SourceImage, prompt string, enhance bool) domain.ImageGenerationRequest {
	request := domain.ImageGenerationRequest{
		Requester: requester,
		Source:    source,
		Prompt:    domain.NewPrompt(prompt),
		Enhance:   enhance,
	}
	if !enhance {
		return request
	}
	if enhanced, ok := prompts.Lookup(requester.ChannelID, requester.UserID, prompt); ok {
		request.EnhancedPrompt = domain.NewPrompt(enhanced)
	}
	return request
}

// rememberEnhanced は、生成時に改善したプロンプトを記録します
func rememberEnhanced(prompts *EnhancedPromptStore, requester domain.Requester, result *domain.ImageGenerationResult) {
	if result == nil || !result.Enhanced {
		return
	}
	prompts.Put(requester.ChannelID, requester.UserID, result.OriginalPrompt, result.UsedPrompt)
}
