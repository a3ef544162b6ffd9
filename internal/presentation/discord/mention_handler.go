package discord

import (
	"fmt"
	"strings"
	"sync"

	"akibot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnhanceFlag は、メンション本文でプロンプト改善を指定するフラグです
const EnhanceFlag = "--enhance"

// MentionHandler は、Discordのメンション処理を担当するハンドラーです
// 写真を添付してメンションすると、本文をプロンプトとして画像を生成します
type MentionHandler struct {
	session         *discordgo.Session
	botID           string
	usernameMu      sync.RWMutex
	botUsername     string
	deps            HandlerDeps
	responseHandler *ResponseHandler
	logger          *zap.Logger
}

// NewMentionHandler は新しいMentionHandlerインスタンスを作成します
func NewMentionHandler(session *discordgo.Session, botID string, deps HandlerDeps, responseHandler *ResponseHandler) *MentionHandler {
	deps = deps.withDefaults()
	if responseHandler == nil {
		responseHandler = NewResponseHandler()
	}
	return &MentionHandler{
		session:         session,
		botID:           botID,
		deps:            deps,
		responseHandler: responseHandler,
		logger:          deps.Logger.With(zap.String("component", "mention")),
	}
}

// SetupHandlers は、メンション関連のイベントハンドラを設定します
func (h *MentionHandler) SetupHandlers() {
	h.session.AddHandler(h.handleMessageCreate)
	h.session.AddHandler(h.handleReady)
}

// handleReady は、Botが準備完了した際のイベントを処理します
func (h *MentionHandler) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	h.logger.Info("Botが準備完了しました", zap.String("username", event.User.Username))
	h.setBotUsername(event.User.Username)
}

// setBotUsername は、Botのユーザー名を設定します
func (h *MentionHandler) setBotUsername(username string) {
	h.usernameMu.Lock()
	defer h.usernameMu.Unlock()
	h.botUsername = username
}

// username は、Botのユーザー名を返します
func (h *MentionHandler) username() string {
	h.usernameMu.RLock()
	defer h.usernameMu.RUnlock()
	return h.botUsername
}

// handleMessageCreate は、メッセージ作成イベントを処理します
func (h *MentionHandler) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Bot自身とほかのBotのメッセージは無視
	if m.Author == nil || m.Author.ID == h.botID || m.Author.Bot {
		return
	}

	// メンションされているかチェック
	if !h.isMentioned(m) {
		return
	}

	logger := h.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("channel_id", m.ChannelID),
		zap.String("guild_id", m.GuildID),
	)

	attachment := h.deps.Fetcher.FindImage(m.Attachments)
	if attachment == nil {
		h.reply(s, m, fmt.Sprintf("📷 写真を添付してメンションすると画像を生成します。\n本文に `%s` を含めるとプロンプトを改善してから生成します。", EnhanceFlag), logger)
		return
	}

	prompt, enhance := h.extractPrompt(m)
	if domain.NewPrompt(prompt).IsEmpty() {
		h.reply(s, m, h.responseHandler.formatError(domain.ErrInvalidPrompt), logger)
		return
	}

	if !h.deps.Busy.TryAcquire(m.ChannelID) {
		h.deps.Recorder.RecordBusyRejection()
		h.reply(s, m, h.responseHandler.formatBusy(), logger)
		return
	}

	logger.Info("画像生成リクエストを検出", zap.Bool("enhance", enhance))

	// 非同期で画像生成を処理
	go h.processImageGenerationAsync(s, m, attachment, prompt, enhance, logger)
}

// processImageGenerationAsync は、画像生成を非同期で処理します
func (h *MentionHandler) processImageGenerationAsync(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
	attachment *discordgo.MessageAttachment,
	prompt string,
	enhance bool,
	logger *zap.Logger,
) {
	defer h.deps.Busy.Release(m.ChannelID)

	// 処理中メッセージを送信
	thinkingMsg, err := s.ChannelMessageSendReply(m.ChannelID, "🎨 画像を生成中...", messageReference(m))
	if err != nil {
		logger.Warn("処理中メッセージの送信に失敗", zap.Error(err))
	}

	result, err := h.generate(m, attachment, prompt, enhance)

	// 処理中メッセージを削除
	if thinkingMsg != nil {
		if err := s.ChannelMessageDelete(m.ChannelID, thinkingMsg.ID); err != nil {
			logger.Warn("処理中メッセージの削除に失敗", zap.Error(err))
		}
	}

	if err != nil {
		logger.Error("画像生成に失敗", zap.Error(err))
		h.reply(s, m, h.responseHandler.formatError(err), logger)
		return
	}

	_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   h.responseHandler.formatGenerateResult(result),
		Files:     []*discordgo.File{h.responseHandler.imageFile(result.Image)},
		Reference: messageReference(m),
	})
	if err != nil {
		logger.Error("生成画像の送信に失敗", zap.Error(err))
		return
	}

	logger.Info("画像を生成しました", zap.Bool("enhanced", result.Enhanced))
}

// generate は、添付ファイルを読み込んで画像を生成します
func (h *MentionHandler) generate(m *discordgo.MessageCreate, attachment *discordgo.MessageAttachment, prompt string, enhance bool) (*domain.ImageGenerationResult, error) {
	source, err := h.deps.Fetcher.Fetch(h.deps.Context, attachment)
	if err != nil {
		return nil, err
	}

	requester := domain.Requester{
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
	}
	result, err := h.deps.Service.GenerateImage(h.deps.Context,
		newGenerationRequest(h.deps.Prompts, requester, source, prompt, enhance))
	if err != nil {
		return nil, err
	}
	rememberEnhanced(h.deps.Prompts, requester, result)
	return result, nil
}

// isMentioned は、メッセージがBotへのメンションかどうかを判定します
func (h *MentionHandler) isMentioned(m *discordgo.MessageCreate) bool {
	// メンション配列をチェック
	for _, mention := range m.Mentions {
		if mention.ID == h.botID {
			return true
		}
	}

	// メンション配列が空の場合、コンテンツをチェック
	username := h.username()
	if len(m.Mentions) == 0 && username != "" {
		content := strings.ToLower(m.Content)
		botMention := fmt.Sprintf("@%s", strings.ToLower(username))
		return strings.Contains(content, botMention)
	}

	return false
}

// extractPrompt は、メンション部分と改善フラグを除去したプロンプトを抽出します
func (h *MentionHandler) extractPrompt(m *discordgo.MessageCreate) (string, bool) {
	content := m.Content

	// メンション配列がある場合、それらを除去
	for _, mention := range m.Mentions {
		content = strings.ReplaceAll(content, fmt.Sprintf("<@%s>", mention.ID), "")
		content = strings.ReplaceAll(content, fmt.Sprintf("<@!%s>", mention.ID), "")
	}
	if username := h.username(); username != "" {
		content = strings.ReplaceAll(content, "@"+username, "")
	}

	enhance := false
	fields := strings.Fields(content)
	words := fields[:0]
	for _, field := range fields {
		if field == EnhanceFlag {
			enhance = true
			continue
		}
		words = append(words, field)
	}

	return strings.Join(words, " "), enhance
}

// reply は、元のメッセージにリプライします
func (h *MentionHandler) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string, logger *zap.Logger) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, messageReference(m)); err != nil {
		logger.Error("リプライの送信に失敗", zap.Error(err))
	}
}

// messageReference は、リプライ先のメッセージ参照を作成します
func messageReference(m *discordgo.MessageCreate) *discordgo.MessageReference {
	return &discordgo.MessageReference{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
	}
}
