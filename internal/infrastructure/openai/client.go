package openai

import (
	"context"
	"strings"
	"time"

	"akibot/internal/domain"
	"akibot/internal/infrastructure/apiclient"
	"akibot/internal/infrastructure/config"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	opEnhance           = "enhance prompt"
)

// chatMessage は、チャット補完APIのメッセージです
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest は、チャット補完APIのリクエスト本文です
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// PromptEnhancer は、チャット補完APIでプロンプトを改善するクライアントです
type PromptEnhancer struct {
	api    *apiclient.Client
	config *config.OpenAIConfig
	logger *zap.Logger
}

// NewPromptEnhancer は新しいPromptEnhancerインスタンスを作成します
func NewPromptEnhancer(openAIConfig *config.OpenAIConfig, logger *zap.Logger) *PromptEnhancer {
	if openAIConfig == nil {
		openAIConfig = config.DefaultOpenAIConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "prompt_enhancer"))

	return &PromptEnhancer{
		api: apiclient.New(apiclient.Config{
			BaseURL:    openAIConfig.BaseURL,
			Credential: openAIConfig.APIKey,
			Timeout:    openAIConfig.Timeout,
		}, logger),
		config: openAIConfig,
		logger: logger,
	}
}

// Model は使用するモデル名を返します
func (e *PromptEnhancer) Model() string {
	return e.config.ModelName
}

// newRequest は、固定のシステム指示とユーザープロンプトからリクエストを作成します
func (e *PromptEnhancer) newRequest(prompt domain.Prompt) chatCompletionRequest {
	return chatCompletionRequest{
		Model: e.config.ModelName,
		Messages: []chatMessage{
			{Role: "system", Content: domain.EnhancementSystemPrompt},
			{Role: "user", Content: prompt.Content},
		},
		Temperature: e.config.Temperature,
	}
}

// Enhance は、プロンプトに視覚的な詳細やスタイルを加えた改善版を返します
// 応答の構造が期待と異なる場合は元のプロンプトにフォールバックせず、エラーを返します
func (e *PromptEnhancer) Enhance(ctx context.Context, prompt domain.Prompt) (string, error) {
	e.logger.Info("プロンプトの改善をリクエスト中",
		zap.String("model", e.config.ModelName),
		zap.Int("prompt_length", len(prompt.Content)))

	start := time.Now()
	resp, err := e.api.PostJSON(ctx, opEnhance, chatCompletionsPath, e.newRequest(prompt))
	if err != nil {
		return "", err
	}

	enhanced, err := parseChatCompletion(resp)
	if err != nil {
		return "", err
	}

	e.logger.Info("プロンプトの改善が完了",
		zap.Int("enhanced_length", len(enhanced)),
		zap.Duration("elapsed", time.Since(start)))
	return enhanced, nil
}

// parseChatCompletion は、choices[0].message.content を取り出して前後の空白を除去します
func parseChatCompletion(resp *apiclient.Response) (string, error) {
	if len(resp.Body) == 0 {
		return "", domain.MalformedResponseError(opEnhance, "応答本文が空です (status=%d)", resp.StatusCode)
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", domain.MalformedResponseError(opEnhance, "応答がJSONではありません (status=%d)", resp.StatusCode)
	}

	choices := gjson.GetBytes(resp.Body, "choices")
	if !choices.IsArray() {
		return "", domain.MalformedResponseError(opEnhance, "choices配列がありません (status=%d)", resp.StatusCode)
	}

	items := choices.Array()
	if len(items) == 0 {
		return "", domain.MalformedResponseError(opEnhance, "choices配列が空です (status=%d)", resp.StatusCode)
	}

	content := items[0].Get("message.content")
	if content.Type != gjson.String {
		return "", domain.MalformedResponseError(opEnhance, "message.contentがありません (status=%d)", resp.StatusCode)
	}

	return strings.TrimSpace(content.Str), nil
}
