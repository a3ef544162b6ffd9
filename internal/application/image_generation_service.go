package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"akibot/internal/domain"

	"go.uber.org/zap"
)

// ImageGenerationService は、プロンプト改善と画像生成を呼び出し側の要求に応じて連結するサービスです
// 呼び出しごとに状態を持たず、並行して呼び出せます
type ImageGenerationService struct {
	enhancer    PromptEnhancer
	synthesizer ImageSynthesizer
	recorder    OperationRecorder
	logger      *zap.Logger
}

// NewImageGenerationService は新しいImageGenerationServiceインスタンスを作成します
func NewImageGenerationService(
	enhancer PromptEnhancer,
	synthesizer ImageSynthesizer,
	recorder OperationRecorder,
	logger *zap.Logger,
) *ImageGenerationService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageGenerationService{
		enhancer:    enhancer,
		synthesizer: synthesizer,
		recorder:    recorder,
		logger:      logger.With(zap.String("component", "image_generation_service")),
	}
}

// EnhancePrompt は、プロンプトを改善します
func (s *ImageGenerationService) EnhancePrompt(ctx context.Context, prompt domain.Prompt) (string, error) {
	if err := s.validatePrompt(prompt); err != nil {
		return "", err
	}

	start := time.Now()
	enhanced, err := s.enhancer.Enhance(ctx, prompt)
	s.recorder.RecordOperation(OperationEnhance, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("プロンプトの改善に失敗: %w", err)
	}

	return enhanced, nil
}

// GenerateImage は、元画像とプロンプトから画像を生成します
// 改善済みプロンプトがあればそれを使用し、Enhanceが指定されていれば先に改善を行います
func (s *ImageGenerationService) GenerateImage(ctx context.Context, request domain.ImageGenerationRequest) (*domain.ImageGenerationResult, error) {
	logger := s.logger.With(zap.String("channel_id", request.Requester.ChannelID))

	if err := s.validatePrompt(request.Prompt); err != nil {
		return nil, err
	}
	if request.Source.Image == nil {
		return nil, domain.InvalidRequestError("generate image", errors.New("元画像がありません"))
	}

	result := &domain.ImageGenerationResult{OriginalPrompt: request.Prompt.Content}

	if request.Enhance && request.EnhancedPrompt.IsEmpty() {
		enhanced, err := s.EnhancePrompt(ctx, request.Prompt)
		if err != nil {
			return nil, err
		}
		request.EnhancedPrompt = domain.NewPrompt(enhanced)
	}

	prompt := request.EffectivePrompt()
	result.UsedPrompt = prompt.Content
	result.Enhanced = !request.EnhancedPrompt.IsEmpty()

	logger.Info("画像生成サービス: 生成開始",
		zap.Bool("enhanced", result.Enhanced),
		zap.Int("source_width", request.Source.Width()),
		zap.Int("source_height", request.Source.Height()))

	start := time.Now()
	generated, err := s.synthesizer.Synthesize(ctx, request.Source, prompt)
	s.recorder.RecordOperation(OperationSynthesize, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("画像生成に失敗: %w", err)
	}

	result.Image = generated
	logger.Info("画像生成サービス: 生成完了",
		zap.Int("width", generated.Width()),
		zap.Int("height", generated.Height()))
	return result, nil
}

// Models は、使用中のモデル名を返します
func (s *ImageGenerationService) Models() (enhanceModel, synthesizeModel string) {
	return s.enhancer.Model(), s.synthesizer.Model()
}

// validatePrompt は、プロンプトが空でないことを検証します。長さの検証はリモートAPIに委ねます
func (s *ImageGenerationService) validatePrompt(prompt domain.Prompt) error {
	if prompt.IsEmpty() {
		return fmt.Errorf("プロンプトが空です: %w", domain.ErrInvalidPrompt)
	}
	return nil
}
