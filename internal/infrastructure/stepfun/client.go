package stepfun

import (
	"context"
	"time"

	"akibot/internal/domain"
	"akibot/internal/infrastructure/apiclient"
	"akibot/internal/infrastructure/config"
	"akibot/internal/infrastructure/imaging"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	imageToImagePath = "/v1/images/image2image"
	opSynthesize     = "synthesize image"
)

// imageToImageRequest は、画像生成APIのリクエスト本文です
type imageToImageRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	SourceURL      string  `json:"source_url"`
	Seed           int     `json:"seed"`
	SourceWeight   float64 `json:"source_weight"`
	ResponseFormat string  `json:"response_format"`
}

// ImageSynthesizer は、元画像とプロンプトから新しい画像を生成するクライアントです
type ImageSynthesizer struct {
	api    *apiclient.Client
	config *config.StepConfig
	logger *zap.Logger
}

// NewImageSynthesizer は新しいImageSynthesizerインスタンスを作成します
func NewImageSynthesizer(stepConfig *config.StepConfig, logger *zap.Logger) *ImageSynthesizer {
	if stepConfig == nil {
		stepConfig = config.DefaultStepConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "image_synthesizer"))

	return &ImageSynthesizer{
		api: apiclient.New(apiclient.Config{
			BaseURL:    stepConfig.BaseURL,
			Credential: stepConfig.APIKey,
			Timeout:    stepConfig.Timeout,
		}, logger),
		config: stepConfig,
		logger: logger,
	}
}

// Model は使用するモデル名を返します
func (s *ImageSynthesizer) Model() string {
	return s.config.ModelName
}

// Synthesize は、元画像を必要に応じて縮小・エンコードして送信し、生成された画像を返します
// 縮小に失敗した場合は元の画像で続行しますが、エンコードに失敗した場合は送信しません
func (s *ImageSynthesizer) Synthesize(ctx context.Context, source domain.SourceImage, prompt domain.Prompt) (*domain.GeneratedImage, error) {
	img := source.Image
	resized, err := imaging.ResizeIfNeeded(img, s.config.MaxDimension)
	if err != nil {
		s.logger.Warn("画像の縮小に失敗したため、元の画像を使用します",
			zap.Int("width", source.Width()),
			zap.Int("height", source.Height()),
			zap.Error(err))
	} else {
		img = resized
	}

	dataURI, size, err := imaging.EncodeDataURI(img, s.config.JPEGQuality)
	if err != nil {
		return nil, domain.ImageConversionError(opSynthesize, err)
	}
	if size > domain.MaxEncodedImageSize {
		s.logger.Warn("エンコード後の画像サイズが上限の目安を超えています",
			zap.Int("bytes", size),
			zap.Int("limit", domain.MaxEncodedImageSize))
	}

	s.logger.Info("画像生成をリクエスト中",
		zap.String("model", s.config.ModelName),
		zap.Int("source_width", source.Width()),
		zap.Int("source_height", source.Height()),
		zap.Int("sent_width", img.Bounds().Dx()),
		zap.Int("sent_height", img.Bounds().Dy()),
		zap.Int("jpeg_bytes", size))

	start := time.Now()
	resp, err := s.api.PostJSON(ctx, opSynthesize, imageToImagePath, imageToImageRequest{
		Model:          s.config.ModelName,
		Prompt:         prompt.Content,
		SourceURL:      dataURI,
		Seed:           domain.ImageSynthesisSeed,
		SourceWeight:   domain.ImageSynthesisSourceWeight,
		ResponseFormat: domain.ImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}

	generated, err := parseImageResponse(resp)
	if err != nil {
		return nil, err
	}
	generated.Model = s.config.ModelName
	generated.Prompt = prompt.Content

	s.logger.Info("画像生成が完了",
		zap.Int("width", generated.Width()),
		zap.Int("height", generated.Height()),
		zap.String("format", generated.Format),
		zap.Duration("elapsed", time.Since(start)))
	return generated, nil
}

// parseImageResponse は、data[0].b64_json をデコードして画像を返します
func parseImageResponse(resp *apiclient.Response) (*domain.GeneratedImage, error) {
	if len(resp.Body) == 0 {
		return nil, domain.MalformedResponseError(opSynthesize, "応答本文が空です (status=%d)", resp.StatusCode)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, domain.MalformedResponseError(opSynthesize, "応答がJSONではありません (status=%d)", resp.StatusCode)
	}

	data := gjson.GetBytes(resp.Body, "data")
	if !data.IsArray() {
		return nil, domain.MalformedResponseError(opSynthesize, "data配列がありません (status=%d)", resp.StatusCode)
	}

	items := data.Array()
	if len(items) == 0 {
		return nil, domain.MalformedResponseError(opSynthesize, "data配列が空です (status=%d)", resp.StatusCode)
	}

	b64 := items[0].Get("b64_json")
	if b64.Type != gjson.String {
		return nil, domain.MalformedResponseError(opSynthesize, "b64_jsonがありません (status=%d)", resp.StatusCode)
	}

	img, raw, format, err := imaging.DecodeBase64Image(b64.Str)
	if err != nil {
		return nil, domain.MalformedResponseError(opSynthesize, "生成画像をデコードできません: %w", err)
	}

	return &domain.GeneratedImage{
		Image:  img,
		Format: format,
		Data:   raw,
	}, nil
}
