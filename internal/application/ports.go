package application

import (
	"context"
	"time"

	"akibot/internal/domain"
)

// PromptEnhancer は、チャット補完APIでプロンプトを改善するクライアントのインターフェースです
type PromptEnhancer interface {
	// Enhance は、プロンプトを受け取って改善されたプロンプトを返します
	Enhance(ctx context.Context, prompt domain.Prompt) (string, error)

	// Model は使用するモデル名を返します
	Model() string
}

// ImageSynthesizer は、元画像とプロンプトから画像を生成するクライアントのインターフェースです
type ImageSynthesizer interface {
	// Synthesize は、元画像とプロンプトから画像を生成します
	Synthesize(ctx context.Context, source domain.SourceImage, prompt domain.Prompt) (*domain.GeneratedImage, error)

	// Model は使用するモデル名を返します
	Model() string
}

// 記録に使用する操作名
const (
	OperationEnhance    = "enhance"
	OperationSynthesize = "synthesize"
)

// OperationRecorder は、操作の結果を記録するインターフェースです
type OperationRecorder interface {
	RecordOperation(operation string, duration time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, time.Duration, error) {}
