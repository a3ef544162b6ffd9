package config

import (
	"time"

	"akibot/internal/domain"
)

// OpenAIConfig は、プロンプト改善に使用するチャットAPI関連の設定を定義します
type OpenAIConfig struct {
	APIKey      domain.Credential
	BaseURL     string
	ModelName   string
	Temperature float64
	Timeout     time.Duration // 0の場合はトランスポートのデフォルト
}

// StepConfig は、画像生成API関連の設定を定義します
type StepConfig struct {
	APIKey       domain.Credential
	BaseURL      string
	ModelName    string
	Timeout      time.Duration // 0の場合はトランスポートのデフォルト
	MaxDimension int           // 送信前に縮小する最大辺
	JPEGQuality  int
}

// BotConfig は、Bot関連の設定を定義します
type BotConfig struct {
	RegisterCommands bool
	LogLevel         string
}

// DiscordConfig は、Discord関連の設定を定義します
type DiscordConfig struct {
	BotToken string
}

// MetricsConfig は、メトリクス公開の設定を定義します
type MetricsConfig struct {
	Addr      string // 空の場合は無効
	Namespace string
}

// CredentialSourceConfig は、認証情報の設定ソースの場所を定義します
type CredentialSourceConfig struct {
	AppConfigFile   string // バンドルされたアプリケーション設定（YAML）
	BuildConfigFile string // ビルド時設定ファイル（KEY=VALUE）
}

// DefaultOpenAIConfig は、デフォルトのチャットAPI設定を返します
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		BaseURL:     "https://api.openai.com",
		ModelName:   "gpt-4",
		Temperature: domain.EnhancementTemperature,
	}
}

// DefaultStepConfig は、デフォルトの画像生成API設定を返します
func DefaultStepConfig() *StepConfig {
	return &StepConfig{
		BaseURL:      "https://api.stepfun.com",
		ModelName:    "step-1x-medium",
		MaxDimension: domain.MaxImageDimension,
		JPEGQuality:  domain.DefaultJPEGQuality,
	}
}

// DefaultCredentialSourceConfig は、デフォルトの設定ソースの場所を返します
func DefaultCredentialSourceConfig() CredentialSourceConfig {
	return CredentialSourceConfig{
		AppConfigFile:   "configs/app.yaml",
		BuildConfigFile: "configs/build.env",
	}
}
