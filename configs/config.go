package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"akibot/internal/domain"
	"akibot/internal/infrastructure/config"
	"akibot/internal/infrastructure/credential"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config は、アプリケーション全体の設定を定義します
type Config struct {
	Discord     config.DiscordConfig
	OpenAI      config.OpenAIConfig
	Step        config.StepConfig
	Bot         config.BotConfig
	Metrics     config.MetricsConfig
	Credentials config.CredentialSourceConfig
}

// CredentialResolver は、認証情報を名前で解決するインターフェースです
type CredentialResolver interface {
	ResolveAll(names ...string) (map[string]domain.Credential, error)
}

// LoadConfig は、環境変数と設定ファイルから設定を読み込みます
// 認証情報が見つからない場合は設定エラーを返し、Botは起動できません
func LoadConfig(logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// .envファイルを読み込み（ファイルが存在しない場合は無視）
	if err := loadDotEnv(".env", logger); err != nil {
		logger.Warn(".envファイルの読み込みに失敗しました", zap.Error(err))
	}

	cfg := loadFromEnv()

	resolver, err := credential.NewDefaultResolver(logger, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("認証情報ソースの初期化に失敗: %w", err)
	}
	if err := cfg.ResolveCredentials(resolver); err != nil {
		return nil, err
	}

	// 必須設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv は、.envファイルの値を未設定の環境変数にのみ反映します
// APIキーは認証情報の設定ソースからのみ解決するため、.envからは読み込みません
func loadDotEnv(path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	for key, value := range values {
		if key == domain.StepAPIKeyName || key == domain.OpenAIAPIKeyName {
			logger.Warn(".envファイルのAPIキーは無視されます。環境変数または設定ファイルで指定してください",
				zap.String("name", key))
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// loadFromEnv は、認証情報以外の設定を環境変数から読み込みます
func loadFromEnv() *Config {
	openAIDefaults := config.DefaultOpenAIConfig()
	stepDefaults := config.DefaultStepConfig()
	sourceDefaults := config.DefaultCredentialSourceConfig()
	timeout := getEnvAsDurationOrDefault("HTTP_TIMEOUT", 0)

	return &Config{
		Discord: config.DiscordConfig{
			BotToken: getEnvOrDefault("DISCORD_BOT_TOKEN", ""),
		},
		OpenAI: config.OpenAIConfig{
			BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", openAIDefaults.BaseURL),
			ModelName:   getEnvOrDefault("OPENAI_MODEL", openAIDefaults.ModelName),
			Temperature: domain.EnhancementTemperature,
			Timeout:     timeout,
		},
		Step: config.StepConfig{
			BaseURL:      getEnvOrDefault("STEP_BASE_URL", stepDefaults.BaseURL),
			ModelName:    getEnvOrDefault("STEP_MODEL", stepDefaults.ModelName),
			Timeout:      timeout,
			MaxDimension: domain.MaxImageDimension,
			JPEGQuality:  domain.DefaultJPEGQuality,
		},
		Bot: config.BotConfig{
			RegisterCommands: getEnvAsBoolOrDefault("REGISTER_COMMANDS", true),
			LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Metrics: config.MetricsConfig{
			Addr:      getEnvOrDefault("METRICS_ADDR", ""),
			Namespace: getEnvOrDefault("METRICS_NAMESPACE", "akibot"),
		},
		Credentials: config.CredentialSourceConfig{
			AppConfigFile:   getEnvOrDefault("APP_CONFIG_FILE", sourceDefaults.AppConfigFile),
			BuildConfigFile: getEnvOrDefault("BUILD_CONFIG_FILE", sourceDefaults.BuildConfigFile),
		},
	}
}

// ResolveCredentials は、画像生成とプロンプト改善のAPIキーを解決します
func (c *Config) ResolveCredentials(resolver CredentialResolver) error {
	credentials, err := resolver.ResolveAll(domain.StepAPIKeyName, domain.OpenAIAPIKeyName)
	if err != nil {
		return fmt.Errorf("認証情報の解決に失敗: %w", err)
	}

	c.Step.APIKey = credentials[domain.StepAPIKeyName]
	c.OpenAI.APIKey = credentials[domain.OpenAIAPIKeyName]
	return nil
}

// Validate は、設定の妥当性を検証します
func (c *Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN が設定されていません")
	}

	if c.Step.APIKey.IsZero() {
		return fmt.Errorf("%s が設定されていません: %w", domain.StepAPIKeyName, domain.ErrConfiguration)
	}

	if c.OpenAI.APIKey.IsZero() {
		return fmt.Errorf("%s が設定されていません: %w", domain.OpenAIAPIKeyName, domain.ErrConfiguration)
	}

	if c.OpenAI.ModelName == "" || c.Step.ModelName == "" {
		return fmt.Errorf("モデル名が設定されていません")
	}

	// 温度・最大辺・JPEG品質は固定値です
	if c.OpenAI.Temperature != domain.EnhancementTemperature {
		return fmt.Errorf("プロンプト改善の温度は %.1f 固定です", domain.EnhancementTemperature)
	}

	if c.Step.MaxDimension != domain.MaxImageDimension || c.Step.JPEGQuality != domain.DefaultJPEGQuality {
		return fmt.Errorf("画像の最大辺は %d、JPEG品質は %d 固定です", domain.MaxImageDimension, domain.DefaultJPEGQuality)
	}

	if c.OpenAI.Timeout < 0 || c.Step.Timeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT は0以上である必要があります")
	}

	return nil
}

// getEnvOrDefault は、環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は、環境変数を時間として取得し、存在しない場合はデフォルト値を返します
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault は、環境変数を真偽値として取得し、存在しない場合はデフォルト値を返します
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
