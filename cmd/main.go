package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"akibot/configs"
	"akibot/internal/application"
	"akibot/internal/domain"
	discordInfra "akibot/internal/infrastructure/discord"
	"akibot/internal/infrastructure/logger"
	"akibot/internal/infrastructure/metrics"
	"akibot/internal/infrastructure/openai"
	"akibot/internal/infrastructure/stepfun"
	discordPres "akibot/internal/presentation/discord"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 設定読み込み前はLOG_LEVELのみで起動用ロガーを作成
	bootLogger, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		bootLogger = zap.NewExample()
	}

	if err := run(bootLogger); err != nil {
		bootLogger.Error("Botの実行に失敗しました", zap.Error(err))
		_ = bootLogger.Sync()
		os.Exit(1)
	}
}

func run(bootLogger *zap.Logger) error {
	bootLogger.Info("画像生成Botを起動中...")

	// 設定を読み込み
	config, err := configs.LoadConfig(bootLogger)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			bootLogger.Error("APIキーが見つかりません。環境変数または設定ファイルに STEP_API_KEY と OPENAI_API_KEY を設定してください")
		}
		return err
	}

	log, err := logger.New(config.Bot.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Discordセッションを作成
	session, err := discordgo.New("Bot " + config.Discord.BotToken)
	if err != nil {
		return err
	}

	// Botの情報を取得
	user, err := session.User("@me")
	if err != nil {
		return err
	}
	log.Info("Bot情報", zap.String("username", user.Username), zap.String("id", user.ID))

	// メトリクスを作成
	collector := metrics.NewCollector(config.Metrics.Namespace, log)

	// APIクライアントを作成
	enhancer := openai.NewPromptEnhancer(&config.OpenAI, log)
	synthesizer := stepfun.NewImageSynthesizer(&config.Step, log)

	// アプリケーションサービスを作成
	service := application.NewImageGenerationService(enhancer, synthesizer, collector, log)

	// Discordハンドラを作成
	handler := discordPres.NewDiscordHandler(session, user.ID, discordPres.HandlerDeps{
		Service:     service,
		Fetcher:     discordInfra.NewAttachmentFetcher(&http.Client{Timeout: time.Minute}, log),
		Busy:        discordPres.NewBusyTracker(),
		Recorder:    collector,
		Credentials: []domain.Credential{config.Step.APIKey, config.OpenAI.APIKey},
		Logger:      log,
		Context:     ctx,
	})
	handler.SetupHandlers()

	// スラッシュコマンドを設定
	if config.Bot.RegisterCommands {
		if err := handler.SlashCommandHandler().SetupSlashCommands(); err != nil {
			return err
		}
	}

	// Discordに接続
	if err := session.Open(); err != nil {
		return err
	}
	log.Info("Discordに接続しました。Botが準備完了しました！",
		zap.Strings("commands", []string{"/" + discordPres.CommandEnhance, "/" + discordPres.CommandGenerate, "/" + discordPres.CommandStatus}))

	g, gctx := errgroup.WithContext(ctx)

	if config.Metrics.Addr != "" {
		server := &http.Server{
			Addr:              config.Metrics.Addr,
			Handler:           metricsMux(collector),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("メトリクスを公開します", zap.String("addr", config.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	// 終了シグナルを待機
	g.Go(func() error {
		<-gctx.Done()
		log.Info("終了シグナルを受信しました。Botを停止中...")
		return session.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Botが正常に停止しました。")
	return nil
}

func metricsMux(collector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	return mux
}
