package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"chatdesk/chat-api/internal/config"
	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/domain/chat"
	"chatdesk/chat-api/internal/infrastructure/auth"
	"chatdesk/chat-api/internal/infrastructure/crontab"
	"chatdesk/chat-api/internal/infrastructure/database"
	"chatdesk/chat-api/internal/infrastructure/database/repository/chatrepo"
	"chatdesk/chat-api/internal/infrastructure/database/repository/usagerepo"
	"chatdesk/chat-api/internal/infrastructure/database/transaction"
	"chatdesk/chat-api/internal/infrastructure/inference"
	"chatdesk/chat-api/internal/infrastructure/logger"
	"chatdesk/chat-api/internal/infrastructure/observability"
	"chatdesk/chat-api/internal/interfaces/httpserver"
	"chatdesk/chat-api/internal/interfaces/httpserver/handlers"
	"chatdesk/chat-api/internal/utils/httpclients"
	chatclient "chatdesk/chat-api/internal/utils/httpclients/chat"
)

const sessionClockSkew = 30 * time.Second

// Application bundles the long-running components of chat-api.
type Application struct {
	httpServer *httpserver.HttpServer
	cron       *crontab.Crontab
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, cron *crontab.Crontab, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		cron:       cron,
		log:        log,
	}
}

// Start runs the HTTP server and the usage rollup scheduler until ctx is
// cancelled or one of them fails.
func (a *Application) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.httpServer.Run(groupCtx) })
	group.Go(func() error { return a.cron.Run(groupCtx) })
	return group.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DatabaseURL: cfg.DatabaseURL,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnLifetime,
		LogLevel:    gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if cfg.AutoMigrate {
		if err := database.AutoMigrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	sessions, err := auth.NewSessionValidator(cfg.SessionSecret, sessionClockSkew)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize session validator")
	}

	txDB := transaction.NewDatabase(db)
	chatRepository := chatrepo.NewChatGormRepository(txDB)
	usageRepository := usagerepo.NewUsageGormRepository(txDB)

	completions := chatclient.NewChatCompletionClient(
		httpclients.NewClient("chat-completion"),
		"chat-completion",
		cfg.ProviderBaseURL,
		cfg.StreamTimeout,
	)

	titles := inference.NewTitleGenerator(completions, cfg)
	chatService := chat.NewService(chatRepository, titles)
	usageService := aiusage.NewService(usageRepository)

	handlerProvider := handlers.NewProvider(cfg, chatService, usageService, completions, log)
	httpServer := httpserver.New(cfg, log, handlerProvider, sessions)
	cron := crontab.NewCrontab(usageService, cfg)

	app := NewApplication(httpServer, cron, log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
