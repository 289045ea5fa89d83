//go:build wireinject

package main

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"chatdesk/chat-api/internal/config"
	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/domain/chat"
	"chatdesk/chat-api/internal/infrastructure/auth"
	"chatdesk/chat-api/internal/infrastructure/crontab"
	"chatdesk/chat-api/internal/infrastructure/database"
	"chatdesk/chat-api/internal/infrastructure/database/repository"
	"chatdesk/chat-api/internal/infrastructure/database/transaction"
	"chatdesk/chat-api/internal/infrastructure/inference"
	"chatdesk/chat-api/internal/interfaces/httpserver"
	"chatdesk/chat-api/internal/interfaces/httpserver/handlers"
	"chatdesk/chat-api/internal/utils/httpclients"
	chatclient "chatdesk/chat-api/internal/utils/httpclients/chat"
)

var domainSet = wire.NewSet(
	repository.RepositoryProvider,
	inference.NewTitleGenerator,
	wire.Bind(new(chat.TitleGenerator), new(*inference.TitleGenerator)),
	chat.NewService,
	aiusage.NewService,
)

// BuildApplication assembles chat-api with Wire.
func BuildApplication(ctx context.Context, log zerolog.Logger) (*Application, error) {
	wire.Build(
		config.Load,
		newSessionValidator,
		newDatabaseConfig,
		newGormDB,
		transaction.NewDatabase,
		newCompletionClient,
		domainSet,
		handlers.NewProvider,
		httpserver.New,
		crontab.NewCrontab,
		NewApplication,
	)
	return nil, nil
}

func newSessionValidator(cfg *config.Config) (*auth.SessionValidator, error) {
	return auth.NewSessionValidator(cfg.SessionSecret, 30*time.Second)
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DatabaseURL: cfg.DatabaseURL,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnLifetime,
		LogLevel:    gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg *config.Config, dbCfg database.Config) (*gorm.DB, error) {
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(ctx, db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func newCompletionClient(cfg *config.Config) *chatclient.ChatCompletionClient {
	return chatclient.NewChatCompletionClient(
		httpclients.NewClient("chat-completion"),
		"chat-completion",
		cfg.ProviderBaseURL,
		cfg.StreamTimeout,
	)
}
