//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"openchat/server/internal/config"
	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/llm"
	"openchat/server/internal/domain/memory"
	"openchat/server/internal/domain/thread"
	"openchat/server/internal/domain/tool"
	"openchat/server/internal/infrastructure/database"
	"openchat/server/internal/infrastructure/llmprovider"
	"openchat/server/internal/infrastructure/logger"
	"openchat/server/internal/infrastructure/queue"
	memoryrepo "openchat/server/internal/infrastructure/repository/memory"
	threadrepo "openchat/server/internal/infrastructure/repository/thread"
	"openchat/server/internal/infrastructure/websearch"
	"openchat/server/internal/interfaces/httpserver"
	"openchat/server/internal/webhook"
)

var chatSet = wire.NewSet(
	threadrepo.NewRepository,
	wire.Bind(new(thread.Repository), new(*threadrepo.Repository)),
	threadrepo.NewMessageRepository,
	wire.Bind(new(thread.MessageRepository), new(*threadrepo.MessageRepository)),
	memoryrepo.NewRepository,
	wire.Bind(new(memory.Repository), new(*memoryrepo.Repository)),
	thread.NewService,
	memory.NewService,
	newCatalog,
	newLLMProvider,
	wire.Bind(new(llm.Provider), new(*llmprovider.Client)),
	newToolRegistry,
	newTitler,
	queue.NewPostgresQueue,
	wire.Bind(new(chat.TitleBackfillQueue), new(*queue.PostgresQueue)),
	newWebhookService,
	wire.Bind(new(webhook.Service), new(*webhook.HTTPService)),
	webhook.NewNotifier,
	wire.Bind(new(chat.Notifier), new(*webhook.Notifier)),
	newOrchestrator,
)

// BuildApplication assembles the chat service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		chatSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newCatalog(cfg *config.Config) *llm.Catalog {
	return llm.NewCatalog(nil, cfg.DefaultModelID)
}

func newLLMProvider(cfg *config.Config) *llmprovider.Client {
	return llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)
}

func newToolRegistry(cfg *config.Config, log zerolog.Logger) *tool.Registry {
	registry := tool.NewRegistry(log)
	tool.RegisterWebSearch(registry, websearch.NewClient(cfg.SearchAPIURL, cfg.SearchAPIKey, log))
	return registry
}

func newTitler(cfg *config.Config, provider llm.Provider, catalog *llm.Catalog, log zerolog.Logger) *chat.Titler {
	modelID := cfg.TitleModelID
	if modelID == "" {
		modelID = catalog.DefaultID()
	}
	return chat.NewTitler(provider, modelID, log)
}

func newWebhookService(cfg *config.Config, log zerolog.Logger) *webhook.HTTPService {
	return webhook.NewHTTPService(cfg.WebhookURL, cfg.WebhookTimeout, log)
}

func newOrchestrator(
	cfg *config.Config,
	threads *thread.Service,
	memories *memory.Service,
	provider llm.Provider,
	catalog *llm.Catalog,
	registry *tool.Registry,
	titler *chat.Titler,
	backfill chat.TitleBackfillQueue,
	notifier chat.Notifier,
	log zerolog.Logger,
) *chat.Orchestrator {
	return chat.NewOrchestrator(
		threads,
		memories,
		provider,
		catalog,
		registry,
		titler,
		backfill,
		notifier,
		chat.Config{
			IdleTimeout:   cfg.StreamIdleTimeout,
			TitleGrace:    cfg.TitleGracePeriod,
			MaxToolDepth:  cfg.MaxToolDepth,
			ContextLength: cfg.ContextLength,
		},
		log,
	)
}
