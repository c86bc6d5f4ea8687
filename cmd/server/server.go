package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
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
	"openchat/server/internal/infrastructure/observability"
	"openchat/server/internal/infrastructure/queue"
	memoryrepo "openchat/server/internal/infrastructure/repository/memory"
	threadrepo "openchat/server/internal/infrastructure/repository/thread"
	"openchat/server/internal/infrastructure/websearch"
	"openchat/server/internal/interfaces/httpserver"
	"openchat/server/internal/webhook"
	"openchat/server/internal/worker"
)

type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

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
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	threadRepository := threadrepo.NewRepository(db)
	messageRepository := threadrepo.NewMessageRepository(db)
	memoryRepository := memoryrepo.NewRepository(db)

	threadService := thread.NewService(threadRepository, messageRepository, log)
	memoryService := memory.NewService(memoryRepository, log)

	catalog := llm.NewCatalog(nil, cfg.DefaultModelID)
	llmClient := llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)

	searchClient := websearch.NewClient(cfg.SearchAPIURL, cfg.SearchAPIKey, log)
	toolRegistry := tool.NewRegistry(log)
	tool.RegisterWebSearch(toolRegistry, searchClient)

	titleModelID := cfg.TitleModelID
	if titleModelID == "" {
		titleModelID = catalog.DefaultID()
	}
	titler := chat.NewTitler(llmClient, titleModelID, log)

	taskQueue := queue.NewPostgresQueue(db, log)

	webhookService := webhook.NewHTTPService(cfg.WebhookURL, cfg.WebhookTimeout, log)
	notifier := webhook.NewNotifier(webhookService, log)

	orchestrator := chat.NewOrchestrator(
		threadService,
		memoryService,
		llmClient,
		catalog,
		toolRegistry,
		titler,
		taskQueue,
		notifier,
		chat.Config{
			IdleTimeout:   cfg.StreamIdleTimeout,
			TitleGrace:    cfg.TitleGracePeriod,
			MaxToolDepth:  cfg.MaxToolDepth,
			ContextLength: cfg.ContextLength,
		},
		log,
	)

	workerPool := worker.NewPool(
		taskQueue,
		threadService,
		titler,
		worker.Config{
			WorkerCount:  cfg.TitleWorkerCount,
			PollInterval: cfg.TitleWorkerInterval,
		},
		log,
	)
	workerPool.Start(ctx)
	defer func() {
		log.Info().Msg("stopping worker pool")
		workerPool.Stop()
	}()

	httpServer := httpserver.New(cfg, log, orchestrator, catalog, threadService, memoryService)
	app := NewApplication(httpServer, log)

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
