package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/contractiq/server/internal/auth"
	"github.com/contractiq/server/internal/cache"
	"github.com/contractiq/server/internal/clauses"
	"github.com/contractiq/server/internal/config"
	"github.com/contractiq/server/internal/embedder"
	"github.com/contractiq/server/internal/extract"
	"github.com/contractiq/server/internal/llm"
	"github.com/contractiq/server/internal/rag"
	"github.com/contractiq/server/internal/repository/postgres"
	"github.com/contractiq/server/internal/server"
	"github.com/contractiq/server/internal/service"
	"github.com/contractiq/server/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting ContractIQ service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	// Initialize Redis cache (fail-open: a missing Redis disables caching)
	appCache := cache.New(ctx, cfg.RedisURL, cfg.CacheDefaultTTL)
	defer appCache.Close()
	slog.Info("initialized cache", "enabled", appCache.Enabled())

	// Initialize OpenAI clients
	llmClient, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, llm.WithModel(cfg.LLMModel))
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	embed, err := embedder.NewOpenAIEmbedder(cfg.OpenAIAPIKey,
		embedder.WithModel(cfg.EmbeddingModel),
		embedder.WithCache(appCache, cfg.CacheEmbeddingTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	slog.Info("initialized OpenAI clients", "llm_model", cfg.LLMModel, "embedding_model", cfg.EmbeddingModel)

	// Initialize embedded vector store
	store, err := vectorstore.NewChromemStore(cfg.ChromaPersistDirectory, embed,
		vectorstore.WithSearchCache(appCache, cfg.CacheVectorSearchTTL))
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	slog.Info("opened vector store", "persist_dir", cfg.ChromaPersistDirectory)

	// Initialize repositories
	userRepo := postgres.NewUserRepo(db)
	workspaceRepo := postgres.NewWorkspaceRepo(db)
	documentRepo := postgres.NewDocumentRepo(db)
	clauseRepo := postgres.NewClauseRepo(db)
	conversationRepo := postgres.NewConversationRepo(db)

	// Initialize document understanding components
	extractor := extract.New(llmClient, cfg.LLMModel)
	clauseExtractor := clauses.NewExtractor(llmClient, cfg.LLMModel)
	dedup := clauses.NewDeduplicator(llmClient, cfg.LLMModel)
	pipeline := rag.NewPipeline(llmClient, cfg.LLMModel, store)

	// Initialize auth
	jwtConfig := auth.DefaultJWTConfig(cfg.SecretKey)
	jwtConfig.Expiry = cfg.JWTExpiry()
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Initialize services
	authSvc := service.NewAuthService(userRepo, jwtManager)
	workspaceSvc := service.NewWorkspaceService(workspaceRepo, store, appCache, cfg.CacheStatsTTL)
	documentSvc := service.NewDocumentService(
		documentRepo, workspaceRepo, clauseRepo,
		extractor, clauseExtractor, dedup,
		store, appCache,
		service.DocumentConfig{
			UploadDir:    cfg.UploadDir,
			MaxFileSize:  cfg.MaxFileSizeMB * 1024 * 1024,
			MaxPages:     cfg.MaxPagesPerDocument,
			AllowedTypes: cfg.AllowedFileTypes,
			DocumentsTTL: cfg.CacheDefaultTTL,
		},
	)
	conversationSvc := service.NewConversationService(conversationRepo, workspaceRepo, pipeline)

	// Create HTTP server
	httpServer := server.New(server.Config{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: cfg.CORSOrigins,
		MaxUploadSize:  cfg.MaxFileSizeMB * 1024 * 1024,
		Environment:    cfg.Environment,
		JWT:            jwtManager,
		Auth:           authSvc,
		Workspaces:     workspaceSvc,
		Documents:      documentSvc,
		Conversations:  conversationSvc,
		DB:             db,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
