package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edulearn-backend/internal/config"
	"edulearn-backend/internal/database"
	"edulearn-backend/internal/handlers"
	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/pipeline"
	"edulearn-backend/internal/repository"
	"edulearn-backend/internal/router"
	"edulearn-backend/internal/services"
	"edulearn-backend/internal/websocket"
	"edulearn-backend/internal/worker"
)

const (
	generationRateLimit  = 20
	generationRateWindow = time.Minute
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops accepting requests, waits for active document runs and then
// releases the remaining resources. It returns once everything has stopped.
func shutdown(ctx context.Context, log *logger.Logger, server, runner shutdowner, closers ...func()) {
	if err := server.Shutdown(ctx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := runner.Shutdown(ctx); err != nil {
		log.Warn("document runs cancelled before completion", "error", err)
	}
	for _, c := range closers {
		c()
	}
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("🚀 Starting EduLearn Backend...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("✗ Invalid configuration", "error", err)
	}
	log.Info("✓ Environment variables loaded", "provider", cfg.GenerationProvider)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("✗ PostgreSQL connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatal("✗ Redis connection failed", "error", err)
	}
	defer redisClients.Close()
	log.Info("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("✗ Database migration failed", "error", err)
	}
	log.Info("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	documentRepo := repository.NewDocumentRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	resultRepo := repository.NewResultRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)

	// ──── Step 5: Initialize Generation Client ────
	var generator services.Generator
	switch cfg.GenerationProvider {
	case config.ProviderGemini:
		gemini, err := services.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GenerationConcurrency)
		if err != nil {
			log.Fatal("✗ Gemini client initialization failed", "error", err)
		}
		defer gemini.Close()
		generator = gemini
		log.Info("✓ Gemini client initialized", "model", cfg.GeminiModel)
	default:
		generator = services.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel)
		log.Info("✓ Ollama client initialized", "url", cfg.OllamaBaseURL, "model", cfg.OllamaModel)
	}

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	enrichment := services.NewEnrichmentService(generator)
	references := services.NewCachedReferenceSource(
		services.NewWikipediaClient(cfg.ReferenceBaseURL),
		redisClients.Cache,
		cfg.ReferenceCacheTTL,
		log,
	)
	knowledge := services.NewKnowledgeService(references, log)
	fileExtract := services.NewFileExtractService()
	quizEngine := services.NewQuizEngine(generator)
	diagnoser := services.NewDiagnoser(generator, log)
	documentChat := services.NewDocumentChat(generator)
	publisher := websocket.NewRedisPublisher(redisClients.PubSub)

	// ──── Step 6: Start Pipeline Runner ────
	enrichPipeline := pipeline.New(documentRepo, fileExtract, enrichment, knowledge, publisher, log)
	runner := worker.NewRunner(enrichPipeline, log)
	log.Info("✓ Pipeline runner started")

	// ──── Initialize Handlers ────
	documentHandler := handlers.NewDocumentHandler(
		documentRepo,
		progressRepo,
		runner,
		documentChat,
		cfg.StoragePath,
		int64(cfg.MaxUploadMB)<<20,
		log,
	)
	quizHandler := handlers.NewQuizHandler(quizRepo, documentRepo, resultRepo, progressRepo, quizEngine, diagnoser, log)
	resultHandler := handlers.NewResultHandler(resultRepo, log)
	progressHandler := handlers.NewProgressHandler(progressRepo, log)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, log)
	log.Info("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	limiter := middleware.NewRateLimiter(generationRateLimit, generationRateWindow)
	r := router.New(jwtAuth, router.Handlers{
		Documents: documentHandler,
		Quizzes:   quizHandler,
		Results:   resultHandler,
		Progress:  progressHandler,
		Hub:       wsHub,
	}, limiter, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		// Quiz generation and document chat run inside the request.
		WriteTimeout: 4 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. main waits on stopped so the pool and redis stay open
	// until active document runs have drained.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdown(ctx, log, server, runner, wsHub.Close, limiter.Stop)
	}()

	log.Info(fmt.Sprintf("✓ EduLearn Backend ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))
	log.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "error", err)
	}
	<-stopped
	log.Info("✓ Shutdown complete")
}
