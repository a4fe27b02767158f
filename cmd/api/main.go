package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memoza/flashcards-back/internal/ai"
	"github.com/memoza/flashcards-back/internal/cache"
	"github.com/memoza/flashcards-back/internal/config"
	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/executor"
	httpserver "github.com/memoza/flashcards-back/internal/http"
	"github.com/memoza/flashcards-back/internal/http/handlers"
	"github.com/memoza/flashcards-back/internal/lease"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/retrytx"
	"github.com/memoza/flashcards-back/internal/service"
	"github.com/memoza/flashcards-back/internal/trigger"
	"github.com/memoza/flashcards-back/internal/worker"
)

type stores struct {
	jobs    repository.JobsRepository
	cards   repository.CardsRepository
	decks   repository.DecksRepository
	reviews repository.ReviewsRepository
	closer  func()
}

func main() {
	logger := log.New(os.Stdout, "[cards-back] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := setupStores(ctx, cfg, logger)
	defer store.closer()

	kicker, source, triggerCloser := setupTrigger(ctx, cfg, logger)
	defer triggerCloser()

	seedCache := cache.NewSeedCache()
	if applied, err := seedCache.Apply(cfg.SeedVersion, func() error {
		return seedSharedDecks(ctx, store.decks)
	}); err != nil {
		logger.Printf("seeding shared decks failed: %v", err)
	} else if applied {
		logger.Printf("shared deck seed applied version=%d", cfg.SeedVersion)
	}

	recognizer := ai.NewVisionClient(ai.VisionClientConfig{
		APIKey:     cfg.VisionAPIKey,
		BaseURL:    cfg.VisionBaseURL,
		Timeout:    time.Duration(cfg.VisionTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.VisionMaxRetries,
	})
	generator := ai.NewGeneratorClient(ai.GeneratorClientConfig{
		APIKey:        cfg.GeneratorAPIKey,
		BaseURL:       cfg.GeneratorBaseURL,
		Timeout:       time.Duration(cfg.GeneratorTimeoutMS) * time.Millisecond,
		MaxRetries:    cfg.GeneratorMaxRetries,
		PrimaryModel:  cfg.GeneratorModelPrimary,
		FallbackModel: cfg.GeneratorModelFallback,
		Temperature:   cfg.GeneratorTemperature,
		MaxCards:      cfg.MaxCardsPerJob,
	})

	exec := executor.New(executor.Dependencies{
		Jobs:           store.jobs,
		Decks:          store.decks,
		Writer:         executor.NewIdempotentWriter(store.cards, cfg.WriteFanOut),
		Leases:         lease.NewManager(store.jobs),
		Recognizer:     recognizer,
		Generator:      generator,
		Logger:         logger,
		HolderID:       cfg.ExecutorHolderID,
		LeaseTTL:       cfg.LeaseTTL(),
		MaxCardsPerJob: cfg.MaxCardsPerJob,
	})

	statusCache := cache.NewStatusCache(cache.StatusConfig{
		TTL:        time.Duration(cfg.StatusCacheTTLSec) * time.Second,
		MaxEntries: cfg.StatusCacheEntries,
	})

	jobsService := service.NewJobsService(store.jobs, kicker, statusCache, logger)
	reviewsService := service.NewReviewsService(store.reviews, store.cards)
	decksService := service.NewDecksService(store.decks, jobsService, retrytx.Config{}, logger)
	api := handlers.NewAPI(jobsService, reviewsService, decksService)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		runner := worker.NewRunner(exec, store.jobs, source, cfg.SweepInterval(), cfg.LeaseTTL(), logger)
		go runner.Start(ctx)
		logger.Printf("executor runner started sweep_interval=%s", cfg.SweepInterval())
	} else {
		logger.Printf("executor runner disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupStores(ctx context.Context, cfg config.Config, logger *log.Logger) stores {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repositories")
		return memoryStores()
	}

	pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres store, fallback to memory: %v", err)
		return memoryStores()
	}
	logger.Printf("postgres store initialized")
	return stores{
		jobs:    pg,
		cards:   pg,
		decks:   pg,
		reviews: pg,
		closer:  pg.Close,
	}
}

func memoryStores() stores {
	return stores{
		jobs:    repository.NewMemoryJobsRepository(),
		cards:   repository.NewMemoryCardsRepository(),
		decks:   repository.NewMemoryDecksRepository(),
		reviews: repository.NewMemoryReviewsRepository(),
		closer:  func() {},
	}
}

func setupTrigger(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (trigger.Kicker, trigger.Source, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local trigger fallback")
		local := trigger.NewLocalTrigger(cfg.TriggerBufferSize, logger)
		return local, local, func() {}
	}

	redisTrigger, err := trigger.NewRedisTrigger(ctx, trigger.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.RedisStream,
		Group:    cfg.RedisGroup,
		Consumer: cfg.RedisConsumer,
	}, logger)
	if err != nil {
		logger.Printf("failed to initialize redis trigger, fallback to local: %v", err)
		local := trigger.NewLocalTrigger(cfg.TriggerBufferSize, logger)
		return local, local, func() {}
	}

	logger.Printf("redis trigger initialized")
	return redisTrigger, redisTrigger, func() {
		_ = redisTrigger.Close()
	}
}

// seedSharedDecks installs the starter marketplace decks. PutSharedDeck
// and PutSharedDeckCards are upserts, so re-seeding after a version bump
// is safe.
func seedSharedDecks(ctx context.Context, decks repository.DecksRepository) error {
	deck := &domain.SharedDeck{
		ID:        "starter-biology",
		Title:     "Biology basics",
		CardCount: 3,
		CreatedAt: time.Now().UTC(),
	}
	if err := decks.PutSharedDeck(ctx, deck); err != nil {
		return err
	}
	return decks.PutSharedDeckCards(ctx, deck.ID, []domain.Card{
		{SourceIndex: 0, Front: "What organelle produces ATP?", Back: "The mitochondrion."},
		{SourceIndex: 1, Front: "What pigment absorbs light in photosynthesis?", Back: "Chlorophyll."},
		{SourceIndex: 2, Front: "What is the basic unit of life?", Back: "The cell."},
	})
}
