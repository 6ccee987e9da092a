package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kasapos/backend/internal/advisory"
	"kasapos/backend/internal/cache"
	"kasapos/backend/internal/catalog"
	"kasapos/backend/internal/config"
	"kasapos/backend/internal/httpapi"
	"kasapos/backend/internal/logger"
	"kasapos/backend/internal/money"
	"kasapos/backend/internal/outbox"
	"kasapos/backend/internal/service"
	"kasapos/backend/internal/settlement"
	"kasapos/backend/internal/store"
	"kasapos/backend/internal/store/memory"
	"kasapos/backend/internal/store/mongodb"
	pgstore "kasapos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	lg, err := logger.New(logger.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped with error", zap.Error(err))
	}
	lg.Info("server stopped")
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(startupCtx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		for _, closeFn := range closers {
			if err := closeFn(closeCtx); err != nil {
				lg.Warn("close error", zap.Error(err))
			}
		}
	}()

	cat := catalog.New(repo, lg)
	cat.Load(startupCtx)

	advisoryCache, cacheCloser := openAdvisoryCache(startupCtx, cfg, lg)
	if cacheCloser != nil {
		closers = append(closers, cacheCloser)
	}

	var generator advisory.Generator
	if gemini, err := advisory.NewGeminiGenerator(startupCtx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		lg.Warn("advisory generator unavailable, suggestions will use fallback text", zap.Error(err))
	} else {
		generator = gemini
		lg.Info("advisory generator: gemini", zap.String("model", cfg.GeminiModel))
	}

	ob := outbox.New(repo, lg, cfg.OutboxBuffer)
	svc := service.New(service.Dependencies{
		Catalog: cat,
		Engine:  settlement.New(ob, lg),
		Advisor: advisory.New(generator, advisoryCache, time.Duration(cfg.AdvisoryCacheTTLSeconds)*time.Second, cfg.StoreName, lg),
		Outbox:  ob,
		Reader:  repo,
		Money:   money.NewFormatter(cfg.CurrencyLocale, cfg.CurrencySymbol),
		Logger:  lg,
	})

	sessions, err := httpapi.NewSessionManager(cfg.SessionSecret, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	if err != nil {
		return err
	}
	api := httpapi.New(svc, sessions, cfg.AllowedOrigin, lg.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Advisory calls wait on the generator.
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The outbox outlives the listener so completions accepted during
	// shutdown are still flushed.
	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	defer stopOutbox()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ob.Run(outboxCtx)
		return nil
	})
	g.Go(func() error {
		lg.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		err := server.Shutdown(shutdownCtx)
		stopOutbox()
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type closer func(context.Context) error

// openRepository picks the backing store: MongoDB, then Postgres, then
// in-process memory.
func openRepository(ctx context.Context, cfg config.Config, lg *zap.Logger) (store.Repository, []closer, error) {
	switch {
	case cfg.MongoURI != "":
		db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("mongodb unavailable and MONGO_URI is set: %w", err)
		}
		repo := mongodb.New(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			lg.Warn("mongodb index creation failed", zap.Error(err))
		}
		lg.Info("repository: mongodb", zap.String("database", cfg.MongoDatabase))
		return repo, []closer{repo.Close}, nil

	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.Migrate(); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		lg.Info("repository: postgres")
		return pg, []closer{func(context.Context) error { return pg.Close() }}, nil

	default:
		var repo *memory.Store
		if cfg.SeedCatalog {
			repo = memory.NewSeeded()
		} else {
			repo = memory.New()
		}
		lg.Info("repository: in-memory", zap.Bool("seeded", cfg.SeedCatalog))
		return repo, nil, nil
	}
}

func openAdvisoryCache(ctx context.Context, cfg config.Config, lg *zap.Logger) (cache.AdvisoryCache, closer) {
	if cfg.RedisAddr == "" {
		lg.Info("advisory cache: noop")
		return cache.NoopAdvisoryCache{}, nil
	}

	redisCache := cache.NewRedisAdvisoryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		lg.Warn("redis unavailable, using noop advisory cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopAdvisoryCache{}, nil
	}
	lg.Info("advisory cache: redis", zap.String("addr", cfg.RedisAddr))
	return redisCache, func(context.Context) error { return redisCache.Close() }
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be set and at least 32 characters")
	}
	return nil
}
