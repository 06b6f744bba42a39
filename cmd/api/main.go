package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"bibledownloader/internal/adapter/repo"
	"bibledownloader/internal/catalog"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/http/handlers"
	httpapi "bibledownloader/internal/http/httpapi"
	"bibledownloader/internal/infra"
	"bibledownloader/internal/infra/geoip"
	"bibledownloader/internal/jobs"
	"bibledownloader/internal/pipeline"
	"bibledownloader/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	infra.LoadDotEnv()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalogue")
	}
	files, err := storage.NewFileStore(cfg.DownloadsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare downloads directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(fetch.NewHTTPFetcher(cfg.FetchTimeout), files, logger,
		pipeline.WithRecoveryPause(cfg.RecoveryPause))
	opts := []jobs.Option{jobs.WithRetention(cfg.JobRetention)}

	// Job history is optional
	dbpool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrDatabaseDisabled):
		logger.Info().Msg("DATABASE_URL not set, job history disabled")
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to connect database")
	default:
		defer dbpool.Close()
		history := repo.NewJobHistoryRepository(infra.NewSQLRunner(dbpool, logger))
		if err := history.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare job history table")
		}
		opts = append(opts, jobs.WithHistory(history))
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	}
	defer resolver.Close()

	svc := jobs.NewService(cat, runner, jobs.NewStore(), logger, opts...)
	go svc.Run(ctx, cfg.JobSweepInterval)

	app := handlers.NewApp(svc, cat, files, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:   cfg.CORSOrigins,
		StartLimit:    cfg.RateLimitPerMin,
		CountryLookup: resolver.Lookup(),
	})
	server := infra.NewHTTPServer(cfg, router, logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("jobs did not settle before shutdown")
	}
	logger.Info().Msg("server stopped")
}
