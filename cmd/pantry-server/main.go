// Package main is the entry point for the pantry API server.
// pantry is a multi-tenant recipe API: users, tags, ingredients and recipes
// with image uploads.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/handler"
	"github.com/prn-tf/pantry/internal/logging"
	"github.com/prn-tf/pantry/internal/metrics"
	"github.com/prn-tf/pantry/internal/repository/store"
	"github.com/prn-tf/pantry/internal/service"
	"github.com/prn-tf/pantry/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("pantry-server", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the configuration file")
	showVersion := flags.BoolP("version", "v", false, "print version information and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("pantry-server %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pantry-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting pantry server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close repositories")
		}
	}()

	backend, err := newStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("pantry")
	}

	users := service.NewUserService(repos.Users, repos.Tokens, service.UserServiceConfig{
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, m, logger)
	tags := service.NewAttributeService(repos.Attributes(domain.KindTag), logger)
	ingredients := service.NewAttributeService(repos.Attributes(domain.KindIngredient), logger)
	recipes := service.NewRecipeService(repos.Recipes, tags, ingredients, backend, service.RecipeServiceConfig{
		Keys: storage.KeyConfig{
			Prefix:      cfg.Storage.KeyPrefix,
			ShardLevels: cfg.Storage.ShardLevels,
			ShardWidth:  storage.DefaultKeyConfig().ShardWidth,
		},
		MaxUploadSize:  cfg.Server.MaxUploadSize,
		MaxImagePixels: cfg.Server.MaxImagePixels,
	}, m, logger)

	routerConfig := handler.RouterConfig{
		UserService:       users,
		TagService:        tags,
		IngredientService: ingredients,
		RecipeService:     recipes,
		Database:          repos.Database,
		Metrics:           m,
		CORS:              cfg.CORS,
		MaxBodySize:       cfg.Server.MaxBodySize,
		MaxUploadSize:     cfg.Server.MaxUploadSize,
		Logger:            logger,
	}
	if path, ok := localMediaPath(cfg.Storage); ok {
		routerConfig.Media = backend
		routerConfig.MediaPath = path
	}
	router := handler.NewRouter(routerConfig)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	serve(srv, "api", logger, errCh)

	var metricsSrv *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		serve(metricsSrv, "metrics", logger, errCh)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api server shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	logger.Info().Msg("server stopped")
	return serveErr
}

// serve runs srv in the background and reports unexpected failures on errCh.
func serve(srv *http.Server, name string, logger zerolog.Logger, errCh chan<- error) {
	go func() {
		logger.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
}
