package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"landr/internal/api"
	"landr/internal/api/handlers"
	"landr/internal/api/middleware"
	"landr/internal/engine/fields"
	"landr/internal/engine/form"
	"landr/internal/engine/pages"
	"landr/internal/engine/webhooks"
	"landr/internal/pkg/logger"
	"landr/internal/platform/auth"
	"landr/internal/platform/config"
	"landr/internal/platform/database"
	"landr/internal/platform/metrics"
	"landr/internal/platform/repositories"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath, explicit := os.LookupEnv("LANDR_CONFIG")
	if !explicit {
		configPath = "configs/config.yaml"
	}
	flag.StringVar(&configPath, "config", configPath, "Path to config file")
	flag.Parse()
	explicit = explicit || isFlagSet("config")

	cfg, err := config.Load(configPath, !explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if closer := logger.Init(cfg.Logging); closer != nil {
		defer closer.Close()
	}

	if cfg.Auth.Enabled && cfg.JWT.Secret == "" {
		log.Fatal().Msg("auth.enabled requires jwt.secret")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	if _, err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	registry, err := fields.LoadDefault()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load field registry")
	}

	// Repositories
	pageRepo := pages.NewRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	webhookLogRepo := repositories.NewWebhookLogRepository(db)

	// Services
	dispatcher := webhooks.NewDispatcher(webhookRepo, webhookLogRepo, cfg.Webhooks, clock.WallClock)
	pageSvc := pages.NewService(pageRepo, registry, dispatcher, clock.WallClock)
	tokenSvc := auth.NewTokenService(cfg.JWT, clock.WallClock)
	operators := auth.NewOperators(cfg.Auth.Operators)

	dev := cfg.IsDevelopment()
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	deps := &api.Dependencies{
		PageHandler:    handlers.NewPageHandler(pageSvc, dev),
		FieldHandler:   handlers.NewFieldHandler(registry, dev),
		FormHandler:    handlers.NewFormHandler(pageSvc, form.NewRenderer(registry), dev),
		QRHandler:      handlers.NewQRHandler(pageSvc, cfg.Public.BaseURL, dev),
		WebhookHandler: handlers.NewWebhookHandler(webhookRepo, webhookLogRepo, dev),
		AuthHandler:    handlers.NewAuthHandler(operators, tokenSvc, dev),
		HealthHandler:  handlers.NewHealthHandler(db, clock.WallClock),
		AuthMiddleware: middleware.NewAuthMiddleware(tokenSvc, cfg.Auth.Enabled),
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		dispatcher.Observe(collector)
		deps.Metrics = collector
		deps.MetricsHandler = handlers.NewMetricsHandler(metrics.NewRegistry(collector))
	}
	router := api.NewRouter(deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go rateLimiter.Cleanup(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.Server.Mode).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("webhook deliveries still running at exit")
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
