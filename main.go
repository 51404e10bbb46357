package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"productapi/internal/config"
	"productapi/internal/database"
	"productapi/internal/handlers"
	"productapi/internal/metrics"
	"productapi/internal/repositories"
	"productapi/internal/router"
	"productapi/internal/services"
	"productapi/internal/validation"
	"productapi/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		bootstrap := config.NewLogger(config.LoggerConfig{Level: "info", Format: "json"})
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := config.NewLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error().Err(err).Msg("error closing database")
		}
	}()

	// --- Event publishing ---
	// publisher stays a nil interface when no broker is configured
	var publisher services.EventPublisher
	if cfg.RabbitMQ.Enabled() {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize RabbitMQ client")
		}
		defer func() {
			if err := mqClient.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing RabbitMQ client")
			}
		}()
		publisher = mqClient

		if cfg.RabbitMQ.Consume {
			handler := rabbitmq.LogProductEvent(logger.With().Str("component", "product-events").Logger())
			if err := mqClient.ConsumeProductEvents(ctx, handler); err != nil {
				logger.Error().Err(err).Msg("failed to start RabbitMQ consumer")
			}
		}
	} else {
		logger.Info().Msg("RABBITMQ_URL not set, product events disabled")
	}

	// --- Services and handlers ---
	validator := validation.NewProductValidator()
	productRepo := repositories.NewGORMProductRepository(db)
	productService := services.NewProductService(productRepo, validator, publisher, logger)
	productHandler := handlers.NewProductHandler(productService, validator, logger)

	opts := router.Options{
		ProductHandler: productHandler,
		DB:             db,
		Logger:         logger,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New()
		opts.MetricsPath = cfg.Metrics.Path
	}
	app := router.New(opts)

	// --- Start HTTP Server ---
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("starting server")
		serverErr <- app.Listen(cfg.Server.Port)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logger.Error().Err(err).Msg("error during server shutdown")
		}
	}

	logger.Info().Msg("server stopped")
}
