// Package router assembles the Fiber application.
package router

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"productapi/internal/database"
	"productapi/internal/handlers"
	"productapi/internal/metrics"
	"productapi/internal/middleware"
)

const healthTimeout = 2 * time.Second

// Options carries everything New needs. DB and Metrics may be nil: the
// health check then skips the database and /metrics is not served.
type Options struct {
	ProductHandler *handlers.ProductHandler
	DB             *gorm.DB
	Metrics        *metrics.Metrics
	MetricsPath    string
	Logger         zerolog.Logger
}

// New builds the app with middleware, /health, /metrics and the product API
// under /api.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "productapi",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(opts.Logger),
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			opts.Logger.Error().
				Interface("panic", e).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
		},
	}))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logging(opts.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.RequestIDHeader,
	}))
	if opts.Metrics != nil {
		app.Use(opts.Metrics.Middleware())
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, opts.Metrics.Handler())
	}

	app.Get("/health", healthHandler(opts.DB))

	api := app.Group("/api")
	opts.ProductHandler.RegisterRoutes(api)

	return app
}

func healthHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		if db == nil {
			return c.JSON(body)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
			body["error"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
		body["database"] = "connected"
		return c.JSON(body)
	}
}

// errorHandler renders errors that escape the handlers (unmatched routes,
// wrong methods, recovered panics) in the same shape handlers use.
func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("unhandled error")
		}

		return c.Status(code).JSON(fiber.Map{
			"message":    message,
			"request_id": middleware.GetRequestID(c),
		})
	}
}
