package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/xtown/projecthub/pkg/config"
	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/iam"
	"github.com/xtown/projecthub/pkg/logx"
)

func main() {
	logx.SetGlobal(logx.NewFromEnv())

	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("configuration error: %v", err)
	}

	logx.Infof("starting ProjectHub API server (env %s)", cfg.App.Env)

	container := NewContainer(cfg)
	defer container.Cleanup()

	app := fiber.New(fiber.Config{
		AppName:               "ProjectHub API",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg),
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  getCORSOrigins(cfg),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", healthCheckHandler(container))

	container.IAM.RegisterRoutes(app)
	logx.Info("IAM routes registered")

	app.Use(notFoundHandler)

	container.StartBackgroundServices()

	startServer(app, cfg)
}

// ============================================================================
// Handler Functions
// ============================================================================

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "projecthub-api",
		}

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if err := container.Redis.Ping(c.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
		} else {
			health["redis"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(iam.Envelope{
		Success: false,
		Message: "The requested endpoint does not exist",
		Error:   "NOT_FOUND",
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// errorHandler converts internal errors to the uniform response
// envelope. Underlying error detail is withheld in production.
func errorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"request_id": c.Get("X-Request-ID"),
		}).Errorf("request error: %v", err)

		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(iam.Envelope{
				Success: false,
				Message: e.Message,
			})
		}

		var e *errx.Error
		if errx.As(err, &e) {
			body := iam.Envelope{
				Success: false,
				Message: e.Message,
				Error:   e.Code,
			}
			if len(e.Details) > 0 {
				body.Data = e.Details
			}
			if !cfg.App.IsProduction() && e.Err != nil {
				body.Error = fmt.Sprintf("%s: %v", e.Code, e.Err)
			}
			return c.Status(e.HTTPStatus).JSON(body)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(iam.Envelope{
			Success: false,
			Message: "An unexpected error occurred",
			Error:   "INTERNAL_ERROR",
		})
	}
}

// ============================================================================
// Server lifecycle
// ============================================================================

func getCORSOrigins(cfg *config.Config) string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return origins
	}
	if cfg.App.IsProduction() {
		return cfg.App.FrontendURL
	}
	return "*"
}

func startServer(app *fiber.App, cfg *config.Config) {
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logx.Infof("server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logx.Fatalf("server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("received signal: %v, shutting down", sig)

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("server forced to shutdown: %v", err)
	}

	logx.Info("server exited")
}
