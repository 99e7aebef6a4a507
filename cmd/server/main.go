package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/config"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/database"
	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.DBUrl == "" {
		return errors.New("DB_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer pool.Close()

	app := fiber.New(fiber.Config{
		ErrorHandler: jsonErrorHandler,
	})
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", healthHandler(cfg, pool))
	if err := routes.RegisterRoutes(ctx, app, cfg, pool); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		log.Println("server: shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("server: shutdown failed: %v", err)
		}
	}()

	log.Printf("server: listening on port %s (%s)", cfg.Port, cfg.AppEnv)
	return app.Listen(":" + cfg.Port)
}

// healthHandler reports 503 while the database is unreachable; the realtime
// listener cannot deliver anything in that state either.
func healthHandler(cfg *config.Config, pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", fiber.StatusOK
		if err := pool.Ping(pingCtx); err != nil {
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"env":      cfg.AppEnv,
			"redis":    cfg.RedisEnabled(),
			"ably":     cfg.AblyKey != "",
			"chatbot":  cfg.ChatbotLLMEnabled(),
			"database": code == fiber.StatusOK,
		})
	}
}

func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		log.Printf("server: unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
