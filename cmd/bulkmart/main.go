package main

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"bulkmart/internal/backend"
	"bulkmart/internal/config"
	"bulkmart/internal/http/handlers"
	applog "bulkmart/internal/log"
	"bulkmart/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
			applog.SetOutput(mw)
		}
	}
	defer applog.Sync()

	if cfg.JWTSecret == "" {
		log.Printf("[warn] JWT_SECRET is not set; every authenticated route will answer 401")
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	api := backend.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.BackendTimeout)

	// Templates & app
	engine := html.New(cfg.TemplatesDir, ".html")
	engine.Reload(true)

	app := fiber.New(fiber.Config{
		Views:        engine,
		Immutable:    true,
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20, // 1 MiB
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/healthz")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.limit.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	// Order placement throttled harder
	app.Post("/api/v1/orders", limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.order.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many orders, retry soon"})
		},
	}))

	// ---------- App handlers ----------
	deps := handlers.NewDeps(db, cfg, api)
	deps.Mount(app)

	applog.Info(nil, "server.start", map[string]any{"port": cfg.Port, "backend": cfg.BackendURL})
	log.Fatal(app.Listen(":" + cfg.Port))
}
