package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"qwenbridge/internal/auth"
	"qwenbridge/internal/config"
	"qwenbridge/internal/database"
	"qwenbridge/internal/handlers"
	"qwenbridge/internal/jobs"
	"qwenbridge/internal/logging"
	"qwenbridge/internal/models"
	"qwenbridge/internal/registry"
	"qwenbridge/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting QwenBridge Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Upstream: %s)", cfg.Port, cfg.UpstreamURL)

	// Model registry, optionally patched by a models.yaml overrides file
	var overrides map[string]models.ModelOverride
	if cfg.ModelOverridesPath != "" {
		var err error
		overrides, err = config.LoadModelOverrides(cfg.ModelOverridesPath)
		if err != nil {
			log.Fatalf("❌ Failed to load model overrides: %v", err)
		}
		log.Printf("✅ Loaded %d model overrides from %s", len(overrides), cfg.ModelOverridesPath)
	}
	reg := registry.New(overrides)
	log.Printf("✅ Model registry ready (%d models)", len(reg.IDs()))

	// Auth token: seeded from the storage state file, hot-reloaded on change
	tokens := auth.NewManager()
	if err := auth.LoadIntoManager(tokens, cfg.StorageStatePath, cfg.UpstreamURL); err != nil {
		log.Printf("⚠️  No auth token loaded (%v) - direct API disabled until one appears", err)
	} else {
		log.Println("✅ Auth token loaded")
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	go func() {
		if err := auth.Watch(rootCtx, tokens, cfg.StorageStatePath, cfg.UpstreamURL); err != nil && rootCtx.Err() == nil {
			log.Printf("⚠️  Token watcher stopped: %v", err)
		}
	}()

	// Session store: Redis when configured, SQLite otherwise
	var sessions services.SessionStore
	if cfg.RedisURL != "" {
		store, err := services.NewRedisSessionStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		sessions = store
		log.Println("✅ Redis session store connected")
	} else {
		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("❌ Failed to open database: %v", err)
		}
		defer db.Close()

		if err := db.Initialize(); err != nil {
			log.Fatalf("❌ Failed to initialize database: %v", err)
		}
		sessions = services.NewSQLiteSessionStore(db)
	}

	// Transports and orchestration
	limiter := rate.NewLimiter(rate.Limit(cfg.DirectRateLimit), cfg.DirectRateBurst)
	direct := services.NewDirectClient(cfg.UpstreamURL, limiter, tokens)
	browser := services.NewBrowserClient(services.BrowserClientConfig{
		ChatURL:  cfg.ChatURL,
		ExecPath: cfg.BrowserExecPath,
		Headless: cfg.BrowserHeadless,
		Timeout:  cfg.AutomationTimeout,
	})
	tracker := services.NewPerformanceTracker(prometheus.DefaultRegisterer)
	dispatcher := services.NewDispatcher(reg, tokens, direct, browser, sessions, tracker, cfg.DirectTimeout)

	// Background session pruning
	pruner, err := jobs.NewSessionPruner(sessions, cfg.SessionTTL, cfg.PruneInterval)
	if err != nil {
		log.Fatalf("❌ Failed to create session pruner: %v", err)
	}
	if err := pruner.Start(); err != nil {
		log.Fatalf("❌ Failed to start session pruner: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "QwenBridge v1.0",
		// Browser fallback dispatches can run for minutes
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  5 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	prom := fiberprometheus.New("qwenbridge")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Routes
	app.Get("/health", handlers.NewHealthHandler(tokens).Handle)

	modelHandler := handlers.NewModelHandler(reg)
	app.Get("/api/models", modelHandler.List)
	app.Get("/api/model-info/:model", modelHandler.Info)

	app.Post("/api/chat", handlers.NewChatHandler(dispatcher).Handle)
	app.Get("/api/performance", handlers.NewPerformanceHandler(tracker).Handle)
	app.Get("/api/conversations", handlers.NewConversationHandler(direct, tokens).Handle)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		rootCancel()

		if err := pruner.Stop(); err != nil {
			log.Printf("⚠️ Error stopping session pruner: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
