package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goldenminutes/config"
	"goldenminutes/database"
	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/repositories/memory"
	"goldenminutes/routes"
	"goldenminutes/services"
	"goldenminutes/utils"
	"goldenminutes/websocket"
	"goldenminutes/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize logger
	setupLogger(cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	store := openStore(cfg)
	if cfg.StoreDriver == config.StoreDriverMongo {
		defer database.Disconnect()
	}

	// Seed catalogue data
	catalogue, err := database.LoadCatalogue(cfg.SeedFile)
	if err != nil {
		logrus.Fatal("Failed to load seed catalogue: ", err)
	}
	if err := database.RunSeeders(ctx, store, catalogue, time.Now()); err != nil {
		logrus.Warn("Some seeders failed: ", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	var locker utils.Locker = utils.NewKeyedMutex()
	if redisClient != nil {
		defer redisClient.Close()
		locker = utils.NewRedisLocker(redisClient, "lock")
	}

	// Event bus and services
	bus := events.NewBus()
	svc := routes.InitializeServices(store, bus, locker, cfg.DefaultLanguage)
	bus.Subscribe("scoring", svc.Scoring.HandleEvent, services.ScoringEventTypes...)

	// Initialize WebSocket hub
	hub := websocket.NewHub(func(ctx context.Context, emergencyID string, viewer models.Viewer) error {
		_, err := svc.Emergency.GetEmergency(ctx, emergencyID, viewer)
		return err
	})
	go hub.Run()
	bus.Subscribe("websocket", hub.HandleEvent)

	if redisClient != nil {
		relay := events.NewRedisRelay(redisClient, events.DefaultRelayChannel)
		bus.Subscribe("redis-relay", relay.Handle)
		go relay.Listen(ctx, hub.Dispatch)
	}

	// Initialize workers
	sweepWorker := workers.NewSweepWorker(svc.Emergency, svc.Scoring, svc.Safety, workers.SweepWorkerConfig{
		BystanderTimeout:       cfg.BystanderTimeout(),
		BystanderSweepInterval: cfg.BystanderSweepInterval,
		BadgeSweepInterval:     cfg.BadgeSweepInterval,
		AreaSweepInterval:      cfg.AreaSweepInterval,
		RefreshAreaMetrics:     true,
	})
	if err := sweepWorker.Start(); err != nil {
		logrus.Fatal("Failed to start sweep worker: ", err)
	}

	// Setup routes
	router := routes.SetupRoutes(cfg, svc, hub, sweepWorker, redisClient)

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in goroutine
	go func() {
		logrus.Info("Golden Minutes server starting on port ", cfg.Port)
		logrus.Info("WebSocket endpoint: /ws")
		logrus.Info("Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	sweepWorker.Stop()
	stop()
	hub.Shutdown()

	logrus.Info("Server shutdown complete")
}

// openStore connects the configured backend. The memory driver keeps all
// state in process and is meant for development and demos.
func openStore(cfg *config.Config) *repositories.Store {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logrus.Warn("Using in-memory store, data is lost on restart")
		return memory.New().Repositories()
	case config.StoreDriverMongo:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatal("Failed to connect to database: ", err)
		}
		return repositories.NewMongoStore(db)
	default:
		logrus.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
		return nil
	}
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
