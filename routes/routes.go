package routes

import (
	"time"

	"goldenminutes/config"
	"goldenminutes/controllers"
	"goldenminutes/events"
	"goldenminutes/middleware"
	"goldenminutes/repositories"
	"goldenminutes/services"
	"goldenminutes/utils"
	"goldenminutes/websocket"
	"goldenminutes/workers"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// Services initialization
type Services struct {
	Emergency *services.EmergencyService
	Matching  *services.MatchingService
	Guidance  *services.GuidanceService
	Responder *services.ResponderService
	Scoring   *services.ScoringService
	Safety    *services.SafetyService
	Analytics *services.AnalyticsService
}

// InitializeServices builds every service over one store. A nil locker
// falls back to in-process locking.
func InitializeServices(store *repositories.Store, publisher events.Publisher, locker utils.Locker, defaultLanguage string) *Services {
	if locker == nil {
		locker = utils.NewKeyedMutex()
	}
	scoring := services.NewScoringService(store, locker)

	return &Services{
		Emergency: services.NewEmergencyService(store.Emergencies, nil, publisher),
		Matching:  services.NewMatchingService(store.Emergencies, store.Responders, publisher, locker),
		Guidance:  services.NewGuidanceService(store.Guidance, defaultLanguage),
		Responder: services.NewResponderService(store, scoring),
		Scoring:   scoring,
		Safety:    services.NewSafetyService(store),
		Analytics: services.NewAnalyticsService(store),
	}
}

// Controllers initialization
type Controllers struct {
	Emergency    *controllers.EmergencyController
	Responder    *controllers.ResponderController
	Gamification *controllers.GamificationController
	Admin        *controllers.AdminController
	WebSocket    *controllers.WebSocketController
	Health       *controllers.HealthController
}

func initializeControllers(cfg *config.Config, svc *Services, hub *websocket.Hub, sweepWorker *workers.SweepWorker, redisClient *redis.Client) *Controllers {
	return &Controllers{
		Emergency:    controllers.NewEmergencyController(svc.Emergency, svc.Matching, svc.Guidance),
		Responder:    controllers.NewResponderController(svc.Responder, svc.Scoring),
		Gamification: controllers.NewGamificationController(svc.Scoring, svc.Safety),
		Admin:        controllers.NewAdminController(svc.Responder, svc.Safety, svc.Analytics, sweepWorker),
		WebSocket:    controllers.NewWebSocketController(hub),
		Health:       controllers.NewHealthController(redisClient, cfg.StoreDriver == config.StoreDriverMongo),
	}
}

// SetupRoutes initializes all application routes. redisClient may be nil.
func SetupRoutes(cfg *config.Config, svc *Services, hub *websocket.Hub, sweepWorker *workers.SweepWorker, redisClient *redis.Client) *gin.Engine {
	router := gin.New()

	ctrl := initializeControllers(cfg, svc, hub, sweepWorker, redisClient)
	auth := middleware.NewAuthMiddleware(utils.NewJWTService(cfg.JWTSecret))

	// Global middleware
	router.Use(middleware.NewErrorHandler(cfg.Environment, nil).Handle())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Environment))

	// Public routes
	router.GET("/health", ctrl.Health.HealthCheck)

	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())

	sosLimit := middleware.SOSRateLimit(redisClient, cfg.SOSRateLimit, time.Duration(cfg.SOSRateWindowMinutes)*time.Minute)

	SetupEmergencyRoutes(api, ctrl.Emergency, auth, sosLimit)
	SetupResponderRoutes(api, ctrl.Responder, ctrl.Gamification, auth)
	SetupAdminRoutes(api, ctrl.Admin, ctrl.WebSocket, auth)
	SetupWebSocketRoutes(router, ctrl.WebSocket, auth)

	return router
}
