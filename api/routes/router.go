package routes

import (
	"net/http"
	"time"

	"lodgetix/internal/auth"
	"lodgetix/internal/events"
	"lodgetix/internal/packages"
	"lodgetix/internal/realtime"
	"lodgetix/internal/registrations"
	"lodgetix/internal/reservations"
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/database"
	"lodgetix/internal/tickets"

	"github.com/gin-gonic/gin"
	swaggoFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services holds the long-lived domain services built at startup. The
// router only wires controllers and route groups around them.
type Services struct {
	Auth          auth.Service
	Events        events.Service
	Packages      packages.Service
	Tickets       tickets.Service
	Registrations registrations.Service
	Orchestrator  *reservations.Service
	Hub           *realtime.Hub
}

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	services *Services
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, services *Services) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		services: services,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	// Swagger UI
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggoFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		auth.NewRouter(auth.NewController(r.services.Auth), r.config).SetupRoutes(api)
		events.NewRouter(events.NewController(r.services.Events), r.config).SetupRoutes(api)
		packages.NewRouter(packages.NewController(r.services.Packages), r.config).SetupRoutes(api)
		tickets.NewRouter(tickets.NewController(r.services.Tickets), r.config).SetupRoutes(api)
		reservations.NewRouter(reservations.NewController(r.services.Orchestrator), r.config).SetupRoutes(api)
		registrations.NewRouter(registrations.NewController(r.services.Registrations), r.config).SetupRoutes(api)
		realtime.NewRouter(r.services.Hub).SetupRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "lodgetix-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "lodgetix-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"websockets":  r.services.Hub.GetClientCount(),
			"timestamp":   time.Now(),
		})
	})
}
