package events

import (
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles event-related routes
type Router struct {
	controller *Controller
	config     *config.Config
}

// NewRouter creates a new events router
func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{
		controller: controller,
		config:     cfg,
	}
}

// SetupRoutes registers all event routes
func (eventsRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	events := rg.Group("/events")
	{
		// Public routes
		events.GET("", eventsRouter.controller.GetAllEvents)
		events.GET("/upcoming", eventsRouter.controller.GetUpcomingEvents)
		events.GET("/featured", eventsRouter.controller.GetFeaturedEvents)
		events.GET("/slug/:slug", eventsRouter.controller.GetEventBySlug)
		events.GET("/:id", eventsRouter.controller.GetEvent)

		// Admin routes
		admin := events.Group("")
		admin.Use(middleware.JWTAuthWithConfig(eventsRouter.config), middleware.RequireAdmin())
		{
			admin.POST("", eventsRouter.controller.CreateEvent)
			admin.PUT("/:id", eventsRouter.controller.UpdateEvent)
			admin.DELETE("/:id", eventsRouter.controller.DeleteEvent)
		}
	}
}
