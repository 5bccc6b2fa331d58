package packages

import (
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles ticket definition routes
type Router struct {
	controller *Controller
	config     *config.Config
}

// NewRouter creates a new packages router
func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{
		controller: controller,
		config:     cfg,
	}
}

// SetupRoutes registers all ticket definition routes
func (packagesRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	definitions := rg.Group("/ticket-definitions")
	{
		// Public routes - the wizard needs these to render ticket selection
		definitions.GET("/:id", packagesRouter.controller.GetTicketDefinition)
		definitions.GET("/event/:eventId", packagesRouter.controller.GetTicketDefinitionsByEvent)

		// Admin routes
		admin := definitions.Group("")
		admin.Use(middleware.JWTAuthWithConfig(packagesRouter.config), middleware.RequireAdmin())
		{
			admin.POST("", packagesRouter.controller.CreateTicketDefinition)
			admin.PUT("/:id", packagesRouter.controller.UpdateTicketDefinition)
			admin.DELETE("/:id", packagesRouter.controller.DeleteTicketDefinition)
		}
	}
}
