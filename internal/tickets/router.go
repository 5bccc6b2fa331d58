package tickets

import (
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles ticket routes
type Router struct {
	controller *Controller
	config     *config.Config
}

// NewRouter creates a new tickets router
func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{
		controller: controller,
		config:     cfg,
	}
}

// SetupRoutes registers all ticket routes
func (ticketsRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	tickets := rg.Group("/tickets")
	{
		// Public route - the wizard polls this alongside the realtime feed
		tickets.GET("/availability/:eventId/:definitionId", ticketsRouter.controller.GetAvailability)

		// Admin routes
		admin := tickets.Group("")
		admin.Use(middleware.JWTAuthWithConfig(ticketsRouter.config), middleware.RequireAdmin())
		{
			admin.GET("/:id", ticketsRouter.controller.GetTicket)
			admin.GET("/event/:eventId", ticketsRouter.controller.GetTicketsByEvent)
			admin.POST("/:id/check-in", ticketsRouter.controller.CheckInTicket)
		}
	}
}
