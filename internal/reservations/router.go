package reservations

import (
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

type Router struct {
	controller *Controller
	cfg        *config.Config
}

func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{controller: controller, cfg: cfg}
}

// SetupRoutes registers the reservation wizard routes. Reserve and
// complete accept anonymous-session tokens; availability is public.
func (reservationRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	reservations := rg.Group("/reservations")
	{
		reservations.GET("/availability/:eventId/:definitionId", reservationRouter.controller.GetAvailability)

		authed := reservations.Group("")
		authed.Use(middleware.OptionalAuthWithConfig(reservationRouter.cfg))
		{
			authed.POST("", reservationRouter.controller.ReserveTickets)
			authed.POST("/:reservationId/complete", reservationRouter.controller.CompleteReservation)
			authed.GET("/current", reservationRouter.controller.GetCurrentReservation)
			authed.PUT("/registration-type", reservationRouter.controller.SetRegistrationType)
			authed.GET("/registration-type", reservationRouter.controller.GetRegistrationType)
		}
	}
}
