package registrations

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

// SetupRoutes registers the registration routes. Everything requires a
// token; anonymous-session tokens are accepted so guests can register.
func (registrationRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	registrations := rg.Group("/registrations")
	registrations.Use(middleware.JWTAuthWithConfig(registrationRouter.cfg))
	{
		registrations.POST("", registrationRouter.controller.CreateRegistration)
		registrations.GET("/me", registrationRouter.controller.GetMyRegistrations)
		registrations.GET("/reference/:reference", registrationRouter.controller.GetByReference)
		registrations.GET("/:id", registrationRouter.controller.GetRegistration)
		registrations.POST("/:id/attendees", registrationRouter.controller.AddAttendee)
		registrations.PUT("/:id/reservation", registrationRouter.controller.AttachReservation)
		registrations.POST("/:id/confirm", registrationRouter.controller.ConfirmRegistration)
		registrations.POST("/:id/cancel", registrationRouter.controller.CancelRegistration)

		admin := registrations.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/event/:eventId", registrationRouter.controller.GetEventRegistrations)
		}
	}
}
