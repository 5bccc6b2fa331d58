package reservations

import (
	"net/http"

	"lodgetix/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Controller struct {
	service   *Service
	validator *validator.Validate
}

func NewController(service *Service) *Controller {
	return &Controller{
		service:   service,
		validator: validator.New(),
	}
}

//  REQUEST SHAPES

type ReserveTicketsRequest struct {
	EventID            string `json:"event_id"`
	TicketDefinitionID string `json:"ticket_definition_id" validate:"required"`
	Quantity           int    `json:"quantity" validate:"required,min=1"`
}

type CompleteReservationRequest struct {
	AttendeeID string `json:"attendee_id" validate:"required,uuid"`
}

type RegistrationTypeRequest struct {
	RegistrationType string `json:"registration_type" validate:"required,oneof=individual lodge delegation"`
}

//  HANDLERS

// ReserveTickets holds tickets for the calling client
func (c *Controller) ReserveTickets(ctx *gin.Context) {
	var req ReserveTicketsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	result := c.service.ReserveTickets(ctx.Request.Context(), clientIDFrom(ctx), req.EventID, req.TicketDefinitionID, req.Quantity)
	if !result.Success {
		respondFailure(ctx, result.Failure)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Tickets reserved successfully", result, nil)
}

// CompleteReservation finalizes a hold for an attendee
func (c *Controller) CompleteReservation(ctx *gin.Context) {
	reservationID := ctx.Param("reservationId")

	var req CompleteReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	result := c.service.CompleteReservation(ctx.Request.Context(), clientIDFrom(ctx), reservationID, req.AttendeeID)
	if !result.Success {
		respondFailure(ctx, result.Failure)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation completed successfully", result, nil)
}

// GetAvailability reads the counts for one event and ticket definition.
// Always responds 200; degraded reads carry zero counts.
func (c *Controller) GetAvailability(ctx *gin.Context) {
	eventID := ctx.Param("eventId")
	definitionID := ctx.Param("definitionId")

	snapshot := c.service.GetTicketAvailability(ctx.Request.Context(), eventID, definitionID)
	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", snapshot, nil)
}

// GetCurrentReservation returns the client's cached hold
func (c *Controller) GetCurrentReservation(ctx *gin.Context) {
	cached, failure := c.service.GetCurrentReservation(ctx.Request.Context(), clientIDFrom(ctx))
	if failure != nil {
		respondFailure(ctx, failure)
		return
	}
	if cached == nil {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "No active reservation", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation retrieved successfully", cached, nil)
}

// SetRegistrationType records the wizard flow choice
func (c *Controller) SetRegistrationType(ctx *gin.Context) {
	var req RegistrationTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.validator.Struct(req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	if failure := c.service.SetRegistrationType(ctx.Request.Context(), clientIDFrom(ctx), req.RegistrationType); failure != nil {
		respondFailure(ctx, failure)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registration type saved", gin.H{"registration_type": req.RegistrationType}, nil)
}

// GetRegistrationType returns the stored wizard flow choice
func (c *Controller) GetRegistrationType(ctx *gin.Context) {
	registrationType, failure := c.service.GetRegistrationType(ctx.Request.Context(), clientIDFrom(ctx))
	if failure != nil {
		respondFailure(ctx, failure)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registration type retrieved", gin.H{"registration_type": registrationType}, nil)
}

//  HELPERS

// clientIDFrom resolves the caller's identity: the authenticated user ID
// when present, otherwise the page-session header the wizard sends.
func clientIDFrom(ctx *gin.Context) string {
	if userID, exists := ctx.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return id
		}
	}
	return ctx.GetHeader("X-Client-ID")
}

func respondFailure(ctx *gin.Context, failure *Failure) {
	status := http.StatusInternalServerError
	switch failure.Kind {
	case FailureValidation:
		status = http.StatusBadRequest
	case FailureTimedOut:
		status = http.StatusGatewayTimeout
	case FailureStorageUnavailable:
		status = http.StatusServiceUnavailable
	case FailureInsufficientStock:
		status = http.StatusConflict
	case FailureNotFound:
		status = http.StatusNotFound
	case FailureExpired:
		status = http.StatusGone
	}

	response.RespondJSON(ctx, "error", status, failure.Message, gin.H{"kind": failure.Kind}, nil)
}
