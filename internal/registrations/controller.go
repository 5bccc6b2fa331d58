package registrations

import (
	"errors"
	"net/http"

	"lodgetix/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateRegistration opens a draft registration
func (c *Controller) CreateRegistration(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}

	var req CreateRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	registration, err := c.service.CreateRegistration(ctx.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrLodgeDetailsRequired), errors.Is(err, ErrEventNotOpen):
			response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to create registration", nil, err.Error())
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Registration created successfully", registration, nil)
}

// AddAttendee appends a person to a registration
func (c *Controller) AddAttendee(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}

	registrationID, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	var req AddAttendeeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	attendee, err := c.service.AddAttendee(ctx.Request.Context(), registrationID, userID, req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Attendee added successfully", attendee, nil)
}

// AttachReservation links a ticket hold to the registration
func (c *Controller) AttachReservation(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}

	registrationID, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	var req AttachReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := c.service.AttachReservation(ctx.Request.Context(), registrationID, userID, req); err != nil {
		respondServiceError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation attached successfully", nil, nil)
}

// ConfirmRegistration completes the hold and assigns tickets
func (c *Controller) ConfirmRegistration(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}

	registrationID, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	registration, err := c.service.ConfirmRegistration(ctx.Request.Context(), registrationID, userID, ctx.GetHeader("X-Client-ID"))
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registration confirmed successfully", registration, nil)
}

// CancelRegistration cancels a draft or pending registration
func (c *Controller) CancelRegistration(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}

	registrationID, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	if err := c.service.CancelRegistration(ctx.Request.Context(), registrationID, userID); err != nil {
		respondServiceError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registration cancelled successfully", nil, nil)
}

// GetRegistration returns one registration with its attendees
func (c *Controller) GetRegistration(ctx *gin.Context) {
	registrationID, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	registration, err := c.service.GetRegistration(ctx.Request.Context(), registrationID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registration retrieved successfully", registration, nil)
}

// GetByReference looks a registration up by its public reference
func (c *Controller) GetByReference(ctx *gin.Context) {
	reference := ctx.Param("reference")

	registration, err := c.service.GetByReference(ctx.Request.Context(), reference)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registration retrieved successfully", registration, nil)
}

// GetMyRegistrations lists the caller's registrations
func (c *Controller) GetMyRegistrations(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}

	var query RegistrationListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.GetUserRegistrations(ctx.Request.Context(), userID, query)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to retrieve registrations", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registrations retrieved successfully", result, nil)
}

// GetEventRegistrations lists confirmed registrations for an event (admin)
func (c *Controller) GetEventRegistrations(ctx *gin.Context) {
	eventID, ok := pathUUID(ctx, "eventId")
	if !ok {
		return
	}

	registrations, err := c.service.GetEventRegistrations(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to retrieve registrations", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Registrations retrieved successfully", registrations, nil)
}

//  HELPERS

func userIDFrom(ctx *gin.Context) (uuid.UUID, bool) {
	raw, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Authentication required", nil, nil)
		return uuid.Nil, false
	}
	idStr, ok := raw.(string)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Authentication required", nil, nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Invalid user identity", nil, nil)
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(ctx *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(param))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid "+param, nil, nil)
		return uuid.Nil, false
	}
	return id, true
}

func respondServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRegistrationNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Registration not found", nil, nil)
	case errors.Is(err, ErrNotOwner):
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Registration does not belong to you", nil, nil)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNoAttendees), errors.Is(err, ErrNoReservation):
		response.RespondJSON(ctx, "error", http.StatusConflict, err.Error(), nil, nil)
	case errors.Is(err, ErrCompletionFailed):
		response.RespondJSON(ctx, "error", http.StatusConflict, err.Error(), nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Internal server error", nil, err.Error())
	}
}
