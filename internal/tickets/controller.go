package tickets

import (
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

// GetAvailability serves raw counts for one (event, definition) pair.
// The reservation orchestrator wraps this with fail-open semantics; this
// endpoint reports errors as errors.
func (c *Controller) GetAvailability(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("eventId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	definitionID, err := uuid.Parse(ctx.Param("definitionId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket definition ID", nil, nil)
		return
	}

	availability, err := c.service.GetTicketAvailability(ctx.Request.Context(), eventID, definitionID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get availability", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}

func (c *Controller) GetTicket(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	ticket, err := c.service.GetTicketByID(ctx.Request.Context(), id)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket not found", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket retrieved successfully", ticket, nil)
}

func (c *Controller) GetTicketsByEvent(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("eventId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	var query TicketListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.GetTicketsByEvent(ctx.Request.Context(), eventID, query)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get tickets", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Tickets retrieved successfully", result, nil)
}

func (c *Controller) CheckInTicket(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	ticket, err := c.service.CheckInTicket(ctx.Request.Context(), id)
	if err != nil {
		switch err {
		case ErrTicketNotFound:
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket not found", nil, nil)
		case ErrTicketNotSold:
			response.RespondJSON(ctx, "error", http.StatusConflict, "Only sold tickets can be checked in", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to check in ticket", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket checked in successfully", ticket, nil)
}
