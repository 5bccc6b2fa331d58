package packages

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

func (c *Controller) CreateTicketDefinition(ctx *gin.Context) {
	var req CreateTicketDefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	definition, err := c.service.CreateTicketDefinition(ctx.Request.Context(), req)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to create ticket definition", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Ticket definition created successfully", definition, nil)
}

func (c *Controller) GetTicketDefinition(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket definition ID", nil, nil)
		return
	}

	definition, err := c.service.GetTicketDefinition(ctx.Request.Context(), id)
	if err != nil {
		if err == ErrDefinitionNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket definition not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get ticket definition", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket definition retrieved successfully", definition, nil)
}

func (c *Controller) GetTicketDefinitionsByEvent(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("eventId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	definitions, err := c.service.GetTicketDefinitionsByEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get ticket definitions", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket definitions retrieved successfully", definitions, nil)
}

func (c *Controller) UpdateTicketDefinition(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket definition ID", nil, nil)
		return
	}

	var req UpdateTicketDefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	definition, err := c.service.UpdateTicketDefinition(ctx.Request.Context(), id, req)
	if err != nil {
		if err == ErrDefinitionNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket definition not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to update ticket definition", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket definition updated successfully", definition, nil)
}

func (c *Controller) DeleteTicketDefinition(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket definition ID", nil, nil)
		return
	}

	if err := c.service.DeleteTicketDefinition(ctx.Request.Context(), id); err != nil {
		switch err {
		case ErrDefinitionNotFound:
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket definition not found", nil, nil)
		case ErrDefinitionHasSoldTickets:
			response.RespondJSON(ctx, "error", http.StatusConflict, "Ticket definition has reserved or sold tickets. Deactivate it instead", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to delete ticket definition", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket definition deleted successfully", nil, nil)
}
