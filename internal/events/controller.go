package events

import (
	"net/http"
	"strconv"

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

func (c *Controller) CreateEvent(ctx *gin.Context) {
	userID, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	adminID, err := uuid.Parse(userID.(string))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid user ID", nil, nil)
		return
	}

	var req CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	event, err := c.service.CreateEvent(adminID, req)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to create event", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Event created successfully", event, nil)
}

func (c *Controller) GetEvent(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	event, err := c.service.GetEventByID(id)
	if err != nil {
		if err == ErrEventNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get event", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

func (c *Controller) GetEventBySlug(ctx *gin.Context) {
	slug := ctx.Param("slug")
	if slug == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Slug is required", nil, nil)
		return
	}

	event, err := c.service.GetEventBySlug(slug)
	if err != nil {
		if err == ErrEventNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get event", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

func (c *Controller) GetAllEvents(ctx *gin.Context) {
	var query EventListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.GetAllEvents(query)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get events", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Events retrieved successfully", result, nil)
}

func (c *Controller) GetUpcomingEvents(ctx *gin.Context) {
	limit := 10
	if v := ctx.Query("limit"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			limit = parsed
		}
	}

	events, err := c.service.GetUpcomingEvents(limit)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get upcoming events", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Upcoming events retrieved successfully", events, nil)
}

func (c *Controller) GetFeaturedEvents(ctx *gin.Context) {
	limit := 6
	if v := ctx.Query("limit"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			limit = parsed
		}
	}

	events, err := c.service.GetFeaturedEvents(limit)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get featured events", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Featured events retrieved successfully", events, nil)
}

func (c *Controller) UpdateEvent(ctx *gin.Context) {
	userID, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	adminID, err := uuid.Parse(userID.(string))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid user ID", nil, nil)
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	var req UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	event, err := c.service.UpdateEvent(id, adminID, req)
	if err != nil {
		if err == ErrEventNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to update event", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Event updated successfully", event, nil)
}

func (c *Controller) DeleteEvent(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	if err := c.service.DeleteEvent(id); err != nil {
		if err == ErrEventNotFound {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Failed to delete event", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Event deleted successfully", nil, nil)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
