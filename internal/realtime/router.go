package realtime

import (
	"net/http"

	"lodgetix/internal/shared/utils/response"
	"lodgetix/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The wizard runs on a separate origin in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Router exposes the websocket endpoint for live presence and system
// broadcasts
type Router struct {
	hub *Hub
}

func NewRouter(hub *Hub) *Router {
	return &Router{hub: hub}
}

// SetupRoutes registers the realtime routes
func (realtimeRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	rt := rg.Group("/realtime")
	{
		rt.GET("/ws/:eventId", realtimeRouter.handleWebsocket)
	}
}

// handleWebsocket upgrades the connection and attaches the client to the
// hub. Query params: client_id (page-session UUID, minted when absent),
// ticket_definition_id (optional scope).
func (realtimeRouter *Router) handleWebsocket(ctx *gin.Context) {
	eventID := ctx.Param("eventId")
	if eventID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Event ID is required", nil, nil)
		return
	}

	clientID := ctx.Query("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	ticketDefinitionID := ctx.Query("ticket_definition_id")

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.GetDefault().WithError(err).Error("failed to upgrade websocket connection")
		return
	}

	client := NewClient(realtimeRouter.hub, conn, clientID, eventID, ticketDefinitionID)
	realtimeRouter.hub.Register <- client
	client.Start()
}
