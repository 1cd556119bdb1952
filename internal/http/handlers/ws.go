package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// cross-origin is already constrained by the CORS layer and the
		// bearer token carried in the query string
		return true
	},
}

// ServeWS upgrades an authenticated request to a websocket connection.
// Technicians get their own job events and may push location pings;
// dispatch roles watch everything.
func (h *Handler) ServeWS(c *gin.Context) {
	payload := middleware.AuthPayload(c)

	clientType := realtime.ClientTypeDispatcher
	var onLocation realtime.LocationFunc
	if payload.Role == models.RoleTechnician {
		clientType = realtime.ClientTypeTechnician
		onLocation = h.recordLocation
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written its own error response
		h.Logger.Warn().Err(err).Int64("user_id", payload.UserID).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.Hub, conn, realtime.ClientInfo{
		UserID:     payload.UserID,
		Role:       payload.Role,
		ClientType: clientType,
	}, onLocation)

	h.Hub.Register(client)
	metrics.WSConnections.WithLabelValues(string(clientType)).Inc()

	go client.WritePump()
	go func() {
		defer metrics.WSConnections.WithLabelValues(string(clientType)).Dec()
		client.ReadPump()
	}()
}
