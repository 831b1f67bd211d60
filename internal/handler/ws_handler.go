package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"teamboard/internal/realtime"
	"teamboard/pkg/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades GET /ws connections and hands them to the hub.
type WSHandler struct {
	hub       *realtime.Hub
	jwtSecret string
	logger    *zap.Logger
}

func NewWSHandler(hub *realtime.Hub, jwtSecret string, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, jwtSecret: jwtSecret, logger: logger}
}

// Serve authenticates and upgrades the connection. Browsers cannot set the
// Authorization header on a websocket dial, so the token rides the query
// string; header auth still works for other clients.
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = util.ExtractToken(c.Request)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := util.ParseJWT(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote its own HTTP error response.
		h.logger.Error("Websocket upgrade failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return
	}

	h.hub.NewClient(conn, userID)
}
