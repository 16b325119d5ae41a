package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"barberbook/internal/logger"
	"barberbook/internal/pkg/jwt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler owns the websocket endpoint: authenticate, upgrade, register the
// connection, then pump inbound frames into the dispatcher.
type WSHandler struct {
	hub        *Hub
	jwtService *jwt.Service
	dispatcher *Dispatcher
	approverID int64
}

func NewWSHandler(hub *Hub, jwtService *jwt.Service, dispatcher *Dispatcher, approverID int64) *WSHandler {
	return &WSHandler{
		hub:        hub,
		jwtService: jwtService,
		dispatcher: dispatcher,
		approverID: approverID,
	}
}

// HandleWebSocket serves GET /ws.
//
// Customers identify with ?user_id=; attribution is the front-end's job, the
// engine trusts it. The approver must present ?token= (a JWT from the login
// endpoint); a bare user_id matching the approver is rejected.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.ErrorLogger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	h.hub.Register(userID, conn)
	logger.InfoLogger.Infof("user %d connected", userID)
	defer func() {
		h.hub.Unregister(userID, conn)
		logger.InfoLogger.Infof("user %d disconnected", userID)
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	go h.pingLoop(conn)

	h.readLoop(conn, userID)
}

func (h *WSHandler) authenticate(c *gin.Context) (int64, bool) {
	if token := c.Query("token"); token != "" {
		claims, err := h.jwtService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return 0, false
		}
		return claims.UserID, true
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user_id or token is required"})
		return 0, false
	}
	if userID == h.approverID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "approver must authenticate with a token"})
		return 0, false
	}
	return userID, true
}

func (h *WSHandler) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, userID int64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				logger.ErrorLogger.Errorf("websocket error for user %d: %v", userID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var frame inFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = conn.WriteJSON(outFrame{Type: "error", Text: "malformed frame"})
			continue
		}

		h.dispatcher.Dispatch(context.Background(), Event{
			UserID: userID,
			Text:   frame.Text,
			Data:   frame.Data,
		})
	}
}
