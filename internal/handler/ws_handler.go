package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bubasket/marketplace-backend/internal/service"
	"github.com/bubasket/marketplace-backend/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// TokenVerifier verifies a raw bearer token and returns the uid. Browsers
// cannot set headers on a websocket dial, so the token arrives as a query
// parameter and is verified here instead of in the auth middleware.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type WSHandler struct {
	guard    service.AccessGuard
	hub      *ws.Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewWSHandler(guard service.AccessGuard, hub *ws.Hub, verifier TokenVerifier) *WSHandler {
	return &WSHandler{
		guard:    guard,
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins already passed the server's CORS policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe handles GET /conversations/:id/ws. Membership is checked once at
// subscription time; afterwards the connection only ever receives events for
// this conversation.
func (h *WSHandler) Subscribe(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing token"))
	}
	uid, err := h.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "invalid token"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	if _, err := h.guard.Authorize(c.Request().Context(), convID, uid); err != nil {
		return serviceError(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	sub := h.hub.Subscribe(convID, uid)
	defer sub.Close()
	defer conn.Close()

	// The client never sends data frames, but the read pump must run so
	// close/ping/pong control frames are processed and disconnects noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
