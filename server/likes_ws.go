package server

import (
	"net/http"
	"time"

	"reverbfm/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin access is already handled by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// LikesFeedHandler upgrades to a websocket and streams the caller's
// liked-set change events, so listing views update without a reload.
func (h *APIHandler) LikesFeedHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Websocket upgrade failed", logger.ErrorField(err))
		return
	}

	events, cancel := h.tracker.Subscribe(caller)
	logger.Info("Likes feed subscribed", logger.String("userId", caller))

	// Reader goroutine: we expect no client messages, but reading is what
	// detects the peer closing the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
		logger.Info("Likes feed closed", logger.String("userId", caller))
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Warn("Failed to push like event",
					logger.String("userId", caller),
					logger.ErrorField(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
