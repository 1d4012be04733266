package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"visionchat/internal/common"
	"visionchat/internal/logger"
	"visionchat/internal/middleware"
	ws "visionchat/internal/service/websocket"
)

// newUpgrader accepts handshakes without an Origin header (non-browser
// clients) and browser handshakes from the allowed origins.
func newUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(origins, origin)
		},
	}
}

// DetectionFeedHandler streams the caller's detection events over a
// websocket until the client goes away.
func DetectionFeedHandler(hub *ws.HubService, origins []string, logger *logger.Logger) http.HandlerFunc {
	upgrader := newUpgrader(origins)
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			respondServiceError(w, logger, common.ErrUnauthorized)
			return
		}

		connection, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection, user.ID)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Feed client of user %d disconnected normally", user.ID)
				} else {
					logger.Warning("Feed client of user %d disconnected: %v", user.ID, err)
				}
				return
			}
		}
	}
}
