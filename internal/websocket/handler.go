package websocket

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zaikon/internal/apperr"

	ws "github.com/coder/websocket"
)

// Authorizer resolves which user is connecting and which location they
// want to watch, failing when they may not watch it.
type Authorizer func(r *http.Request) (userID, locationID int64, err error)

// HandleWebSocket returns an HTTP handler that authorizes the request,
// upgrades it, and runs the connection as a Hub client.
func HandleWebSocket(hub *Hub, authorize Authorizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, locationID, err := authorize(r)
		if err != nil {
			if apperr.IsInternal(err) {
				logger.Error("websocket authorize", "error", err)
			}
			http.Error(w, apperr.Message(err), apperr.Status(err))
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, userID, locationID)
		client.Run(r.Context())
	}
}
