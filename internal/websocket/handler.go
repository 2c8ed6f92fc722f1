package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"carecohort/internal/infrastructure"
)

// HandlerConfig controls which browser origins may open a connection.
type HandlerConfig struct {
	AllowedOrigins []string
	// AllowAllOrigins skips the origin check, for development.
	AllowAllOrigins bool
}

// Handler upgrades requests to WebSocket connections registered on hub.
func Handler(hub *Hub, cfg HandlerConfig, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "websocket.handler")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.AllowAllOrigins || originAllowed(r, cfg.AllowedOrigins)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response
			logger.WarnContext(ctx, "WebSocket upgrade failed",
				slog.String("origin", r.Header.Get("Origin")),
				slog.String("error", err.Error()))
			return
		}

		client := NewClient(hub, NewConnectionWrapper(conn), infrastructure.GetTraceID(ctx), logger)
		if !hub.Register(client) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}
}

// originAllowed accepts requests without an Origin header, same-host origins
// and the configured origins.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}
