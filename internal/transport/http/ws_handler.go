package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"coefcalc/internal/config"
	"coefcalc/internal/infrastructure"
	ws "coefcalc/internal/websocket"
)

// WebSocketHandler upgrades progress subscriptions
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates the /ws handler. Cross-origin upgrades are
// accepted only from allowedOrigins; "*" accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	logger = logger.With(slog.String("handler", "websocket"))
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws?calculation_id=...
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	calculationID := r.URL.Query().Get(FieldCalculationID)
	traceID := infrastructure.GetTraceID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	client := ws.ServeWS(h.hub, conn, calculationID, traceID, h.logger)
	h.logger.InfoContext(r.Context(), "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("calculation_id", calculationID))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		// Same-origin requests are always allowed
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
