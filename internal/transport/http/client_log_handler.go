package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apierrors "coefcalc/internal/errors"
)

// maxClientMessage caps how much of a browser message reaches the log
const maxClientMessage = 1024

// ClientLogHandler forwards browser-side events to the server log
type ClientLogHandler struct {
	logger *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		logger: logger.With(slog.String("handler", "client_log")),
	}
}

// LogRequest represents a client log entry
type LogRequest struct {
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Source        string                 `json:"source,omitempty"`
	CalculationID string                 `json:"calculation_id,omitempty"`
}

// Handle processes POST /api/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apierrors.WriteError(w, apierrors.NewValidationError("Invalid request format"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		apierrors.WriteError(w, apierrors.ErrValidation("message", "message is required"))
		return
	}
	if len(req.Message) > maxClientMessage {
		req.Message = req.Message[:maxClientMessage]
	}

	level := clientLevel(req.Level)
	attrs := []slog.Attr{slog.String("client_source", req.Source)}
	if req.CalculationID != "" {
		attrs = append(attrs, slog.String("calculation_id", req.CalculationID))
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}

	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	render.JSON(w, r, map[string]interface{}{
		"success": true,
	})
}

// clientLevel maps a browser level name to a slog level. Unknown names log at info.
func clientLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
