package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	dErrors "taproom/pkg/domain-errors"
	"taproom/pkg/platform/httputil"
	"taproom/pkg/requestcontext"
)

// SocketPath is where taps open their realtime connection.
const SocketPath = "/sockets/beers"

// Handler upgrades HTTP requests into registered websocket clients.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
	cfg      ClientConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a socket handler feeding registry.
func NewHandler(registry *Registry, logger *slog.Logger, cfg ClientConfig) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Taps connect from anywhere; there is no browser session to protect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register registers the socket route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get(SocketPath, h.handleConnect)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.registry.Full() {
		h.logger.WarnContext(ctx, "refusing websocket connection, registry full",
			"request_id", requestcontext.RequestID(ctx),
			"connections", h.registry.Len(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "too many live connections"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}

	client := NewClient(conn, h.cfg, h.logger)
	if err := h.registry.Register(client); err != nil {
		h.logger.WarnContext(ctx, "refusing websocket connection",
			"connection_id", client.ID().String(),
			"error", err,
		)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many live connections"),
			time.Now().Add(time.Second))
		_ = client.Close()
		return
	}

	h.logger.InfoContext(ctx, "A new tap has been connected to the system",
		"connection_id", client.ID().String(),
		"client_ip", requestcontext.ClientIP(ctx),
		"user_agent", requestcontext.UserAgent(ctx),
		"connections", h.registry.Len(),
	)

	client.Run()

	h.registry.Unregister(client)
	h.logger.InfoContext(ctx, "A tap has been disconnected from the system",
		"connection_id", client.ID().String(),
		"connections", h.registry.Len(),
	)
}
