// Package ws exposes the WebSocket endpoint that feeds live order
// updates to subscribed clients.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ordertrack/ordertrack/internal/broadcast"
	"github.com/ordertrack/ordertrack/internal/service"
)

type Handler struct {
	service      service.OrderService
	registry     *broadcast.Registry
	dispatcher   *broadcast.Dispatcher
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewHandler creates a new WebSocket handler. Each accepted connection
// becomes a broadcast subscriber until its transport signals closure.
func NewHandler(svc service.OrderService, registry *broadcast.Registry, dispatcher *broadcast.Dispatcher,
	sendBuffer int, writeTimeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		service:    svc,
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the deployment's proxy layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "ws"),
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Get("/ws", h.Subscribe)
}

// Subscribe upgrades the connection, seeds it with the current order
// snapshot and registers it for future broadcasts. Events committed
// between the snapshot and registration are not replayed; delivery is
// at-most-once by contract.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	sub := newSubscriber(uuid.NewString(), conn, h.sendBuffer, h.writeTimeout, h.logger)
	h.logger.InfoContext(r.Context(), "Subscriber connected", "subscriber_id", sub.ID(), "remote_addr", r.RemoteAddr)

	go sub.writePump()

	orders, err := h.service.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to load initial orders", "subscriber_id", sub.ID(), "error", err)
		sub.Close()
		return
	}
	h.dispatcher.SendSnapshot(r.Context(), sub, orders)
	h.registry.Register(sub)

	go sub.readPump(func() {
		h.registry.Unregister(sub)
		h.logger.Info("Subscriber disconnected", "subscriber_id", sub.ID())
	})
}
