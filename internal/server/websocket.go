package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"device-monitor/internal/model"
)

const (
	writeWait      = 5 * time.Second
	defaultFeedGap = 2 * time.Second
)

// metricsUpdate is the WebSocket broadcast envelope.
type metricsUpdate struct {
	Type      string           `json:"type"`
	Data      *model.Aggregate `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// latestFunc provides the aggregate each broadcast tick pushes out.
type latestFunc func(ctx context.Context) (*model.Aggregate, error)

// Hub fans the latest aggregate out to all connected WebSocket clients
// on a fixed interval. A slow or dead client is dropped rather than
// stalling the rest.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	latest   latestFunc
	interval time.Duration
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub creates a Hub broadcasting on the given interval.
func NewHub(latest latestFunc, interval time.Duration, logger zerolog.Logger) *Hub {
	if interval <= 0 {
		interval = defaultFeedGap
	}
	return &Hub{
		clients:  make(map[*websocket.Conn]struct{}),
		latest:   latest,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard frontend may be served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "websocket").Logger(),
	}
}

// ServeWS upgrades the connection and registers the client. A reader
// goroutine drains incoming frames so close handshakes are noticed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.register(conn)
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	websocketClients.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	websocketClients.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run broadcasts until ctx is cancelled. Ticks with no clients or no
// aggregate yet are skipped.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.broadcast(ctx)
		}
	}
}

func (h *Hub) broadcast(ctx context.Context) {
	if h.ClientCount() == 0 {
		return
	}

	agg, err := h.latest(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("broadcast skipped, latest aggregate unavailable")
		return
	}
	if agg == nil {
		return
	}

	update := metricsUpdate{
		Type:      "metrics_update",
		Data:      agg,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(update); err != nil {
			h.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("dropping client")
			h.unregister(conn)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
	websocketClients.Set(0)
}
