package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"carecohort/internal/infrastructure"
	"carecohort/pkg/contracts/events"
)

const broadcastBuffer = 256

// HubStats is a point-in-time view of the hub counters.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	DroppedClients   int64 `json:"dropped_clients"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	activeClients    atomic.Int64
	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	droppedClients   atomic.Int64

	logger *slog.Logger
}

// NewHub creates a hub. Call Start before publishing.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
}

// Start runs the hub loop in its own goroutine. It is a no-op when the hub
// is already running or was stopped.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	select {
	case <-h.quit:
		return
	default:
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.quit)
	h.mu.Unlock()
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.activeClients.Store(0)
			h.logger.Info("Hub shutting down")
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.activeClients.Store(int64(len(h.clients)))
			h.totalConnections.Add(1)
			h.logger.Info("Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr))
			h.greet(c)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.activeClients.Store(int64(len(h.clients)))
				h.logger.Info("Client unregistered",
					slog.Int("total_clients", len(h.clients)),
					slog.String("client_id", c.id),
					slog.Duration("connection_duration", time.Since(c.connectedAt)))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
					h.messagesSent.Add(1)
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
					h.activeClients.Store(int64(len(h.clients)))
					h.droppedClients.Add(1)
					h.logger.Warn("Client send buffer full, disconnecting", slog.String("client_id", c.id))
				}
			}
		}
	}
}

func (h *Hub) greet(c *Client) {
	data, err := json.Marshal(events.Message{
		Type:      events.MessageTypeConnection,
		Timestamp: time.Now().UTC(),
		TraceID:   c.traceID,
		Data: events.ConnectionInfo{
			ClientID: c.id,
			Status:   "connected",
			Message:  "Connected to carecohort round events",
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
		h.messagesSent.Add(1)
	default:
	}
}

// Register adds a client. It returns false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// PublishRound broadcasts a round snapshot to every client. Snapshots
// published while the hub is not running are dropped.
func (h *Hub) PublishRound(ctx context.Context, snap events.RoundSnapshot) {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	traceID := infrastructure.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = infrastructure.GetTraceID(ctx)
	}
	data, err := json.Marshal(events.Message{
		Type:      events.MessageTypeRoundSnapshot,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Data:      snap,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling round snapshot", slog.String("error", err.Error()))
		return
	}
	h.enqueue(ctx, data)
}

func (h *Hub) enqueue(ctx context.Context, msg []byte) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "Broadcast dropped", slog.String("error", ctx.Err().Error()))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.activeClients.Load())
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		DroppedClients:   h.droppedClients.Load(),
	}
}
