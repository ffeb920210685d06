package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kalshi_news/internal/domain"
	"kalshi_news/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxReadSize    = 512
	sendBufferSize = 8
	hubHotSize     = 10
)

type hotEntryJSON struct {
	Ticker        string          `json:"ticker"`
	Title         string          `json:"title"`
	Category      domain.Category `json:"category"`
	YesPrice      int             `json:"yes_price"`
	HeatScore     float64         `json:"heat_score"`
	CombinedScore float64         `json:"combined_score"`
	NewsCount     int             `json:"news_count"`
}

type snapshotMessage struct {
	Type        string         `json:"type"`
	SnapshotID  string         `json:"snapshot_id"`
	LastUpdated time.Time      `json:"last_updated"`
	Markets     int            `json:"markets"`
	News        int            `json:"news"`
	Hot         []hotEntryJSON `json:"hot"`
}

func newSnapshotMessage(snap *domain.Snapshot, n int) snapshotMessage {
	hot := snap.Hot[:min(n, len(snap.Hot))]
	entries := make([]hotEntryJSON, len(hot))
	for i, sm := range hot {
		entries[i] = hotEntryJSON{
			Ticker:        sm.Ticker,
			Title:         sm.Title,
			Category:      sm.Category,
			YesPrice:      sm.YesPrice,
			HeatScore:     round(sm.Heat, 2),
			CombinedScore: round(sm.Combined, 2),
			NewsCount:     len(sm.Matches),
		}
	}
	return snapshotMessage{
		Type:        "snapshot",
		SnapshotID:  snap.ID.String(),
		LastUpdated: snap.UpdatedAt,
		Markets:     len(snap.Markets),
		News:        snap.NewsCount,
		Hot:         entries,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes a hot list summary to websocket subscribers whenever a snapshot is published
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *infra.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte // Latest message, replayed to new subscribers
	closed  bool
}

// NewHub creates a Hub. Origins other than allowOrigin are rejected unless it is "*".
func NewHub(allowOrigin string, metrics *infra.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == "*" || origin == allowOrigin
			},
		},
		metrics: metrics,
		logger:  slog.Default().With(slog.String("module", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(c) {
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.metrics.IncrementClients()
	return true
}

// drop removes c and closes its send channel. Callers hold mu.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.DecrementClients()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
}

// Publish broadcasts the summary of snap. Subscribers that cannot keep up are disconnected.
func (h *Hub) Publish(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	msg, err := json.Marshal(newSnapshotMessage(snap, hubHotSize))
	if err != nil {
		h.logger.Error("Failed to encode snapshot message", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow websocket client")
			h.drop(c)
		}
	}
	h.metrics.RecordBroadcast()
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
