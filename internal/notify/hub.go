package notify

import (
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/stormline/dispatch/internal/models"
)

const writeTimeout = 5 * time.Second

// jobEvent is the payload pushed to subscribed contractors when a new job is
// created. Advisory only: the pull model (polling candidate jobs) stays the
// source of truth, so a missed event is harmless.
type jobEvent struct {
	Type         string `json:"type"`
	JobID        int64  `json:"job_id"`
	IncidentType string `json:"incident_type"`
	Location     string `json:"location"`
	Urgency      string `json:"urgency"`
	Created      int64  `json:"created"`
}

// subscriber pairs a connection with its write lock. Broadcasts can arrive
// from any handler goroutine and the websocket allows only one writer at a
// time, so every write goes through mu.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(event jobEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(event)
}

// Hub fans job events out to connected contractor WebSockets.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
	}
}

// Subscribe upgrades the request and registers the connection. The read loop
// exists only to observe the close; subscribers never send.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	sub := &subscriber{conn: conn}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[sub] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("contractor subscribed", slog.Int("subscribers", n))

	go func() {
		defer h.drop(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Subscribers reports the number of registered connections.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastNewJob pushes a new_job event to every subscriber. Best effort;
// clients that cannot keep up within the write deadline are dropped.
func (h *Hub) BroadcastNewJob(job *models.Job) {
	event := jobEvent{
		Type:         "new_job",
		JobID:        job.ID,
		IncidentType: job.IncidentType,
		Location:     job.Location,
		Urgency:      job.Urgency,
		Created:      job.Created,
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for s := range h.clients {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.write(event); err != nil {
			h.logger.Warn("dropping slow subscriber", slog.Any("err", err))
			h.drop(s)
		}
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	delete(h.clients, sub)
	h.mu.Unlock()
	sub.conn.Close()
}

// Close disconnects all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.clients))
	for s := range h.clients {
		subs = append(subs, s)
	}
	h.clients = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, s := range subs {
		s.conn.Close()
	}
}
