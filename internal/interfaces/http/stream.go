package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub streams finished reports to websocket subscribers. Every report
// built by the scan endpoint is broadcast to every connected client; a
// slow client loses messages rather than stalling the broadcast.
type Hub struct {
	mu       sync.RWMutex
	subs     map[uuid.UUID]*streamSub
	upgrader websocket.Upgrader
	onCount  func(int)
}

type streamSub struct {
	id      uuid.UUID
	conn    *websocket.Conn
	updates chan []byte
	done    chan struct{}
}

// NewHub creates an empty hub. onCount, when set, is called with the
// subscriber count after every connect and disconnect.
func NewHub(onCount func(int)) *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]*streamSub),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		onCount: onCount,
	}
}

// HandleWS upgrades the connection and streams broadcasts until the
// client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &streamSub{
		id:      uuid.New(),
		conn:    conn,
		updates: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	h.add(sub)
	defer func() {
		h.remove(sub.id)
		conn.Close()
	}()

	// Reader exists only to notice the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(sub.done)
				return
			}
		}
	}()

	for {
		select {
		case msg := <-sub.updates:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-sub.done:
			return
		}
	}
}

// Broadcast sends one payload to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal stream payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.updates <- data:
		case <-sub.done:
		default:
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CloseAll tells every subscriber the stream is over and closes the
// connections. Used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	for id, sub := range h.subs {
		sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		sub.conn.Close()
		delete(h.subs, id)
	}
	if h.onCount != nil {
		h.onCount(0)
	}
}

func (h *Hub) add(sub *streamSub) {
	h.mu.Lock()
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	if h.onCount != nil {
		h.onCount(count)
	}
	log.Debug().Str("subscriber", sub.id.String()[:8]).Int("total", count).Msg("stream subscriber connected")
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subs, id)
	count := len(h.subs)
	h.mu.Unlock()

	if h.onCount != nil {
		h.onCount(count)
	}
	log.Debug().Str("subscriber", id.String()[:8]).Int("total", count).Msg("stream subscriber disconnected")
}
