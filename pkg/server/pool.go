package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/pitlane/pkg/session"
)

// connectionPool holds the observer websockets of one interview session.
// Broadcasting and error handling live here so the router handlers stay small.
type connectionPool struct {
	sessionID string
	mu        sync.Mutex
	conns     map[*websocket.Conn]struct{}
}

func newConnectionPool(sessionID string) *connectionPool {
	return &connectionPool{
		sessionID: sessionID,
		conns:     map[*websocket.Conn]struct{}{},
	}
}

func (cp *connectionPool) Add(conn *websocket.Conn) {
	if cp == nil || conn == nil {
		return
	}
	cp.mu.Lock()
	cp.conns[conn] = struct{}{}
	cp.mu.Unlock()
}

func (cp *connectionPool) Remove(conn *websocket.Conn) {
	if cp == nil || conn == nil {
		return
	}
	cp.mu.Lock()
	delete(cp.conns, conn)
	cp.mu.Unlock()
	_ = conn.Close()
}

func (cp *connectionPool) Broadcast(data []byte) {
	if cp == nil || len(data) == 0 {
		return
	}
	cp.mu.Lock()
	for conn := range cp.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("component", "server").Str("session_id", cp.sessionID).Msg("ws broadcast failed, dropping connection")
			delete(cp.conns, conn)
			_ = conn.Close()
		}
	}
	cp.mu.Unlock()
}

func (cp *connectionPool) Count() int {
	if cp == nil {
		return 0
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.conns)
}

func (cp *connectionPool) CloseAll() {
	if cp == nil {
		return
	}
	cp.mu.Lock()
	for conn := range cp.conns {
		_ = conn.Close()
		delete(cp.conns, conn)
	}
	cp.mu.Unlock()
}

// Hub fans interview transitions out to per-session observer pools. It is
// wired into the dialogue engine as its notifier.
type Hub struct {
	mu    sync.Mutex
	pools map[string]*connectionPool
}

func NewHub() *Hub {
	return &Hub{pools: map[string]*connectionPool{}}
}

func (h *Hub) pool(sessionID string, create bool) *connectionPool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp, ok := h.pools[sessionID]
	if !ok && create {
		cp = newConnectionPool(sessionID)
		h.pools[sessionID] = cp
	}
	return cp
}

// Attach registers an observer connection for a session.
func (h *Hub) Attach(sessionID string, conn *websocket.Conn) {
	h.pool(sessionID, true).Add(conn)
	log.Debug().Str("component", "server").Str("session_id", sessionID).Msg("observer attached")
}

// Detach drops an observer connection, removing the pool when it empties.
func (h *Hub) Detach(sessionID string, conn *websocket.Conn) {
	cp := h.pool(sessionID, false)
	if cp == nil {
		_ = conn.Close()
		return
	}
	cp.Remove(conn)
	h.mu.Lock()
	if cp.Count() == 0 {
		delete(h.pools, sessionID)
	}
	h.mu.Unlock()
}

// ObserverCount reports the number of live observers for a session.
func (h *Hub) ObserverCount(sessionID string) int {
	return h.pool(sessionID, false).Count()
}

func (h *Hub) broadcast(sessionID string, event any) {
	cp := h.pool(sessionID, false)
	if cp == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("marshal observer event")
		return
	}
	cp.Broadcast(data)
}

// TurnRecorded implements interview.Notifier.
func (h *Hub) TurnRecorded(sessionID string, turn session.Turn, stage int) {
	h.broadcast(sessionID, map[string]any{
		"event":    "turn",
		"stage":    stage,
		"question": turn.Question,
		"answer":   turn.Answer,
	})
}

// InterviewCompleted implements interview.Notifier.
func (h *Hub) InterviewCompleted(sessionID, title string) {
	h.broadcast(sessionID, map[string]any{
		"event": "complete",
		"title": title,
	})
}

// Close drops every observer connection.
func (h *Hub) Close() {
	h.mu.Lock()
	pools := make([]*connectionPool, 0, len(h.pools))
	for id, cp := range h.pools {
		pools = append(pools, cp)
		delete(h.pools, id)
	}
	h.mu.Unlock()
	for _, cp := range pools {
		cp.CloseAll()
	}
}
