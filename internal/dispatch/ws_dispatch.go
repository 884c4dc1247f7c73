// Package dispatch owns the live websocket handles. It keeps only the
// transient (session id, player id) → connection association; all session
// state lives with the session itself.
package dispatch

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/restaurant-matching/internal/models"
	"github.com/example/restaurant-matching/internal/observability"
)

type connKey struct {
	sessionID string
	playerID  string
}

// WSRegistry tracks one logical connection per (session, player) pair and
// fans session snapshots out to them. Sends are fire-and-forget: a full or
// broken connection is dropped, never waited on.
type WSRegistry struct {
	mu     sync.RWMutex
	conns  map[connKey]*Conn
	logger *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{conns: make(map[connKey]*Conn), logger: logger}
}

// Add registers a new connection, displacing any previous one for the same
// pair. A reconnect supersedes the stale socket.
func (r *WSRegistry) Add(sessionID, playerID string, ws *websocket.Conn) *Conn {
	c := newConn(ws)
	key := connKey{sessionID, playerID}
	r.mu.Lock()
	old := r.conns[key]
	r.conns[key] = c
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return c
}

// Remove closes the connection and drops the registration if it still belongs
// to it. The return value tells the caller whether the player should now be
// treated as disconnected: false means a reconnect has already displaced this
// connection and a live socket still owns the pair.
func (r *WSRegistry) Remove(sessionID, playerID string, c *Conn) bool {
	key := connKey{sessionID, playerID}
	r.mu.Lock()
	cur, ok := r.conns[key]
	if cur == c {
		delete(r.conns, key)
	}
	displaced := ok && cur != c
	r.mu.Unlock()
	c.Close()
	return !displaced
}

// Broadcast serializes once and enqueues to every connection of the session.
func (r *WSRegistry) Broadcast(sessionID string, msg models.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal broadcast", "session_id", sessionID, "error", err)
		return
	}

	r.mu.RLock()
	targets := make(map[connKey]*Conn)
	for key, c := range r.conns {
		if key.sessionID == sessionID {
			targets[key] = c
		}
	}
	r.mu.RUnlock()

	for key, c := range targets {
		if !c.enqueue(payload) {
			r.dropSlow(key, c)
		}
	}
}

// SendTo delivers to a single player's connection, for errors that must not
// reach the rest of the session.
func (r *WSRegistry) SendTo(sessionID, playerID string, msg models.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal send", "session_id", sessionID, "error", err)
		return
	}
	key := connKey{sessionID, playerID}
	r.mu.RLock()
	c := r.conns[key]
	r.mu.RUnlock()
	if c == nil {
		return
	}
	if !c.enqueue(payload) {
		r.dropSlow(key, c)
	}
}

// dropSlow severs a connection that cannot keep up. Closing the socket makes
// the reader loop exit, which runs the normal disconnect path so the player's
// state is updated like any other disconnect.
func (r *WSRegistry) dropSlow(key connKey, c *Conn) {
	observability.BroadcastDropsTotal.Inc()
	r.logger.Warn("dropping slow connection", "session_id", key.sessionID, "player_id", key.playerID)
	r.Remove(key.sessionID, key.playerID, c)
}
