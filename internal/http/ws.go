package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/restaurant-matching/internal/models"
	"github.com/example/restaurant-matching/internal/session"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	// Origin checking is deferred to the reverse proxy in deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS runs one player's realtime connection: validate, register, then
// pump inbound actions into the session core until the socket dies.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["session_id"]
	playerID := vars["player_id"]

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := s.wsreg.Add(sessionID, playerID, ws)

	// Validation happens post-upgrade so the client gets an explicit error
	// frame instead of a bare handshake failure.
	if err := s.sessions.Connect(sessionID, playerID); err != nil {
		msg := "internal error"
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrPlayerNotFound) {
			msg = err.Error()
		}
		s.wsreg.SendTo(sessionID, playerID, models.ServerMessage{Type: models.MessageError, Message: msg})
		s.wsreg.Remove(sessionID, playerID, conn)
		return
	}

	defer func() {
		// A reconnect displaces this connection before its reader exits; the
		// new socket owns the player then, so presence must not be cleared.
		if s.wsreg.Remove(sessionID, playerID, conn) {
			s.sessions.Disconnect(sessionID, playerID)
		}
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read", "session_id", sessionID, "player_id", playerID, "error", err)
			}
			return
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.wsreg.SendTo(sessionID, playerID, models.ServerMessage{Type: models.MessageError, Message: "invalid message"})
			continue
		}
		s.sessions.HandleAction(sessionID, playerID, msg)
	}
}
