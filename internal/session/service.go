package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/restaurant-matching/internal/models"
	"github.com/example/restaurant-matching/internal/observability"
)

// Repository is the session registry seam. The in-memory implementation is
// authoritative; a durable or TTL-evicting store can be substituted without
// touching ledger or lifecycle logic.
type Repository interface {
	Create(build func(id string) (*Session, error)) (*Session, error)
	Get(id string) (*Session, bool)
}

// Provider returns the ordered, deduplicated, capped candidate list.
type Provider interface {
	Search(ctx context.Context, cfg models.SearchConfig) ([]models.Restaurant, error)
}

// Broadcaster fans a message out to a session's live connections. Sends must
// never block state mutation: implementations enqueue and drop on backpressure.
type Broadcaster interface {
	Broadcast(sessionID string, msg models.ServerMessage)
	SendTo(sessionID, playerID string, msg models.ServerMessage)
}

// EventSink publishes session events for offline analytics. Optional.
type EventSink interface {
	Publish(ctx context.Context, ev models.SessionEvent) error
}

// Archive persists completed-session summaries. Optional, write-only.
type Archive interface {
	SaveSummary(ctx context.Context, sum models.SessionSummary) error
}

// Notifier pushes a completion notice out of band. Optional, best-effort.
type Notifier interface {
	NotifyCompleted(ctx context.Context, sum models.SessionSummary)
}

// Service coordinates sessions: it owns the create/join/action flows and the
// rule that every mutation is followed by a full-snapshot broadcast.
type Service struct {
	Repo     Repository
	Search   Provider
	Dispatch Broadcaster
	Events   EventSink // nil when no brokers configured
	History  Archive   // nil when archival is disabled
	Notify   Notifier  // nil when no webhook configured
	Logger   *slog.Logger

	InviteBaseURL string
	FetchTimeout  time.Duration
	SoloAutoStart bool
}

// CreateSession allocates a new session with the caller as host and schedules
// the one-shot background candidate fetch.
func (svc *Service) CreateSession(search models.SearchConfig, hostName string, maxPlayers int, threshold float64, mode models.Mode) (string, string, string, error) {
	if mode == "" {
		mode = models.ModeFreeform
	}
	sess, err := svc.Repo.Create(func(id string) (*Session, error) {
		settings := Settings{
			Search:             search,
			MaxPlayers:         maxPlayers,
			ConsensusThreshold: threshold,
			Mode:               mode,
			InviteURL:          fmt.Sprintf("%s/join/%s", svc.InviteBaseURL, id),
		}
		return New(id, settings, hostName)
	})
	if err != nil {
		return "", "", "", err
	}

	observability.SessionsActive.Inc()
	svc.Logger.Info("session created",
		"session_id", sess.ID(),
		"host", hostName,
		"max_players", maxPlayers,
		"threshold", threshold)
	svc.publish(models.SessionEvent{
		Type:        models.EventSessionCreated,
		SessionID:   sess.ID(),
		PlayerCount: 1,
		At:          time.Now(),
	})

	go svc.fetchCandidates(sess, search)

	snap := sess.Snapshot()
	return sess.ID(), snap.HostID, snap.InviteURL, nil
}

// fetchCandidates runs outside the per-session critical section and hands its
// result back through the session's own serialization point. Failure is
// terminal for the session.
func (svc *Service) fetchCandidates(sess *Session, search models.SearchConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), svc.FetchTimeout)
	defer cancel()

	list, err := svc.Search.Search(ctx, search)
	if err != nil || len(list) == 0 {
		if err == nil {
			err = fmt.Errorf("no restaurants found")
		}
		svc.Logger.Error("candidate fetch failed", "session_id", sess.ID(), "error", err)
		snap, moved := sess.SetFetchFailed()
		if moved {
			svc.broadcast(sess.ID(), snap)
		}
		return
	}

	snap, started, ok := sess.SetRestaurants(list, svc.SoloAutoStart)
	if !ok {
		return
	}
	svc.Logger.Info("candidates ready", "session_id", sess.ID(), "count", len(list), "auto_started", started)
	svc.broadcast(sess.ID(), snap)
}

// JoinSession adds a guest to an existing session and broadcasts the grown
// roster to everyone already connected.
func (svc *Service) JoinSession(sessionID, playerName string) (string, error) {
	sess, ok := svc.Repo.Get(sessionID)
	if !ok {
		return "", ErrNotFound
	}
	playerID, snap, err := sess.Join(playerName)
	if err != nil {
		return "", err
	}
	svc.Logger.Info("player joined", "session_id", sessionID, "player_id", playerID, "name", playerName)
	svc.broadcast(sessionID, snap)
	return playerID, nil
}

// GetSnapshot is the read accessor behind GET /sessions/{id}.
func (svc *Service) GetSnapshot(sessionID string) (models.Snapshot, error) {
	sess, ok := svc.Repo.Get(sessionID)
	if !ok {
		return models.Snapshot{}, ErrNotFound
	}
	return sess.Snapshot(), nil
}

// Connect validates the (session, player) pair for a new websocket and marks
// the player present. The returned error text goes to the client verbatim.
func (svc *Service) Connect(sessionID, playerID string) error {
	sess, ok := svc.Repo.Get(sessionID)
	if !ok {
		return ErrNotFound
	}
	snap, started, err := sess.Connect(playerID, svc.SoloAutoStart)
	if err != nil {
		return err
	}
	observability.PlayersConnected.Inc()
	if started {
		svc.Logger.Info("solo auto-start", "session_id", sessionID, "player_id", playerID)
	}
	svc.broadcast(sessionID, snap)
	return nil
}

// Disconnect handles both voluntary closes and network failures. Remaining
// players see the shrunk consensus denominator immediately.
func (svc *Service) Disconnect(sessionID, playerID string) {
	sess, ok := svc.Repo.Get(sessionID)
	if !ok {
		return
	}
	snap, changed := sess.Disconnect(playerID)
	if !changed {
		return
	}
	observability.PlayersConnected.Dec()
	svc.Logger.Info("player disconnected", "session_id", sessionID, "player_id", playerID)
	svc.broadcast(sessionID, snap)
}

// HandleAction applies one inbound websocket message. Errors are reported to
// the offending connection only; successful mutations broadcast to everyone.
func (svc *Service) HandleAction(sessionID, playerID string, msg models.ClientMessage) {
	sess, ok := svc.Repo.Get(sessionID)
	if !ok {
		svc.sendError(sessionID, playerID, ErrNotFound.Error())
		return
	}

	switch msg.Action {
	case models.ActionSwipe:
		svc.handleSwipe(sess, playerID, msg)

	case models.ActionSetReady:
		snap, err := sess.SetReady(playerID, msg.Ready)
		if err != nil {
			svc.sendError(sessionID, playerID, err.Error())
			return
		}
		svc.broadcast(sessionID, snap)

	case models.ActionStartSession:
		snap, err := sess.Start(playerID)
		if err != nil {
			svc.sendError(sessionID, playerID, err.Error())
			return
		}
		svc.Logger.Info("session started", "session_id", sessionID, "by", playerID)
		svc.broadcast(sessionID, snap)

	case models.ActionFinishEarly:
		// Informational only: the client follows up with individual swipes
		// for whatever remains.
		svc.Logger.Debug("finish_early", "session_id", sessionID, "player_id", playerID, "remaining", msg.Remaining)

	default:
		svc.sendError(sessionID, playerID, fmt.Sprintf("unknown action %q", msg.Action))
	}
}

func (svc *Service) handleSwipe(sess *Session, playerID string, msg models.ClientMessage) {
	res, err := sess.RecordVote(playerID, msg.RestaurantID, msg.Decision)
	if err != nil {
		svc.sendError(sess.ID(), playerID, err.Error())
		return
	}
	observability.VotesTotal.WithLabelValues(string(msg.Decision)).Inc()
	if res.NewMatch {
		observability.MatchesFoundTotal.Inc()
		svc.publish(models.SessionEvent{
			Type:         models.EventMatchFound,
			SessionID:    sess.ID(),
			RestaurantID: msg.RestaurantID,
			At:           time.Now(),
		})
	}
	svc.broadcast(sess.ID(), res.Snapshot)
	if res.Completed {
		svc.onCompleted(sess, res)
	}
}

func (svc *Service) onCompleted(sess *Session, res VoteResult) {
	observability.SessionsCompleted.Inc()
	sum := sess.Summary()
	svc.Logger.Info("session completed",
		"session_id", sum.SessionID,
		"players", len(sum.PlayerNames),
		"mutual_likes", len(sum.MutualLikeIDs))
	svc.publish(models.SessionEvent{
		Type:        models.EventSessionCompleted,
		SessionID:   sum.SessionID,
		PlayerCount: len(sum.PlayerNames),
		MatchCount:  res.MatchCount,
		At:          time.Now(),
	})
	if svc.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.History.SaveSummary(ctx, sum); err != nil {
			svc.Logger.Error("archive failed", "session_id", sum.SessionID, "error", err)
		}
	}
	if svc.Notify != nil {
		go svc.Notify.NotifyCompleted(context.Background(), sum)
	}
}

func (svc *Service) broadcast(sessionID string, snap models.Snapshot) {
	observability.BroadcastsTotal.Inc()
	svc.Dispatch.Broadcast(sessionID, models.ServerMessage{Type: models.MessageStateUpdate, Data: &snap})
}

func (svc *Service) sendError(sessionID, playerID, text string) {
	svc.Dispatch.SendTo(sessionID, playerID, models.ServerMessage{Type: models.MessageError, Message: text})
}

func (svc *Service) publish(ev models.SessionEvent) {
	if svc.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Events.Publish(ctx, ev); err != nil {
		svc.Logger.Warn("event publish failed", "type", ev.Type, "session_id", ev.SessionID, "error", err)
	}
}
