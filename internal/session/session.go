package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/restaurant-matching/internal/models"
)

// Player is one participant's server-side state. Votes live in the ledger;
// everything here survives a disconnect except Connected and Ready.
type Player struct {
	ID        string
	Name      string
	IsHost    bool
	Connected bool
	Ready     bool
	Cursor    int
}

// Settings are the immutable parameters a session is created with.
type Settings struct {
	Search             models.SearchConfig
	MaxPlayers         int
	ConsensusThreshold float64
	Mode               models.Mode
	InviteURL          string
}

func (s Settings) validate() error {
	if s.ConsensusThreshold <= 0 || s.ConsensusThreshold > 1 {
		return ErrInvalidConfig
	}
	if s.MaxPlayers < 2 {
		return ErrInvalidConfig
	}
	return nil
}

// Session owns its roster, candidate list, and vote ledger. Every
// read-modify-write goes through the single mutex, including the result of
// the background candidate fetch; nothing is shared across sessions.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	settings  Settings
	hostID    string
	status    models.SessionStatus

	players map[string]*Player
	joined  []string // player ids in join order

	restaurants     []models.Restaurant
	restaurantOrder []string
	restaurantsJSON models.RawRestaurants

	votes ledger

	lastActive  time.Time
	completedAt time.Time
}

// New creates a session in waiting_for_players with the host registered but
// not yet connected. The candidate list arrives later via SetRestaurants.
func New(id string, settings Settings, hostName string) (*Session, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	host := &Player{ID: uuid.NewString(), Name: hostName, IsHost: true}
	return &Session{
		id:         id,
		createdAt:  now,
		settings:   settings,
		hostID:     host.ID,
		status:     models.StatusWaitingForPlayers,
		players:    map[string]*Player{host.ID: host},
		joined:     []string{host.ID},
		votes:      make(ledger),
		lastActive: now,
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) HostID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostID
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Join adds a guest player. The new player starts disconnected; the websocket
// connect marks presence.
func (s *Session) Join(name string) (string, models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.players) >= s.settings.MaxPlayers {
		return "", models.Snapshot{}, ErrSessionFull
	}
	p := &Player{ID: uuid.NewString(), Name: name}
	s.players[p.ID] = p
	s.joined = append(s.joined, p.ID)
	s.touch()
	return p.ID, s.snapshotLocked(), nil
}

// Connect marks the player's websocket as live. When solo auto-start is
// enabled and this is the only connected player of a waiting session whose
// candidates have already arrived, the session starts immediately.
func (s *Session) Connect(playerID string, soloAutoStart bool) (models.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return models.Snapshot{}, false, ErrPlayerNotFound
	}
	p.Connected = true
	started := false
	if soloAutoStart &&
		s.status == models.StatusWaitingForPlayers &&
		len(s.restaurants) > 0 &&
		s.connectedCountLocked() == 1 {
		s.status = models.StatusActive
		started = true
	}
	s.touch()
	return s.snapshotLocked(), started, nil
}

// Disconnect clears presence and readiness but preserves votes and cursor so
// the player can resume where they left off.
func (s *Session) Disconnect(playerID string) (models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || !p.Connected {
		return s.snapshotLocked(), false
	}
	p.Connected = false
	p.Ready = false
	s.touch()
	return s.snapshotLocked(), true
}

func (s *Session) SetReady(playerID string, ready bool) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return models.Snapshot{}, ErrPlayerNotFound
	}
	p.Ready = ready
	s.touch()
	return s.snapshotLocked(), nil
}

// Start is the host-gated explicit transition to active. Failures leave the
// session untouched and are surfaced only to the requesting connection.
func (s *Session) Start(playerID string) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return models.Snapshot{}, ErrPlayerNotFound
	}
	if !p.IsHost {
		return models.Snapshot{}, ErrNotHost
	}
	if s.status != models.StatusWaitingForPlayers {
		return models.Snapshot{}, ErrNotWaiting
	}
	for _, other := range s.players {
		if !other.Ready {
			return models.Snapshot{}, ErrPlayersNotReady
		}
	}
	s.status = models.StatusActive
	s.touch()
	return s.snapshotLocked(), nil
}

// VoteResult reports the side effects of one swipe, so the caller can emit
// events and metrics without re-entering the lock.
type VoteResult struct {
	Snapshot   models.Snapshot
	Completed  bool
	NewMatch   bool // this vote pushed the restaurant over the threshold
	MatchCount int
}

// RecordVote applies one swipe: the player moves to exactly one of the three
// decision sets for the restaurant and their cursor advances by one, repeats
// included. Completion is re-checked after every vote.
func (s *Session) RecordVote(playerID, restaurantID string, d models.Decision) (VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return VoteResult{}, ErrPlayerNotFound
	}
	if s.status != models.StatusActive {
		return VoteResult{}, ErrNotActive
	}
	if !d.Valid() {
		return VoteResult{}, ErrInvalidDecision
	}
	if !s.hasRestaurantLocked(restaurantID) {
		return VoteResult{}, ErrUnknownRestaurant
	}

	connected := s.connectedIDsLocked()
	wasMatch := s.votes.isMatch(restaurantID, connected, s.settings.ConsensusThreshold)
	s.votes.record(restaurantID, playerID, d)
	p.Cursor++
	isMatch := s.votes.isMatch(restaurantID, connected, s.settings.ConsensusThreshold)

	res := VoteResult{NewMatch: isMatch && !wasMatch}
	if s.allConnectedDoneLocked() {
		s.status = models.StatusCompleted
		s.completedAt = time.Now()
		res.Completed = true
		res.MatchCount = len(s.votes.mutualLikes(s.restaurantOrder, connected, s.settings.ConsensusThreshold))
	}
	s.touch()
	res.Snapshot = s.snapshotLocked()
	return res, nil
}

// SetRestaurants installs the fetched candidate list. The list is marshalled
// once here; snapshots embed the raw bytes from then on. Returns started=true
// when the solo auto-start rule fires on delivery.
func (s *Session) SetRestaurants(list []models.Restaurant, soloAutoStart bool) (models.Snapshot, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusWaitingForPlayers || len(s.restaurants) > 0 {
		return s.snapshotLocked(), false, false
	}
	s.restaurants = list
	s.restaurantOrder = make([]string, len(list))
	for i, r := range list {
		s.restaurantOrder[i] = r.ID
	}
	raw, err := json.Marshal(list)
	if err == nil {
		s.restaurantsJSON = raw
	}
	started := false
	if soloAutoStart && s.connectedCountLocked() == 1 {
		s.status = models.StatusActive
		started = true
	}
	s.touch()
	return s.snapshotLocked(), started, true
}

// SetFetchFailed moves the session to its terminal error state. The only
// recourse for players is a new session.
func (s *Session) SetFetchFailed() (models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusWaitingForPlayers {
		return s.snapshotLocked(), false
	}
	s.status = models.StatusFetchError
	s.touch()
	return s.snapshotLocked(), true
}

func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// MutualLikes returns the matched restaurants in original candidate order.
func (s *Session) MutualLikes() []models.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.votes.mutualLikes(s.restaurantOrder, s.connectedIDsLocked(), s.settings.ConsensusThreshold)
	byID := make(map[string]models.Restaurant, len(s.restaurants))
	for _, r := range s.restaurants {
		byID[r.ID] = r
	}
	out := make([]models.Restaurant, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// Summary flattens the session for archival and notification once completed.
func (s *Session) Summary() models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.joined))
	for _, pid := range s.joined {
		names = append(names, s.players[pid].Name)
	}
	return models.SessionSummary{
		SessionID:           s.id,
		LocationDescription: s.settings.Search.LocationDescription,
		PlayerNames:         names,
		MutualLikeIDs:       s.votes.mutualLikes(s.restaurantOrder, s.connectedIDsLocked(), s.settings.ConsensusThreshold),
		CandidateCount:      len(s.restaurants),
		CreatedAt:           s.createdAt,
		CompletedAt:         s.completedAt,
	}
}

func (s *Session) touch() { s.lastActive = time.Now() }

func (s *Session) hasRestaurantLocked(id string) bool {
	for _, rid := range s.restaurantOrder {
		if rid == id {
			return true
		}
	}
	return false
}

func (s *Session) connectedCountLocked() int {
	n := 0
	for _, p := range s.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (s *Session) connectedIDsLocked() []string {
	out := make([]string, 0, len(s.players))
	for _, pid := range s.joined {
		if s.players[pid].Connected {
			out = append(out, pid)
		}
	}
	return out
}

// allConnectedDoneLocked is the completion predicate: at least one player is
// connected and every connected player's cursor has passed the last candidate.
func (s *Session) allConnectedDoneLocked() bool {
	if s.status != models.StatusActive || len(s.restaurants) == 0 {
		return false
	}
	connected := 0
	for _, p := range s.players {
		if !p.Connected {
			continue
		}
		connected++
		if p.Cursor < len(s.restaurants) {
			return false
		}
	}
	return connected > 0
}

func (s *Session) snapshotLocked() models.Snapshot {
	players := make(map[string]models.PlayerView, len(s.players))
	for id, p := range s.players {
		players[id] = models.PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			IsHost:       p.IsHost,
			Connected:    p.Connected,
			Ready:        p.Ready,
			CurrentIndex: p.Cursor,
		}
	}
	return models.Snapshot{
		ID:                  s.id,
		Status:              s.status,
		CreatedAt:           s.createdAt,
		LocationDescription: s.settings.Search.LocationDescription,
		Mode:                s.settings.Mode,
		MaxPlayers:          s.settings.MaxPlayers,
		ConsensusThreshold:  s.settings.ConsensusThreshold,
		HostID:              s.hostID,
		InviteURL:           s.settings.InviteURL,
		Players:             players,
		Restaurants:         s.restaurantsJSON,
		Matches:             s.votes.views(),
		MutualLikes:         s.votes.mutualLikes(s.restaurantOrder, s.connectedIDsLocked(), s.settings.ConsensusThreshold),
	}
}
