package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Decision is a player's latest verdict on one restaurant.
type Decision string

const (
	DecisionLike      Decision = "like"
	DecisionDislike   Decision = "dislike"
	DecisionSuperlike Decision = "superlike"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionLike, DecisionDislike, DecisionSuperlike:
		return true
	}
	return false
}

// SessionStatus values are part of the wire protocol; clients route on them.
type SessionStatus string

const (
	StatusWaitingForPlayers SessionStatus = "waiting_for_players"
	StatusActive            SessionStatus = "active"
	StatusCompleted         SessionStatus = "completed"
	StatusFetchError        SessionStatus = "error_fetching_restaurants"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFetchError
}

type Mode string

const (
	ModeFreeform  Mode = "freeform"
	ModeTurnBased Mode = "turn_based" // accepted but not scheduled; extension point
)

// Restaurant is immutable once fetched. Field names follow the Yelp-derived
// shape the clients already consume.
type Restaurant struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Categories  []string `json:"categories"`
	Price       string   `json:"price,omitempty"`
	Coordinates Coord    `json:"coordinates"`
	DistanceM   float64  `json:"distance,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Photos      []string `json:"photos,omitempty"`
	URL         string   `json:"yelp_url,omitempty"`
}

// SearchConfig is the frozen search a session was created with.
type SearchConfig struct {
	LocationDescription string  `json:"location_description"`
	Lat                 float64 `json:"lat"`
	Lng                 float64 `json:"lng"`
	RadiusM             int     `json:"radius"`
	Price               string  `json:"price,omitempty"`      // comma-separated tiers, e.g. "1,2,3"
	MinRating           float64 `json:"min_rating,omitempty"` // applied locally after fetch
	SortBy              string  `json:"sort_by,omitempty"`
	Categories          string  `json:"categories,omitempty"`
}

type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsHost       bool   `json:"is_host"`
	Connected    bool   `json:"connected"`
	Ready        bool   `json:"ready"`
	CurrentIndex int    `json:"current_index"`
}

// VoteSets carries one restaurant's ledger entry in snapshot form.
// Slices are sorted so consecutive snapshots are byte-comparable.
type VoteSets struct {
	Likes      []string `json:"likes"`
	Superlikes []string `json:"superlikes"`
	Dislikes   []string `json:"dislikes"`
}

// Snapshot is the full session state pushed to every connected player after
// each mutation. It is always complete, never a diff.
type Snapshot struct {
	ID                  string                `json:"id"`
	Status              SessionStatus         `json:"status"`
	CreatedAt           time.Time             `json:"created_at"`
	LocationDescription string                `json:"location_description"`
	Mode                Mode                  `json:"mode"`
	MaxPlayers          int                   `json:"max_players"`
	ConsensusThreshold  float64               `json:"consensus_threshold"`
	HostID              string                `json:"host_id"`
	InviteURL           string                `json:"invite_url"`
	Players             map[string]PlayerView `json:"players"`
	Restaurants         RawRestaurants        `json:"restaurants"`
	Matches             map[string]VoteSets   `json:"matches"`
	MutualLikes         []string              `json:"mutual_likes"`
}

// RawRestaurants holds the candidate list pre-marshalled once at fetch time,
// so per-vote snapshot serialization skips the largest, never-changing part.
type RawRestaurants []byte

func (r RawRestaurants) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("[]"), nil
	}
	return r, nil
}

func (r *RawRestaurants) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// ClientMessage is one inbound websocket action.
type ClientMessage struct {
	Action       string   `json:"action"`
	RestaurantID string   `json:"restaurant_id,omitempty"`
	Decision     Decision `json:"decision,omitempty"`
	Ready        bool     `json:"ready,omitempty"`
	Remaining    int      `json:"remaining,omitempty"`
}

const (
	ActionSwipe        = "swipe"
	ActionSetReady     = "set_ready"
	ActionStartSession = "start_session"
	ActionFinishEarly  = "finish_early"
)

// ServerMessage is one outbound websocket frame.
type ServerMessage struct {
	Type    string    `json:"type"` // "state_update" | "error"
	Data    *Snapshot `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

const (
	MessageStateUpdate = "state_update"
	MessageError       = "error"
)

// SessionEvent is published to the event stream for offline analytics.
type SessionEvent struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id"`
	PlayerCount  int       `json:"player_count,omitempty"`
	RestaurantID string    `json:"restaurant_id,omitempty"`
	MatchCount   int       `json:"match_count,omitempty"`
	At           time.Time `json:"at"`
}

const (
	EventSessionCreated   = "session_created"
	EventSessionCompleted = "session_completed"
	EventMatchFound       = "match_found"
)

// SessionSummary is the write-only record archived when a session completes.
type SessionSummary struct {
	SessionID           string
	LocationDescription string
	PlayerNames         []string
	MutualLikeIDs       []string
	CandidateCount      int
	CreatedAt           time.Time
	CompletedAt         time.Time
}
