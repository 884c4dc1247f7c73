package session

import "errors"

// Error strings for ErrNotFound and ErrPlayerNotFound are part of the wire
// protocol: clients tear down their stored session when they see them.
var (
	ErrNotFound       = errors.New("session not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrSessionFull    = errors.New("session is full")
	ErrInvalidConfig  = errors.New("invalid session configuration")

	ErrNotHost         = errors.New("only the host can start the session")
	ErrPlayersNotReady = errors.New("all players must be ready to start")
	ErrNotWaiting      = errors.New("session is not waiting for players")
	ErrNotActive       = errors.New("session is not active")

	ErrInvalidDecision   = errors.New("invalid decision")
	ErrUnknownRestaurant = errors.New("unknown restaurant")
)
