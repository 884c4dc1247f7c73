package session

import (
	"sort"

	"github.com/example/restaurant-matching/internal/models"
)

// voteSets tracks, for one restaurant, which players hold which decision.
// Invariant: a player id lives in at most one of the three sets.
type voteSets struct {
	liked      map[string]struct{}
	superliked map[string]struct{}
	disliked   map[string]struct{}
}

func newVoteSets() *voteSets {
	return &voteSets{
		liked:      make(map[string]struct{}),
		superliked: make(map[string]struct{}),
		disliked:   make(map[string]struct{}),
	}
}

func (v *voteSets) record(playerID string, d models.Decision) {
	delete(v.liked, playerID)
	delete(v.superliked, playerID)
	delete(v.disliked, playerID)
	switch d {
	case models.DecisionLike:
		v.liked[playerID] = struct{}{}
	case models.DecisionSuperlike:
		v.superliked[playerID] = struct{}{}
	case models.DecisionDislike:
		v.disliked[playerID] = struct{}{}
	}
}

// positive reports whether the player's current decision counts toward a match.
func (v *voteSets) positive(playerID string) bool {
	if _, ok := v.liked[playerID]; ok {
		return true
	}
	_, ok := v.superliked[playerID]
	return ok
}

func (v *voteSets) view() models.VoteSets {
	return models.VoteSets{
		Likes:      sortedKeys(v.liked),
		Superlikes: sortedKeys(v.superliked),
		Dislikes:   sortedKeys(v.disliked),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ledger maps restaurant id to its vote sets. Callers hold the session lock.
type ledger map[string]*voteSets

func (l ledger) record(restaurantID, playerID string, d models.Decision) {
	vs, ok := l[restaurantID]
	if !ok {
		vs = newVoteSets()
		l[restaurantID] = vs
	}
	vs.record(playerID, d)
}

// isMatch applies the consensus rule: the fraction of connected players whose
// latest decision on the restaurant is like or superlike must be >= threshold.
// Disconnected players are excluded from both sides of the fraction.
func (l ledger) isMatch(restaurantID string, connected []string, threshold float64) bool {
	if len(connected) == 0 {
		return false
	}
	vs, ok := l[restaurantID]
	if !ok {
		return false
	}
	positives := 0
	for _, pid := range connected {
		if vs.positive(pid) {
			positives++
		}
	}
	return float64(positives)/float64(len(connected)) >= threshold
}

// mutualLikes returns matched restaurant ids in original candidate order.
func (l ledger) mutualLikes(order []string, connected []string, threshold float64) []string {
	out := make([]string, 0)
	for _, rid := range order {
		if l.isMatch(rid, connected, threshold) {
			out = append(out, rid)
		}
	}
	return out
}

func (l ledger) views() map[string]models.VoteSets {
	out := make(map[string]models.VoteSets, len(l))
	for rid, vs := range l {
		out[rid] = vs.view()
	}
	return out
}
