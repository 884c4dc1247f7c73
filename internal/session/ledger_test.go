package session

import (
	"testing"

	"github.com/example/restaurant-matching/internal/models"
)

func inExactlyOneSet(t *testing.T, vs *voteSets, playerID string) int {
	t.Helper()
	n := 0
	if _, ok := vs.liked[playerID]; ok {
		n++
	}
	if _, ok := vs.superliked[playerID]; ok {
		n++
	}
	if _, ok := vs.disliked[playerID]; ok {
		n++
	}
	return n
}

func TestLedgerVoteExclusivity(t *testing.T) {
	l := make(ledger)
	sequence := []models.Decision{
		models.DecisionLike,
		models.DecisionDislike,
		models.DecisionSuperlike,
		models.DecisionSuperlike,
		models.DecisionLike,
	}
	for _, d := range sequence {
		l.record("r1", "p1", d)
		if n := inExactlyOneSet(t, l["r1"], "p1"); n != 1 {
			t.Fatalf("after %s: player in %d sets, want 1", d, n)
		}
	}
	if _, ok := l["r1"].liked["p1"]; !ok {
		t.Fatalf("final decision should be like, sets=%+v", l["r1"].view())
	}
}

func TestLedgerRepeatedVoteIsIdempotent(t *testing.T) {
	l := make(ledger)
	l.record("r1", "p1", models.DecisionLike)
	before := l["r1"].view()
	l.record("r1", "p1", models.DecisionLike)
	after := l["r1"].view()
	if len(after.Likes) != 1 || len(before.Likes) != len(after.Likes) {
		t.Fatalf("repeat vote changed ledger: before=%+v after=%+v", before, after)
	}
}

func TestLedgerMatchBoundaryIsInclusive(t *testing.T) {
	// One liker out of two connected players at threshold 0.5 is a match:
	// the comparison is >=, not >.
	l := make(ledger)
	l.record("r1", "p1", models.DecisionLike)
	l.record("r1", "p2", models.DecisionDislike)
	connected := []string{"p1", "p2"}
	if !l.isMatch("r1", connected, 0.5) {
		t.Fatalf("0.5 of players liking at threshold 0.5 must match")
	}
	if l.isMatch("r1", connected, 0.51) {
		t.Fatalf("0.5 of players liking at threshold 0.51 must not match")
	}
}

func TestLedgerSuperlikeCountsAsPositive(t *testing.T) {
	l := make(ledger)
	l.record("r1", "p1", models.DecisionSuperlike)
	if !l.isMatch("r1", []string{"p1"}, 1.0) {
		t.Fatalf("superlike should count toward consensus")
	}
}

func TestLedgerDisconnectCannotBreakMatch(t *testing.T) {
	// Removing a non-liking player from the connected set can only raise the
	// matched fraction.
	l := make(ledger)
	l.record("r1", "p1", models.DecisionLike)
	l.record("r1", "p2", models.DecisionLike)
	l.record("r1", "p3", models.DecisionDislike)

	all := []string{"p1", "p2", "p3"}
	if !l.isMatch("r1", all, 0.5) {
		t.Fatalf("2/3 likes at 0.5 should match")
	}
	withoutDisliker := []string{"p1", "p2"}
	if !l.isMatch("r1", withoutDisliker, 0.5) {
		t.Fatalf("match must survive a non-liking player disconnecting")
	}
}

func TestLedgerExcludesDisconnectedVoters(t *testing.T) {
	// A liker who disconnects drops out of numerator and denominator alike.
	l := make(ledger)
	l.record("r1", "p1", models.DecisionLike)
	l.record("r1", "p2", models.DecisionDislike)
	if l.isMatch("r1", []string{"p2"}, 0.5) {
		t.Fatalf("only remaining connected player disliked; must not match")
	}
}

func TestLedgerNoConnectedPlayersNeverMatches(t *testing.T) {
	l := make(ledger)
	l.record("r1", "p1", models.DecisionLike)
	if l.isMatch("r1", nil, 0.1) {
		t.Fatalf("zero connected players must never produce a match")
	}
}

func TestLedgerMutualLikesPreservesCandidateOrder(t *testing.T) {
	l := make(ledger)
	order := []string{"a", "b", "c", "d"}
	connected := []string{"p1", "p2"}
	for _, rid := range []string{"d", "a", "c"} {
		l.record(rid, "p1", models.DecisionLike)
		l.record(rid, "p2", models.DecisionLike)
	}
	l.record("b", "p1", models.DecisionDislike)

	got := l.mutualLikes(order, connected, 1.0)
	want := []string{"a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("mutual likes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mutual likes order = %v, want %v", got, want)
		}
	}
}
