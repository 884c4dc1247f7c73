package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/restaurant-matching/internal/models"
)

func testSettings(maxPlayers int, threshold float64) Settings {
	return Settings{
		Search:             models.SearchConfig{LocationDescription: "Brooklyn, NY", Lat: 40.68, Lng: -73.97, RadiusM: 3000},
		MaxPlayers:         maxPlayers,
		ConsensusThreshold: threshold,
		Mode:               models.ModeFreeform,
		InviteURL:          "http://localhost:8080/join/test",
	}
}

func testRestaurants(n int) []models.Restaurant {
	out := make([]models.Restaurant, n)
	for i := range out {
		out[i] = models.Restaurant{ID: fmt.Sprintf("r%d", i+1), Name: fmt.Sprintf("Place %d", i+1), Rating: 4.0}
	}
	return out
}

// newActiveSession builds a session with the given players joined, connected,
// and candidates installed, then started by the host.
func newActiveSession(t *testing.T, guests int, candidates int, threshold float64) (*Session, []string) {
	t.Helper()
	s, err := New("sess1", testSettings(guests+1, threshold), "host")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ids := []string{s.HostID()}
	for i := 0; i < guests; i++ {
		pid, _, err := s.Join(fmt.Sprintf("guest%d", i+1))
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
		ids = append(ids, pid)
	}
	if _, _, ok := s.SetRestaurants(testRestaurants(candidates), false); !ok {
		t.Fatalf("SetRestaurants rejected")
	}
	for _, pid := range ids {
		if _, _, err := s.Connect(pid, false); err != nil {
			t.Fatalf("Connect(%s): %v", pid, err)
		}
		if _, err := s.SetReady(pid, true); err != nil {
			t.Fatalf("SetReady(%s): %v", pid, err)
		}
	}
	if _, err := s.Start(ids[0]); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, ids
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []Settings{
		testSettings(1, 0.5),  // max_players < 2
		testSettings(2, 0),    // threshold must be > 0
		testSettings(2, 1.01), // threshold must be <= 1
		testSettings(2, -0.5),
	}
	for i, settings := range cases {
		if _, err := New("s", settings, "host"); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: want ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestJoinEnforcesCapacity(t *testing.T) {
	s, err := New("sess1", testSettings(2, 0.5), "host")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := s.Join("guest"); err != nil {
		t.Fatalf("second player should join: %v", err)
	}
	if _, _, err := s.Join("third"); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("want ErrSessionFull, got %v", err)
	}
	if got := len(s.Snapshot().Players); got != 2 {
		t.Fatalf("roster size = %d after rejected join, want 2", got)
	}
}

func TestHostGatedStart(t *testing.T) {
	s, _ := mustNew(t, testSettings(2, 0.5))
	guestID, _, _ := mustJoin(t, s, "guest")
	s.SetRestaurants(testRestaurants(3), false)
	s.Connect(s.HostID(), false)
	s.Connect(guestID, false)
	s.SetReady(s.HostID(), true)

	// Guest cannot start at all.
	if _, err := s.Start(guestID); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host start: want ErrNotHost, got %v", err)
	}
	// Host cannot start while the guest is not ready.
	if _, err := s.Start(s.HostID()); !errors.Is(err, ErrPlayersNotReady) {
		t.Fatalf("start before ready: want ErrPlayersNotReady, got %v", err)
	}
	if got := s.Snapshot().Status; got != models.StatusWaitingForPlayers {
		t.Fatalf("status = %s after failed starts, want waiting_for_players", got)
	}

	s.SetReady(guestID, true)
	snap, err := s.Start(s.HostID())
	if err != nil {
		t.Fatalf("start with all ready: %v", err)
	}
	if snap.Status != models.StatusActive {
		t.Fatalf("status = %s, want active", snap.Status)
	}
	// active is not a start state anymore.
	if _, err := s.Start(s.HostID()); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("second start: want ErrNotWaiting, got %v", err)
	}
}

func TestSoloAutoStartOnConnect(t *testing.T) {
	s, _ := mustNew(t, testSettings(4, 0.5))
	s.SetRestaurants(testRestaurants(2), false)
	snap, started, err := s.Connect(s.HostID(), true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !started || snap.Status != models.StatusActive {
		t.Fatalf("solo connect with candidates ready should auto-start, got status=%s started=%v", snap.Status, started)
	}
}

func TestSoloAutoStartOnCandidateDelivery(t *testing.T) {
	s, _ := mustNew(t, testSettings(4, 0.5))
	if _, _, err := s.Connect(s.HostID(), true); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// No candidates yet, so connecting alone must not start the session.
	if got := s.Snapshot().Status; got != models.StatusWaitingForPlayers {
		t.Fatalf("status = %s before candidates, want waiting", got)
	}
	snap, started, ok := s.SetRestaurants(testRestaurants(2), true)
	if !ok || !started || snap.Status != models.StatusActive {
		t.Fatalf("candidate delivery to a lone connected player should auto-start, status=%s", snap.Status)
	}
}

func TestNoAutoStartWithTwoConnected(t *testing.T) {
	s, _ := mustNew(t, testSettings(4, 0.5))
	guestID, _, _ := mustJoin(t, s, "guest")
	s.Connect(s.HostID(), true)
	s.Connect(guestID, true)
	if _, started, _ := s.SetRestaurants(testRestaurants(2), true); started {
		t.Fatalf("auto-start must require exactly one connected player")
	}
}

func TestCursorAdvancesOncePerVote(t *testing.T) {
	s, ids := newActiveSession(t, 1, 3, 0.5)
	host := ids[0]
	// Three votes on the same restaurant with the same decision still move
	// the cursor three times.
	for i := 0; i < 3; i++ {
		if _, err := s.RecordVote(host, "r1", models.DecisionLike); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}
	if got := s.Snapshot().Players[host].CurrentIndex; got != 3 {
		t.Fatalf("cursor = %d after 3 votes, want 3", got)
	}
}

func TestVoteValidation(t *testing.T) {
	s, ids := newActiveSession(t, 1, 3, 0.5)
	if _, err := s.RecordVote("nobody", "r1", models.DecisionLike); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("unknown player: want ErrPlayerNotFound, got %v", err)
	}
	if _, err := s.RecordVote(ids[0], "r1", "meh"); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("bad decision: want ErrInvalidDecision, got %v", err)
	}
	if _, err := s.RecordVote(ids[0], "missing", models.DecisionLike); !errors.Is(err, ErrUnknownRestaurant) {
		t.Fatalf("bad restaurant: want ErrUnknownRestaurant, got %v", err)
	}
}

func TestVoteRequiresActiveSession(t *testing.T) {
	s, _ := mustNew(t, testSettings(2, 0.5))
	s.SetRestaurants(testRestaurants(1), false)
	s.Connect(s.HostID(), false)
	if _, err := s.RecordVote(s.HostID(), "r1", models.DecisionLike); !errors.Is(err, ErrNotActive) {
		t.Fatalf("vote while waiting: want ErrNotActive, got %v", err)
	}
}

func TestCompletionTrigger(t *testing.T) {
	s, ids := newActiveSession(t, 1, 3, 0.5)
	host, guest := ids[0], ids[1]

	for _, rid := range []string{"r1", "r2", "r3"} {
		if _, err := s.RecordVote(host, rid, models.DecisionLike); err != nil {
			t.Fatalf("host vote: %v", err)
		}
	}
	res, err := s.RecordVote(guest, "r1", models.DecisionDislike)
	if err != nil {
		t.Fatalf("guest vote: %v", err)
	}
	if res.Completed || res.Snapshot.Status != models.StatusActive {
		t.Fatalf("session completed with guest cursor at 1")
	}

	s.RecordVote(guest, "r2", models.DecisionLike)
	res, err = s.RecordVote(guest, "r3", models.DecisionSuperlike)
	if err != nil {
		t.Fatalf("final vote: %v", err)
	}
	if !res.Completed || res.Snapshot.Status != models.StatusCompleted {
		t.Fatalf("all cursors done; want completed, got %s", res.Snapshot.Status)
	}
}

func TestDisconnectPreservesVotesAndCursor(t *testing.T) {
	s, ids := newActiveSession(t, 1, 3, 0.5)
	guest := ids[1]
	s.RecordVote(guest, "r1", models.DecisionLike)
	s.SetReady(guest, true)

	snap, changed := s.Disconnect(guest)
	if !changed {
		t.Fatalf("disconnect of a connected player should report a change")
	}
	pv := snap.Players[guest]
	if pv.Connected || pv.Ready {
		t.Fatalf("disconnect must clear connected and ready: %+v", pv)
	}
	if pv.CurrentIndex != 1 {
		t.Fatalf("cursor lost on disconnect: %d", pv.CurrentIndex)
	}
	if got := snap.Matches["r1"].Likes; len(got) != 1 || got[0] != guest {
		t.Fatalf("votes lost on disconnect: %+v", snap.Matches["r1"])
	}
}

func TestEndToEndMatchScenario(t *testing.T) {
	// Candidates [r1,r2,r3], two players, threshold 0.5.
	// P1: like r1, dislike r2, like r3. P2: like r1, like r2, dislike r3.
	// r1 has 2/2 positives, r2 and r3 each have 1/2. The boundary is
	// inclusive, so all three clear the threshold.
	s, ids := newActiveSession(t, 1, 3, 0.5)
	p1, p2 := ids[0], ids[1]

	s.RecordVote(p1, "r1", models.DecisionLike)
	s.RecordVote(p1, "r2", models.DecisionDislike)
	s.RecordVote(p1, "r3", models.DecisionLike)
	s.RecordVote(p2, "r1", models.DecisionLike)
	s.RecordVote(p2, "r2", models.DecisionLike)
	res, err := s.RecordVote(p2, "r3", models.DecisionDislike)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if !res.Completed {
		t.Fatalf("both players exhausted the list; want completed")
	}

	mutual := s.MutualLikes()
	want := []string{"r1", "r2", "r3"}
	if len(mutual) != len(want) {
		t.Fatalf("mutual likes = %v, want ids %v", mutual, want)
	}
	for i, r := range mutual {
		if r.ID != want[i] {
			t.Fatalf("mutual[%d] = %s, want %s", i, r.ID, want[i])
		}
	}
	if res.MatchCount != 3 {
		t.Fatalf("MatchCount = %d, want 3", res.MatchCount)
	}
}

func TestEndToEndStrictThreshold(t *testing.T) {
	// Same votes at threshold 1.0: only the unanimous candidate survives.
	s, ids := newActiveSession(t, 1, 3, 1.0)
	p1, p2 := ids[0], ids[1]

	s.RecordVote(p1, "r1", models.DecisionLike)
	s.RecordVote(p1, "r2", models.DecisionDislike)
	s.RecordVote(p1, "r3", models.DecisionLike)
	s.RecordVote(p2, "r1", models.DecisionLike)
	s.RecordVote(p2, "r2", models.DecisionLike)
	s.RecordVote(p2, "r3", models.DecisionDislike)

	mutual := s.MutualLikes()
	if len(mutual) != 1 || mutual[0].ID != "r1" {
		t.Fatalf("mutual likes = %v, want [r1]", mutual)
	}
}

func TestFetchFailureIsTerminal(t *testing.T) {
	s, _ := mustNew(t, testSettings(2, 0.5))
	snap, moved := s.SetFetchFailed()
	if !moved || snap.Status != models.StatusFetchError {
		t.Fatalf("want error_fetching_restaurants, got %s", snap.Status)
	}
	// Candidates arriving late must not resurrect the session.
	if _, _, ok := s.SetRestaurants(testRestaurants(2), true); ok {
		t.Fatalf("SetRestaurants accepted after fetch failure")
	}
	if _, moved := s.SetFetchFailed(); moved {
		t.Fatalf("second failure should be a no-op")
	}
}

func TestSnapshotEmbedsRestaurantsOnce(t *testing.T) {
	s, _ := newActiveSession(t, 1, 2, 0.5)
	snap := s.Snapshot()
	if len(snap.Restaurants) == 0 {
		t.Fatalf("snapshot missing pre-marshalled restaurants")
	}
	raw, err := snap.Restaurants.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if raw[0] != '[' {
		t.Fatalf("restaurants payload should be a JSON array, got %q", raw[:1])
	}
}

func mustNew(t *testing.T, settings Settings) (*Session, string) {
	t.Helper()
	s, err := New("sess1", settings, "host")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, s.HostID()
}

func mustJoin(t *testing.T, s *Session, name string) (string, models.Snapshot, error) {
	t.Helper()
	pid, snap, err := s.Join(name)
	if err != nil {
		t.Fatalf("Join(%s): %v", name, err)
	}
	return pid, snap, nil
}
