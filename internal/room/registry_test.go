package room

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedEvent struct {
	connID string
	room   string
	ev     Event
}

// fakeBroadcaster records deliveries. Timer callbacks deliver from
// their own goroutines, so access is mutex-guarded.
type fakeBroadcaster struct {
	mu       sync.Mutex
	recs     []recordedEvent
	detaches []string
}

func (f *fakeBroadcaster) ToConnection(connID string, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, recordedEvent{connID: connID, ev: ev})
}

func (f *fakeBroadcaster) ToRoom(code string, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, recordedEvent{room: code, ev: ev})
}

func (f *fakeBroadcaster) Detach(code, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detaches = append(f.detaches, code+"/"+connID)
}

func (f *fakeBroadcaster) byName(name string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, r := range f.recs {
		if r.ev.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeBroadcaster) detached() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.detaches...)
}

type scoreCall struct {
	username string
	delta    int
}

type fakeScores struct {
	mu    sync.Mutex
	calls []scoreCall
}

func (f *fakeScores) RecordWin(username string, scoreDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scoreCall{username: username, delta: scoreDelta})
	return nil
}

func (f *fakeScores) recorded() []scoreCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scoreCall(nil), f.calls...)
}

// quietConfig keeps every background timer far away so tests drive the
// session explicitly.
func quietConfig() Config {
	return Config{
		TurnTimeout:    time.Hour,
		ReconnectGrace: time.Hour,
	}
}

func newTestRegistry(t *testing.T, cfg Config, scores ScoreKeeper) (*Registry, *fakeBroadcaster) {
	t.Helper()
	r := NewRegistry(cfg, scores)
	bc := &fakeBroadcaster{}
	r.SetBroadcaster(bc)
	return r, bc
}

func mustCreate(t *testing.T, r *Registry, rows, cols int) string {
	t.Helper()
	code, err := r.CreateRoom(rows, cols)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return code
}

func mustJoin(t *testing.T, r *Registry, code, username, connID string) {
	t.Helper()
	if err := r.Join(code, username, connID); err != nil {
		t.Fatalf("Join %s: %v", username, err)
	}
}

// startedTwoPlayer builds a room with alice hosting on conn-a and bob
// ready on conn-b, game in progress, alice's turn.
func startedTwoPlayer(t *testing.T, r *Registry) string {
	t.Helper()
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	mustJoin(t, r, code, "bob", "conn-b")
	if err := r.ToggleReady(code, "bob", true); err != nil {
		t.Fatalf("ToggleReady: %v", err)
	}
	if err := r.StartGame(code, "conn-a"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return code
}

func mustSession(t *testing.T, r *Registry, code string) *Session {
	t.Helper()
	s, err := r.session(code)
	if err != nil {
		t.Fatalf("session %s: %v", code, err)
	}
	return s
}

func TestCreateRoomValidatesDimensions(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	for _, dims := range [][2]int{{2, 5}, {5, 2}, {9, 5}, {5, 9}, {0, 0}} {
		if _, err := r.CreateRoom(dims[0], dims[1]); !errors.Is(err, ErrInvalidDimensions) {
			t.Fatalf("dims %v: expected ErrInvalidDimensions, got %v", dims, err)
		}
	}
	for _, dims := range [][2]int{{3, 3}, {8, 8}, {3, 8}} {
		if _, err := r.CreateRoom(dims[0], dims[1]); err != nil {
			t.Fatalf("dims %v: unexpected error %v", dims, err)
		}
	}
}

func TestRoomCodeFormat(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	if len(code) != codeLength {
		t.Fatalf("code %q has length %d", code, len(code))
	}
	for _, ch := range code {
		if !strings.ContainsRune(codeCharset, ch) {
			t.Fatalf("code %q contains %q outside the charset", code, ch)
		}
	}
}

func TestJoinableStates(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	if err := r.Joinable("NOSUCH"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	code := mustCreate(t, r, 5, 5)
	if err := r.Joinable(code); err != nil {
		t.Fatalf("waiting room should be joinable: %v", err)
	}
	mustJoin(t, r, code, "alice", "conn-a")
	mustJoin(t, r, code, "bob", "conn-b")
	if err := r.ToggleReady(code, "bob", true); err != nil {
		t.Fatalf("ToggleReady: %v", err)
	}
	if err := r.StartGame(code, "conn-a"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := r.Joinable(code); !errors.Is(err, ErrGameStarted) {
		t.Fatalf("expected ErrGameStarted, got %v", err)
	}
}

func TestJoinAssignsDisjointGrids(t *testing.T) {
	r, bc := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	mustJoin(t, r, code, "bob", "conn-b")

	s := mustSession(t, r, code)
	s.mu.Lock()
	ga, gb := s.Grids["alice"], s.Grids["bob"]
	s.mu.Unlock()
	if ga == nil || gb == nil {
		t.Fatalf("grids not allocated on join")
	}
	seen := map[int]bool{}
	for _, c := range ga.Cells {
		seen[c] = true
	}
	for _, c := range gb.Cells {
		if seen[c] {
			t.Fatalf("number %d present in both grids", c)
		}
	}
	if got := bc.byName("grid-assigned"); len(got) != 2 {
		t.Fatalf("expected 2 grid-assigned events, got %d", len(got))
	}
}

func TestJoinSameUsernameIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	mustJoin(t, r, code, "alice", "conn-a2")

	s := mustSession(t, r, code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(s.Participants))
	}
	if s.Participants[0].ConnID != "conn-a2" {
		t.Fatalf("connection not rebound, still %s", s.Participants[0].ConnID)
	}
}

func TestJoinRejectsEmptyUsername(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	if err := r.Join(code, "", "conn-a"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestNewJoinAfterStartRejected(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := startedTwoPlayer(t, r)
	if err := r.Join(code, "carol", "conn-c"); !errors.Is(err, ErrGameStarted) {
		t.Fatalf("expected ErrGameStarted, got %v", err)
	}
	// An in-game participant can still rebind under the same username.
	if err := r.Join(code, "bob", "conn-b2"); err != nil {
		t.Fatalf("rebind after start: %v", err)
	}
}

func TestStartGameRequiresHost(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	mustJoin(t, r, code, "bob", "conn-b")
	if err := r.ToggleReady(code, "bob", true); err != nil {
		t.Fatalf("ToggleReady: %v", err)
	}
	if err := r.StartGame(code, "conn-b"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
}

func TestStartGameRequiresReadiness(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	mustJoin(t, r, code, "bob", "conn-b")
	if err := r.StartGame(code, "conn-a"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	// The host's own readiness does not count with others present.
	if err := r.ToggleReady(code, "alice", true); err != nil {
		t.Fatalf("ToggleReady: %v", err)
	}
	if err := r.StartGame(code, "conn-a"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady with only host ready, got %v", err)
	}
}

func TestSinglePlayerStart(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	if err := r.StartGame(code, "conn-a"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before host readies up, got %v", err)
	}
	if err := r.ToggleReady(code, "alice", true); err != nil {
		t.Fatalf("ToggleReady: %v", err)
	}
	if err := r.StartGame(code, "conn-a"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
}

func TestToggleReadyAfterStartRejected(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := startedTwoPlayer(t, r)
	if err := r.ToggleReady(code, "bob", false); !errors.Is(err, ErrGameStarted) {
		t.Fatalf("expected ErrGameStarted, got %v", err)
	}
}

func TestRejoinUnknownUsername(t *testing.T) {
	r, _ := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	if err := r.Rejoin(code, "ghost", "conn-g"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestRequestGridReturnsOwnGrid(t *testing.T) {
	r, bc := newTestRegistry(t, quietConfig(), nil)
	code := mustCreate(t, r, 5, 5)
	mustJoin(t, r, code, "alice", "conn-a")
	if err := r.RequestGrid(code, "conn-a"); err != nil {
		t.Fatalf("RequestGrid: %v", err)
	}
	got := bc.byName("grid-assigned")
	// One from the join, one from the explicit request.
	if len(got) != 2 {
		t.Fatalf("expected 2 grid-assigned events, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.connID != "conn-a" {
		t.Fatalf("grid-assigned sent to %s", last.connID)
	}
	payload, ok := last.ev.Data.(GridAssignedPayload)
	if !ok || payload.Grid == nil {
		t.Fatalf("unexpected grid payload %#v", last.ev.Data)
	}
}
