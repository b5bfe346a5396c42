package room

import (
	"sort"
	"sync"
	"time"

	"bingo-arena/internal/game"
)

type State string

const (
	StateWaiting    State = "waiting_room"
	StateInProgress State = "in_progress"
	StateEnded      State = "ended"
)

// Participant is one player's durable identity plus its current
// connection binding. Username is the real key; ConnID changes on
// every reconnect and is never used for ownership decisions.
type Participant struct {
	ConnID           string
	Username         string
	Connected        bool
	DisconnectedAt   time.Time
	DisconnectReason string
	Score            int
	JoinedAt         time.Time
}

// Session is one room's complete game state. All fields are guarded by
// mu; every action and timer callback holds it for its whole unit of
// work, so no half-updated state is ever observable.
type Session struct {
	mu sync.Mutex

	Code       string
	Rows, Cols int
	State      State

	// Participants order defines the turn rotation; index 0 is the host.
	Participants []*Participant
	Grids        map[string]*game.Grid // by username
	Marked       map[int]bool          // shared pool for the whole room
	Used         map[int]bool          // union of all allocated grids
	Ready        map[string]bool       // by username, consulted pre-start

	TurnIndex        int
	TurnGen          uint64 // bumped on every TURN_ACTIVE entry
	LastMarkedNumber int
	LastMarkedTurn   int // turn index of the last mark, -1 if none

	CreatedAt    time.Time
	LastActivity time.Time

	timer  *turnTimer
	closed bool // set by the cleaner; lookups treat it as gone
}

func newSession(code string, rows, cols int) *Session {
	now := time.Now()
	return &Session{
		Code:           code,
		Rows:           rows,
		Cols:           cols,
		State:          StateWaiting,
		Grids:          map[string]*game.Grid{},
		Marked:         map[int]bool{},
		Used:           map[int]bool{},
		Ready:          map[string]bool{},
		LastMarkedTurn: -1,
		CreatedAt:      now,
		LastActivity:   now,
	}
}

func (s *Session) touch() {
	s.LastActivity = time.Now()
}

func (s *Session) host() string {
	if len(s.Participants) == 0 {
		return ""
	}
	return s.Participants[0].Username
}

func (s *Session) participantByConn(connID string) *Participant {
	for _, p := range s.Participants {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (s *Session) participantByName(username string) *Participant {
	for _, p := range s.Participants {
		if p.Username == username {
			return p
		}
	}
	return nil
}

func (s *Session) currentTurn() *Participant {
	if s.State != StateInProgress || len(s.Participants) == 0 {
		return nil
	}
	return s.Participants[s.TurnIndex]
}

func (s *Session) playerInfos() []PlayerInfo {
	host := s.host()
	out := make([]PlayerInfo, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, PlayerInfo{
			Username:  p.Username,
			Connected: p.Connected,
			Ready:     s.Ready[p.Username],
			Score:     p.Score,
			Host:      p.Username == host,
		})
	}
	return out
}

func (s *Session) markedNumbers() []int {
	out := make([]int, 0, len(s.Marked))
	for n := range s.Marked {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (s *Session) stateFor(username string) RoomStatePayload {
	st := RoomStatePayload{
		RoomCode:  s.Code,
		Started:   s.State == StateInProgress,
		Ended:     s.State == StateEnded,
		Players:   s.playerInfos(),
		Marked:    s.markedNumbers(),
		TurnIndex: s.TurnIndex,
		Grid:      s.Grids[username],
	}
	if cur := s.currentTurn(); cur != nil {
		st.CurrentTurn = cur.Username
	}
	return st
}
