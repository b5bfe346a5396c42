package room

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bingo-arena/internal/game"
)

const (
	minDimension = 3
	maxDimension = 8

	codeLength  = 6
	codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type Config struct {
	TurnTimeout      time.Duration
	ReconnectGrace   time.Duration
	SessionTTL       time.Duration
	InactivityWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 15 * time.Second
	}
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = 60 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.InactivityWindow <= 0 {
		c.InactivityWindow = 30 * time.Minute
	}
	return c
}

// Registry owns every active session, keyed by room code. It is the
// only holder of session references; all components reach a session by
// code lookup and complete their mutation under that session's lock.
type Registry struct {
	cfg    Config
	alloc  *game.Allocator
	scores ScoreKeeper

	mu       sync.RWMutex
	sessions map[string]*Session
	bc       Broadcaster
}

func NewRegistry(cfg Config, scores ScoreKeeper) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		alloc:    game.NewAllocator(time.Now().UnixNano()),
		scores:   scores,
		sessions: map[string]*Session{},
	}
}

// SetBroadcaster binds the realtime transport. Must be called before
// any session is created.
func (r *Registry) SetBroadcaster(bc Broadcaster) {
	r.mu.Lock()
	r.bc = bc
	r.mu.Unlock()
}

func (r *Registry) broadcaster() Broadcaster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bc
}

// CreateRoom mints a fresh room code and registers an empty session.
func (r *Registry) CreateRoom(rows, cols int) (string, error) {
	if rows < minDimension || rows > maxDimension || cols < minDimension || cols > maxDimension {
		return "", ErrInvalidDimensions
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var code string
	for {
		code = randomCode()
		if _, taken := r.sessions[code]; !taken {
			break
		}
	}
	r.sessions[code] = newSession(code, rows, cols)
	roomsCreated.Inc()
	activeRooms.Set(float64(len(r.sessions)))
	log.Info().Str("room", code).Int("rows", rows).Int("cols", cols).Msg("room created")
	return code, nil
}

func randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(b)
}

// session looks a live session up by code.
func (r *Registry) session(code string) (*Session, error) {
	r.mu.RLock()
	s := r.sessions[code]
	r.mu.RUnlock()
	if s == nil {
		return nil, ErrRoomNotFound
	}
	return s, nil
}

// lockLive locks s and verifies the cleaner has not evicted it in the
// meantime. Callers unlock via the returned session.
func lockLive(s *Session) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrRoomNotFound
	}
	return nil
}

// Joinable is the join precheck: the room must exist and still be in
// the waiting state.
func (r *Registry) Joinable(code string) error {
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if s.State != StateWaiting {
		return ErrGameStarted
	}
	return nil
}

// Join adds a new participant or rebinds an existing username to a new
// connection. Two joins with the same username never produce two
// entries.
func (r *Registry) Join(code, username, connID string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	var em emitter

	if p := s.participantByName(username); p != nil {
		r.rebindLocked(s, p, connID, &em)
		s.mu.Unlock()
		r.deliver(&em)
		return nil
	}

	if s.State != StateWaiting {
		s.mu.Unlock()
		return ErrGameStarted
	}

	grid, used := r.alloc.Allocate(s.Rows, s.Cols, s.Used, username)
	p := &Participant{
		ConnID:    connID,
		Username:  username,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	s.Participants = append(s.Participants, p)
	s.Grids[username] = grid
	s.Used = used
	s.touch()

	em.toConn(connID, "joined-room", JoinedRoomPayload{
		RoomCode: s.Code,
		Username: username,
		Started:  false,
		Players:  s.playerInfos(),
	})
	em.toConn(connID, "grid-assigned", GridAssignedPayload{Grid: grid})
	em.toRoom(s.Code, "player-joined", PlayerJoinedPayload{Username: username, Players: s.playerInfos()})
	s.mu.Unlock()

	log.Info().Str("room", code).Str("username", username).Str("conn_id", connID).Msg("player joined")
	r.deliver(&em)
	return nil
}

// rebindLocked attaches a returning username to its new connection and
// pushes the full state to it. Idempotent across repeated rejoins.
func (r *Registry) rebindLocked(s *Session, p *Participant, connID string, em *emitter) {
	wasDisconnected := !p.Connected
	p.ConnID = connID
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	p.DisconnectReason = ""
	s.touch()

	em.toConn(connID, "joined-room", JoinedRoomPayload{
		RoomCode: s.Code,
		Username: p.Username,
		Started:  s.State == StateInProgress,
		Players:  s.playerInfos(),
	})
	em.toConn(connID, "room-state", s.stateFor(p.Username))
	if wasDisconnected {
		reconnects.Inc()
		em.toRoom(s.Code, "player-reconnected", PlayerReconnectedPayload{Username: p.Username})
		log.Info().Str("room", s.Code).Str("username", p.Username).Str("conn_id", connID).Msg("player reconnected")
	}
}

// Rejoin rebinds a disconnected participant identified by username.
func (r *Registry) Rejoin(code, username, connID string) error {
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	p := s.participantByName(username)
	if p == nil {
		s.mu.Unlock()
		return ErrUnknownParticipant
	}
	var em emitter
	r.rebindLocked(s, p, connID, &em)
	s.mu.Unlock()
	r.deliver(&em)
	return nil
}

// ToggleReady flips a participant's readiness flag. Only meaningful in
// the waiting room.
func (r *Registry) ToggleReady(code, username string, ready bool) error {
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	if s.State != StateWaiting {
		s.mu.Unlock()
		return ErrGameStarted
	}
	if s.participantByName(username) == nil {
		s.mu.Unlock()
		return ErrUnknownParticipant
	}
	if ready {
		s.Ready[username] = true
	} else {
		delete(s.Ready, username)
	}
	s.touch()
	var em emitter
	em.toRoom(s.Code, "player-ready", PlayerReadyPayload{Username: username, Ready: ready})
	s.mu.Unlock()
	r.deliver(&em)
	return nil
}

// RequestGrid resends the caller's own grid, allocating lazily if it is
// somehow missing.
func (r *Registry) RequestGrid(code, connID string) error {
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	p := s.participantByConn(connID)
	if p == nil {
		s.mu.Unlock()
		return ErrUnknownParticipant
	}
	grid := s.Grids[p.Username]
	if grid == nil {
		var used map[int]bool
		grid, used = r.alloc.Allocate(s.Rows, s.Cols, s.Used, p.Username)
		s.Grids[p.Username] = grid
		s.Used = used
	}
	var em emitter
	em.toConn(connID, "grid-assigned", GridAssignedPayload{Grid: grid})
	s.mu.Unlock()
	r.deliver(&em)
	return nil
}

func (r *Registry) recordWin(username string, delta int) {
	if r.scores == nil {
		return
	}
	if err := r.scores.RecordWin(username, delta); err != nil {
		log.Error().Err(err).Str("username", username).Int("delta", delta).Msg("record win failed")
	}
}
