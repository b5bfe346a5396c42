package room

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"bingo-arena/internal/game"
)

// winPointsPerLine is the score credited per completed line on a win.
const winPointsPerLine = 10

// StartGame moves the session into play. Only the host may trigger it,
// and only once readiness is satisfied: at least one non-host ready,
// or the host alone in a single-player room.
func (r *Registry) StartGame(code, connID string) error {
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
	if p.Username != s.host() {
		s.mu.Unlock()
		return ErrNotHost
	}
	if s.State != StateWaiting {
		s.mu.Unlock()
		return ErrGameStarted
	}
	if !s.readyToStartLocked() {
		s.mu.Unlock()
		return ErrNotReady
	}

	// Lazily allocate any missing grid before the first turn.
	for _, part := range s.Participants {
		if s.Grids[part.Username] == nil {
			grid, used := r.alloc.Allocate(s.Rows, s.Cols, s.Used, part.Username)
			s.Grids[part.Username] = grid
			s.Used = used
		}
	}

	s.State = StateInProgress
	s.TurnIndex = 0
	s.LastMarkedNumber = 0
	s.LastMarkedTurn = -1
	s.touch()

	var em emitter
	cur := s.Participants[0]
	em.toRoom(s.Code, "game-started", GameStartedPayload{
		Players:     s.playerInfos(),
		CurrentTurn: cur.Username,
	})
	for _, part := range s.Participants {
		em.toConn(part.ConnID, "grid-assigned", GridAssignedPayload{Grid: s.Grids[part.Username]})
	}
	r.enterTurnLocked(s, &em)
	s.mu.Unlock()

	log.Info().Str("room", code).Str("host", p.Username).Msg("game started")
	r.deliver(&em)
	return nil
}

func (s *Session) readyToStartLocked() bool {
	if len(s.Participants) == 1 {
		return s.Ready[s.host()]
	}
	host := s.host()
	for username := range s.Ready {
		if username != host {
			return true
		}
	}
	return false
}

// enterTurnLocked begins TURN_ACTIVE for the participant at TurnIndex:
// bump the generation, arm the stamped timeout, announce the turn.
func (r *Registry) enterTurnLocked(s *Session, em *emitter) {
	s.TurnGen++
	r.scheduleTurnLocked(s)
	cur := s.Participants[s.TurnIndex]
	em.toRoom(s.Code, "turn-changed", TurnChangedPayload{
		Username:   cur.Username,
		TurnIndex:  s.TurnIndex,
		DeadlineMS: time.Now().Add(r.cfg.TurnTimeout).UnixMilli(),
	})
}

// MarkNumber applies a manual mark by the current turn holder.
func (r *Registry) MarkNumber(code, connID string, number int) error {
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	if s.State == StateEnded {
		s.mu.Unlock()
		return ErrGameEnded
	}
	if s.State != StateInProgress {
		s.mu.Unlock()
		return ErrGameNotStarted
	}
	cur := s.currentTurn()
	if cur == nil || cur.ConnID != connID {
		s.mu.Unlock()
		return ErrNotYourTurn
	}
	if s.Marked[number] {
		s.mu.Unlock()
		return ErrAlreadyMarked
	}
	if !s.Used[number] {
		s.mu.Unlock()
		return ErrInvalidNumber
	}

	var em emitter
	winner, delta := r.applyMarkLocked(s, cur, number, false, &em)
	s.mu.Unlock()

	r.deliver(&em)
	if winner != "" {
		go r.recordWin(winner, delta)
	}
	return nil
}

// EndTurn is the explicit pass. If no mark happened during this turn
// index, exactly one automatic mark is applied first.
func (r *Registry) EndTurn(code, connID string) error {
	s, err := r.session(code)
	if err != nil {
		return err
	}
	if err := lockLive(s); err != nil {
		return err
	}
	if s.State == StateEnded {
		s.mu.Unlock()
		return ErrGameEnded
	}
	if s.State != StateInProgress {
		s.mu.Unlock()
		return ErrGameNotStarted
	}
	cur := s.currentTurn()
	if cur == nil || cur.ConnID != connID {
		s.mu.Unlock()
		return ErrNotYourTurn
	}

	var em emitter
	var winner string
	var delta int
	if s.LastMarkedTurn != s.TurnIndex {
		winner, delta = r.autoMarkLocked(s, cur, &em)
	} else {
		s.cancelTimerLocked()
		s.touch()
		r.advanceTurnLocked(s, &em)
	}
	s.mu.Unlock()

	r.deliver(&em)
	if winner != "" {
		go r.recordWin(winner, delta)
	}
	return nil
}

// handleTurnTimeout fires when a turn's timer expires. A stamped
// generation that no longer matches the session is a stale timer and
// produces zero mutation.
func (r *Registry) handleTurnTimeout(code string, gen uint64) {
	s, err := r.session(code)
	if err != nil {
		return
	}
	if err := lockLive(s); err != nil {
		return
	}
	if s.State != StateInProgress || s.TurnGen != gen {
		staleTimers.Inc()
		s.mu.Unlock()
		return
	}
	cur := s.currentTurn()
	if cur == nil {
		s.mu.Unlock()
		return
	}
	turnTimeouts.Inc()
	log.Debug().Str("room", code).Str("username", cur.Username).Uint64("turn", gen).Msg("turn timed out")

	var em emitter
	winner, delta := r.autoMarkLocked(s, cur, &em)
	s.mu.Unlock()

	r.deliver(&em)
	if winner != "" {
		go r.recordWin(winner, delta)
	}
}

// autoMarkLocked marks one random unmarked number from the turn
// holder's own grid, exactly as a manual mark would. With nothing left
// to mark it still advances the turn.
func (r *Registry) autoMarkLocked(s *Session, cur *Participant, em *emitter) (string, int) {
	grid := s.Grids[cur.Username]
	var candidates []int
	if grid != nil {
		candidates = grid.Unmarked(s.Marked)
	}
	if len(candidates) == 0 {
		s.cancelTimerLocked()
		s.touch()
		r.advanceTurnLocked(s, em)
		return "", 0
	}
	number := candidates[rand.Intn(len(candidates))]
	return r.applyMarkLocked(s, cur, number, true, em)
}

// applyMarkLocked commits a mark, runs win detection over every
// participant in join order, and either ends the game or advances the
// turn. Returns the winner and score delta for async persistence.
func (r *Registry) applyMarkLocked(s *Session, by *Participant, number int, automatic bool, em *emitter) (string, int) {
	s.Marked[number] = true
	s.LastMarkedNumber = number
	s.LastMarkedTurn = s.TurnIndex
	s.cancelTimerLocked()
	s.touch()
	marksTotal.WithLabelValues(boolLabel(automatic)).Inc()

	em.toRoom(s.Code, "number-marked", NumberMarkedPayload{
		Number:    number,
		Automatic: automatic,
		By:        by.Username,
	})

	// First participant in join order to meet the threshold wins;
	// evaluation is synchronous, ties break by position.
	for _, p := range s.Participants {
		grid := s.Grids[p.Username]
		if grid == nil {
			continue
		}
		lines, won := game.Evaluate(grid, s.Marked)
		if !won {
			continue
		}
		delta := winPointsPerLine * len(lines)
		p.Score += delta
		s.State = StateEnded
		gamesWon.Inc()
		em.toRoom(s.Code, "game-won", GameWonPayload{
			Winner: p.Username,
			Lines:  lines,
			Score:  delta,
		})
		log.Info().Str("room", s.Code).Str("winner", p.Username).Int("lines", len(lines)).Msg("game won")
		return p.Username, delta
	}

	r.advanceTurnLocked(s, em)
	return "", 0
}

// advanceTurnLocked rotates to the next participant. Disconnected
// participants are not skipped; their turn is auto-played by the
// timeout path.
func (r *Registry) advanceTurnLocked(s *Session, em *emitter) {
	if len(s.Participants) == 0 {
		return
	}
	s.TurnIndex = (s.TurnIndex + 1) % len(s.Participants)
	r.enterTurnLocked(s, em)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
