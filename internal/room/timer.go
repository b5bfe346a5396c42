package room

import "time"

// turnTimer is the one-shot turn timeout, stamped with the generation
// it was scheduled for. A firing whose stamp no longer matches the
// session's TurnGen is stale and must not touch anything.
type turnTimer struct {
	gen uint64
	t   *time.Timer
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.t.Stop()
		s.timer = nil
	}
}

// scheduleTurnLocked arms the timeout for the session's current turn
// generation. The callback re-fetches the session by code and
// re-validates the stamp; it never closes over mutable session state.
func (r *Registry) scheduleTurnLocked(s *Session) {
	s.cancelTimerLocked()
	gen := s.TurnGen
	code := s.Code
	s.timer = &turnTimer{
		gen: gen,
		t: time.AfterFunc(r.cfg.TurnTimeout, func() {
			r.handleTurnTimeout(code, gen)
		}),
	}
}
