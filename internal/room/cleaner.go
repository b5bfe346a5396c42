package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartCleaner runs the background sweep that evicts abandoned
// sessions: absolute age past the TTL, no activity within the
// inactivity window, or zero participants.
func (r *Registry) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.sweep(now)
			}
		}
	}()
}

func (r *Registry) sweep(now time.Time) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if reason, evict := r.judgeAndClose(s, now); evict {
			r.drop(s.Code, reason)
		}
	}
}

// judgeAndClose decides a session's fate under its own lock and, when
// evicting, closes it and collects the termination notice before the
// registry entry disappears.
func (r *Registry) judgeAndClose(s *Session, now time.Time) (string, bool) {
	if err := lockLive(s); err != nil {
		return "", false
	}

	var reason string
	switch {
	case now.Sub(s.CreatedAt) > r.cfg.SessionTTL:
		reason = "session expired"
	case now.Sub(s.LastActivity) > r.cfg.InactivityWindow:
		reason = "inactive game"
	case len(s.Participants) == 0:
		reason = ""
	default:
		s.mu.Unlock()
		return "", false
	}

	s.closed = true
	s.cancelTimerLocked()
	var em emitter
	// An empty room has nobody to notify; otherwise members get the
	// termination notice and are detached from the broadcast group.
	if len(s.Participants) > 0 {
		em.toRoom(s.Code, "game-ended", GameEndedPayload{Reason: reason})
		for _, p := range s.Participants {
			em.detach(s.Code, p.ConnID)
		}
	}
	s.mu.Unlock()
	r.deliver(&em)
	return reason, true
}

func (r *Registry) drop(code, reason string) {
	r.mu.Lock()
	delete(r.sessions, code)
	activeRooms.Set(float64(len(r.sessions)))
	r.mu.Unlock()
	if reason == "" {
		reason = "empty"
	}
	evictions.WithLabelValues(reason).Inc()
	log.Info().Str("room", code).Str("reason", reason).Msg("session evicted")
}
