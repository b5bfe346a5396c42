package room

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Disconnect reasons the transport reports. Anything not an explicit
// leave is treated as transient: the slot is preserved for the grace
// window.
const (
	ReasonLeft             = "left"
	ReasonConnectionLost   = "connection lost"
	ReasonReconnectTimeout = "reconnect timeout"
)

// Disconnect reconciles a delivery-layer disconnect notification.
// Permanent (explicit leave) removes the participant immediately;
// transient preserves the slot and arms a grace-window eviction.
func (r *Registry) Disconnect(code, connID, reason string, permanent bool) {
	s, err := r.session(code)
	if err != nil {
		return
	}
	if err := lockLive(s); err != nil {
		return
	}
	p := s.participantByConn(connID)
	if p == nil {
		// Stale socket: the username already rebound to a newer
		// connection, nothing to reconcile.
		s.mu.Unlock()
		return
	}

	var em emitter
	if permanent {
		r.removeParticipantLocked(s, p, reason, &em)
		s.mu.Unlock()
		r.deliver(&em)
		return
	}

	now := time.Now()
	p.Connected = false
	p.DisconnectedAt = now
	p.DisconnectReason = reason
	s.touch()
	em.toRoom(s.Code, "player-disconnected", PlayerDisconnectedPayload{Username: p.Username})
	username := p.Username
	s.mu.Unlock()

	log.Info().Str("room", code).Str("username", username).Str("reason", reason).Msg("player disconnected")
	time.AfterFunc(r.cfg.ReconnectGrace, func() {
		r.handleGraceExpiry(code, username, now)
	})
	r.deliver(&em)
}

// handleGraceExpiry removes a participant only if they are still
// disconnected from the same drop the window was armed for. A rejoin,
// or a newer disconnect with its own window, makes this firing a no-op.
func (r *Registry) handleGraceExpiry(code, username string, disconnectedAt time.Time) {
	s, err := r.session(code)
	if err != nil {
		return
	}
	if err := lockLive(s); err != nil {
		return
	}
	p := s.participantByName(username)
	if p == nil || p.Connected || !p.DisconnectedAt.Equal(disconnectedAt) {
		s.mu.Unlock()
		return
	}
	var em emitter
	r.removeParticipantLocked(s, p, ReasonReconnectTimeout, &em)
	s.mu.Unlock()
	r.deliver(&em)
}

// removeParticipantLocked drops a participant from the rotation and
// re-clamps the turn. The removed username's grid is forgotten so a
// later rejoin is a fresh join; its numbers stay reserved in Used so
// grid disjointness and the marked-pool invariant hold.
func (r *Registry) removeParticipantLocked(s *Session, p *Participant, reason string, em *emitter) {
	idx := -1
	for i, cand := range s.Participants {
		if cand == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.Participants = append(s.Participants[:idx], s.Participants[idx+1:]...)
	delete(s.Ready, p.Username)
	delete(s.Grids, p.Username)
	s.touch()
	em.detach(s.Code, p.ConnID)
	em.toRoom(s.Code, "player-left", PlayerLeftPayload{
		Username: p.Username,
		Reason:   reason,
		Players:  s.playerInfos(),
	})
	log.Info().Str("room", s.Code).Str("username", p.Username).Str("reason", reason).Msg("player removed")

	if len(s.Participants) == 0 {
		s.cancelTimerLocked()
		return
	}

	if s.State != StateInProgress {
		s.TurnIndex = 0
		return
	}

	heldTurn := idx == s.TurnIndex
	if idx < s.TurnIndex {
		s.TurnIndex--
	}
	s.TurnIndex = s.TurnIndex % len(s.Participants)
	if heldTurn {
		// The old timer is for a removed turn holder; a fresh
		// generation makes any late firing stale.
		s.cancelTimerLocked()
		r.enterTurnLocked(s, em)
	}
}
