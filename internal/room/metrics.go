package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_rooms_created_total",
		Help: "Rooms created since start.",
	})
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bingo_active_rooms",
		Help: "Sessions currently held by the registry.",
	})
	marksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bingo_marks_total",
		Help: "Numbers marked, by automatic flag.",
	}, []string{"automatic"})
	turnTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_turn_timeouts_total",
		Help: "Turns ended by the timeout auto-mark.",
	})
	staleTimers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_stale_timers_total",
		Help: "Timer firings ignored because their turn generation had passed.",
	})
	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_reconnects_total",
		Help: "Participants rebound to a new connection.",
	})
	gamesWon = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_games_won_total",
		Help: "Games finished with a winner.",
	})
	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bingo_session_evictions_total",
		Help: "Sessions evicted by the cleaner, by reason.",
	}, []string{"reason"})
)
