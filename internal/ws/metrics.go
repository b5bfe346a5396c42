package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bingo_ws_connections",
		Help: "Open websocket connections.",
	})
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bingo_ws_messages_total",
		Help: "Inbound websocket messages by type.",
	}, []string{"type"})
)
