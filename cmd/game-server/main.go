package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"bingo-arena/internal/config"
	"bingo-arena/internal/logging"
	"bingo-arena/internal/room"
	"bingo-arena/internal/store"
	"bingo-arena/internal/ws"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	var st *store.Store
	if cfg.Server.PostgresDSN != "" {
		st, err = store.New(cfg.Server.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		if err := st.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		if err := st.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("ensure schema failed")
		}
	} else {
		log.Warn().Msg("no POSTGRES_DSN set, score recording and leaderboard disabled")
	}

	registry := room.NewRegistry(room.Config{
		TurnTimeout:      cfg.Server.TurnTimeout,
		ReconnectGrace:   cfg.Server.ReconnectGrace,
		SessionTTL:       cfg.Server.SessionTTL,
		InactivityWindow: cfg.Server.InactivityWindow,
	}, scoreKeeper(st))
	wsServer := ws.NewServer(registry)
	registry.SetBroadcaster(wsServer)
	registry.StartCleaner(context.Background(), cfg.Server.CleanupInterval)

	r := newRouter(registry, st, wsServer)
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

// storeScores adapts the pgx store to the registry's keeper interface.
// A nil store means wins are simply not persisted.
type storeScores struct {
	st *store.Store
}

func scoreKeeper(st *store.Store) room.ScoreKeeper {
	if st == nil {
		return nil
	}
	return &storeScores{st: st}
}

func (k *storeScores) RecordWin(username string, scoreDelta int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return k.st.RecordWin(ctx, username, scoreDelta)
}
