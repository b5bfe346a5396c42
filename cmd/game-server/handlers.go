package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bingo-arena/internal/logging"
	"bingo-arena/internal/room"
	"bingo-arena/internal/store"
	"bingo-arena/internal/ws"
)

func newRouter(registry *room.Registry, st *store.Store, wsServer *ws.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", healthHandler(st))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", wsServer.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Post("/rooms", createRoomHandler(registry))
		r.Get("/rooms/{code}/joinable", joinableHandler(registry))
		r.Get("/public/leaderboard", leaderboardHandler(st))
	})
	return r
}

func apiLogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func writeHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

func createRoomHandler(registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Rows     int    `json:"rows"`
			Cols     int    `json:"cols"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.Username == "" {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		code, err := registry.CreateRoom(body.Rows, body.Cols)
		if err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"room_code": code})
	}
}

func joinableHandler(registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		switch err := registry.Joinable(code); {
		case err == nil:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case errors.Is(err, room.ErrRoomNotFound):
			writeHTTPError(w, http.StatusNotFound, "room_not_found")
		case errors.Is(err, room.ErrGameStarted):
			writeHTTPError(w, http.StatusConflict, "game_already_started")
		default:
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
		}
	}
}

func leaderboardHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeHTTPError(w, http.StatusServiceUnavailable, "leaderboard_unavailable")
			return
		}
		limit, offset := parsePagination(r)
		items, err := st.Leaderboard(r.Context(), limit, offset)
		if err != nil {
			writeHTTPError(w, http.StatusServiceUnavailable, "leaderboard_unavailable")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":  items,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func healthHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "disabled"})
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func parsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
