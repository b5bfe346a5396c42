package store

import (
	"context"
	"time"
)

type LeaderboardEntry struct {
	Username     string  `json:"username"`
	GamesPlayed  int64   `json:"games_played"`
	GamesWon     int64   `json:"games_won"`
	HighScore    int64   `json:"high_score"`
	AverageScore float64 `json:"average_score"`
}

type PlayerRecord struct {
	Username    string
	GamesPlayed int64
	GamesWon    int64
	TotalScore  int64
	HighScore   int64
	UpdatedAt   time.Time
}

// RecordWin folds one win into the player's aggregate row and appends
// the win history entry.
func (s *Store) RecordWin(ctx context.Context, username string, scoreDelta int) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO players (username, games_played, games_won, total_score, high_score, updated_at)
		VALUES ($1, 1, 1, $2, $2, now())
		ON CONFLICT (username) DO UPDATE SET
			games_played = players.games_played + 1,
			games_won    = players.games_won + 1,
			total_score  = players.total_score + EXCLUDED.total_score,
			high_score   = GREATEST(players.high_score, EXCLUDED.high_score),
			updated_at   = now()`,
		username, scoreDelta)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO wins (id, username, score) VALUES ($1,$2,$3)`,
		NewID(), username, scoreDelta)
	return err
}

func (s *Store) GetPlayer(ctx context.Context, username string) (*PlayerRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT username, games_played, games_won, total_score, high_score, updated_at
		FROM players WHERE username = $1`, username)
	var p PlayerRecord
	if err := row.Scan(&p.Username, &p.GamesPlayed, &p.GamesWon, &p.TotalScore, &p.HighScore, &p.UpdatedAt); err != nil {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT username, games_played, games_won, high_score,
		       total_score::float8 / NULLIF(games_played, 0) AS average_score
		FROM players
		ORDER BY total_score DESC, username ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		var avg *float64
		if err := rows.Scan(&e.Username, &e.GamesPlayed, &e.GamesWon, &e.HighScore, &avg); err != nil {
			return nil, err
		}
		if avg != nil {
			e.AverageScore = *avg
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
