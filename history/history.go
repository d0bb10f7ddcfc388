// Package history persists finished conversations to Postgres and serves the
// aggregates behind the /stats command. It never stores in-flight state.
package history

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/m3rciful/toolbot/core/conv"
	"github.com/m3rciful/toolbot/core/logger"
)

// Store writes and reads the conversation log.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record inserts one finished conversation.
func (s *Store) Record(ctx context.Context, rec conv.Record) error {
	const q = `
		INSERT INTO conversation_log (chat_id, kind, reason, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, q,
		rec.ChatID, string(rec.Kind), string(rec.Reason), rec.StartedAt, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("history insert: %w", err)
	}
	return nil
}

// KindStats is one aggregate row of the conversation log.
type KindStats struct {
	Kind   string `db:"kind"`
	Reason string `db:"reason"`
	Total  int    `db:"total"`
}

// Stats returns totals grouped by conversation kind and end reason.
func (s *Store) Stats(ctx context.Context) ([]KindStats, error) {
	const q = `
		SELECT kind, reason, COUNT(*) AS total
		FROM conversation_log
		GROUP BY kind, reason
		ORDER BY kind, reason`
	var out []KindStats
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	return out, nil
}

// OnEnd adapts the store to the engine's end hook. Insert failures are logged
// and never surface to the conversation.
func (s *Store) OnEnd(ctx context.Context, rec conv.Record) {
	if err := s.Record(ctx, rec); err != nil {
		logger.Hist.Warn("record failed",
			slog.String("event", "record.fail"),
			slog.Int64("chat_id", rec.ChatID),
			slog.String("kind", string(rec.Kind)),
			slog.String("err", err.Error()),
		)
	}
}
