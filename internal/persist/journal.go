package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JournalEntry is one recorded lifecycle transition.
type JournalEntry struct {
	CallID     uuid.UUID
	Kind       string // event.Kind name
	SceneID    string
	OccurredAt time.Time
	Host       string
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteBatch atomically writes a batch of journal entries in a single transaction.
func (r *JournalRepo) WriteBatch(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO scene_transitions (call_id, kind, scene_id, occurred_at, host)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.CallID, e.Kind, e.SceneID, e.OccurredAt, e.Host,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Recent returns the latest transitions of a scene, newest first.
func (r *JournalRepo) Recent(ctx context.Context, sceneID string, limit int) ([]JournalEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT call_id, kind, scene_id, occurred_at, host
		 FROM scene_transitions
		 WHERE scene_id = $1
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $2`,
		sceneID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.CallID, &e.Kind, &e.SceneID, &e.OccurredAt, &e.Host); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
