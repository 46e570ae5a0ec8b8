package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarrylabs/sediment/internal/domain"
)

// LedgerStore is append-only. There is no update or delete path; the log
// is the ground truth for how knowledge evolved.
type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, e *domain.LedgerEntry) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO consolidation_log (action, source_ids, target_id, actor, reasoning, confidence_before, confidence_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		e.Action, e.SourceIDs, e.TargetID, e.Actor, e.Reasoning, e.ConfidenceBefore, e.ConfidenceAfter,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *LedgerStore) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, action, source_ids, target_id, actor, reasoning, confidence_before, confidence_after, created_at
		 FROM consolidation_log
		 WHERE target_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.SourceIDs, &e.TargetID, &e.Actor,
			&e.Reasoning, &e.ConfidenceBefore, &e.ConfidenceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) CountByActions(ctx context.Context, actions ...domain.LedgerAction) (int, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM consolidation_log WHERE action = ANY($1)`, names,
	).Scan(&count)
	return count, err
}
