package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarrylabs/sediment/internal/domain"
)

type EdgeStore struct {
	db *pgxpool.Pool
}

func NewEdgeStore(db *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{db: db}
}

// Create inserts an edge. A second edge with the same source, target and
// type trips the unique constraint and surfaces as ErrConflict; callers
// treat that as an idempotent no-op.
func (s *EdgeStore) Create(ctx context.Context, e *domain.KnowledgeEdge) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO knowledge_edges (source_id, target_id, edge_type, strength, reasoning)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.SourceID, e.TargetID, e.EdgeType, e.Strength, e.Reasoning,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *EdgeStore) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.KnowledgeEdge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, source_id, target_id, edge_type, strength, reasoning, created_at
		 FROM knowledge_edges
		 WHERE source_id = $1
		 ORDER BY strength DESC`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("edge query: %w", err)
	}
	defer rows.Close()

	var edges []domain.KnowledgeEdge
	for rows.Next() {
		var e domain.KnowledgeEdge
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.EdgeType,
			&e.Strength, &e.Reasoning, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
