package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DecayDistribution buckets active fragment decay scores. Fresh, aging and
// stale partition [0,1] at the 0.7 and 0.3 thresholds.
type DecayDistribution struct {
	Fresh int `json:"fresh"`
	Aging int `json:"aging"`
	Stale int `json:"stale"`
	Total int `json:"total"`
}

type FragmentStore interface {
	Create(ctx context.Context, f *Fragment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fragment, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Fragment, error)

	// GetRecentUnconsolidated returns the newest-first window of active
	// fragments carrying an embedding, excluding consolidated and archived
	// ones. This ordering is what makes planner runs deterministic.
	GetRecentUnconsolidated(ctx context.Context, limit int) ([]Fragment, error)
	GetCreatedSince(ctx context.Context, since time.Time) ([]Fragment, error)
	FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int, excludeID uuid.UUID) ([]FragmentWithScore, error)

	MarkConsolidated(ctx context.Context, id, targetID uuid.UUID) error

	// ApplyDecay bulk-recomputes decay scores for all active fragments in a
	// single statement and returns the number of rows touched.
	ApplyDecay(ctx context.Context, rate float64, floor float32) (int64, error)
	ArchiveBelow(ctx context.Context, threshold float32) (int64, error)
	IncrementAccess(ctx context.Context, id uuid.UUID, boost float32) error

	Count(ctx context.Context) (int, error)
	DecayDistribution(ctx context.Context) (*DecayDistribution, error)
}

type KnowledgeStore interface {
	Create(ctx context.Context, k *KnowledgeRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*KnowledgeRecord, error)

	ApplyDecay(ctx context.Context, rate float64, floor float32) (int64, error)
	ArchiveBelow(ctx context.Context, threshold float32) (int64, error)
	IncrementAccess(ctx context.Context, id uuid.UUID, boost float32) error

	IncrementValidation(ctx context.Context, id uuid.UUID) error
	IncrementContradiction(ctx context.Context, id uuid.UUID) error
	SetSupersededBy(ctx context.Context, id, successorID uuid.UUID) error

	Count(ctx context.Context) (int, error)
}

// LedgerStore is append-only; there is deliberately no update or delete.
type LedgerStore interface {
	Append(ctx context.Context, e *LedgerEntry) error
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]LedgerEntry, error)
	CountByActions(ctx context.Context, actions ...LedgerAction) (int, error)
}

type EdgeStore interface {
	// Create inserts an edge, returning a conflict error when an edge with
	// the same source, target and type already exists.
	Create(ctx context.Context, e *KnowledgeEdge) error
	ListBySource(ctx context.Context, sourceID uuid.UUID) ([]KnowledgeEdge, error)
}

// RunLocker hands out run-level mutual exclusion tokens keyed by subsystem
// name. Planner and alignment runs are not safe to overlap with themselves.
type RunLocker interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}
