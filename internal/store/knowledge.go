package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/quarrylabs/sediment/internal/domain"
)

type KnowledgeStore struct {
	db *pgxpool.Pool
}

func NewKnowledgeStore(db *pgxpool.Pool) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

func (s *KnowledgeStore) Create(ctx context.Context, k *domain.KnowledgeRecord) error {
	var embedding *pgvector.Vector
	if len(k.Embedding) > 0 {
		v := pgvector.NewVector(k.Embedding)
		embedding = &v
	}

	if k.DecayScore == 0 {
		k.DecayScore = 1.0
	}
	if k.Importance == "" {
		k.Importance = domain.ImportanceMedium
	}

	provenance, err := json.Marshal(k.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO knowledge_records (title, content, knowledge_type, importance, confidence, embedding, decay_score, source_fragment_ids, provenance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, validation_count, contradiction_count, access_count, archived, created_at, updated_at`,
		k.Title, k.Content, k.KnowledgeType, k.Importance, k.Confidence, embedding, k.DecayScore, k.SourceFragmentIDs, provenance,
	).Scan(&k.ID, &k.ValidationCount, &k.ContradictionCount, &k.AccessCount, &k.Archived, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *KnowledgeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeRecord, error) {
	k := &domain.KnowledgeRecord{}
	var embedding *pgvector.Vector
	var provenance []byte

	err := s.db.QueryRow(ctx,
		`SELECT id, title, content, knowledge_type, importance, confidence, embedding, decay_score,
		        validation_count, contradiction_count, source_fragment_ids, provenance, superseded_by,
		        access_count, archived, created_at, updated_at
		 FROM knowledge_records WHERE id = $1`, id,
	).Scan(&k.ID, &k.Title, &k.Content, &k.KnowledgeType, &k.Importance, &k.Confidence, &embedding,
		&k.DecayScore, &k.ValidationCount, &k.ContradictionCount, &k.SourceFragmentIDs, &provenance,
		&k.SupersededBy, &k.AccessCount, &k.Archived, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if embedding != nil {
		k.Embedding = embedding.Slice()
	}
	if len(provenance) > 0 {
		if err := json.Unmarshal(provenance, &k.Provenance); err != nil {
			return nil, fmt.Errorf("unmarshal provenance: %w", err)
		}
	}
	return k, nil
}

// ApplyDecay bulk-recomputes decay scores for live records. Superseded
// records are frozen history and left untouched.
func (s *KnowledgeStore) ApplyDecay(ctx context.Context, rate float64, floor float32) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_records
		 SET decay_score = GREATEST(
		         decay_score * exp(-$1 * EXTRACT(EPOCH FROM (NOW() - updated_at)) / 86400),
		         $2::real
		     ),
		     updated_at = NOW()
		 WHERE superseded_by IS NULL AND NOT archived`,
		rate, floor)
	if err != nil {
		return 0, fmt.Errorf("knowledge decay update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *KnowledgeStore) ArchiveBelow(ctx context.Context, threshold float32) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_records
		 SET archived = TRUE, updated_at = NOW()
		 WHERE decay_score < $1 AND superseded_by IS NULL AND NOT archived`,
		threshold)
	if err != nil {
		return 0, fmt.Errorf("knowledge archive update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *KnowledgeStore) IncrementAccess(ctx context.Context, id uuid.UUID, boost float32) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_records
		 SET access_count = access_count + 1,
		     decay_score = LEAST(decay_score + $2, 1.0),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, boost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *KnowledgeStore) IncrementValidation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_records
		 SET validation_count = validation_count + 1, updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *KnowledgeStore) IncrementContradiction(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_records
		 SET contradiction_count = contradiction_count + 1, updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSupersededBy points a record at its successor. Supersession is a
// pointer, not a deletion; the old record stays queryable.
func (s *KnowledgeStore) SetSupersededBy(ctx context.Context, id, successorID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_records
		 SET superseded_by = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, successorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *KnowledgeStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_records WHERE NOT archived`).Scan(&count)
	return count, err
}
