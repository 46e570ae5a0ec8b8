package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/quarrylabs/sediment/internal/domain"
)

type FragmentStore struct {
	db *pgxpool.Pool
}

func NewFragmentStore(db *pgxpool.Pool) *FragmentStore {
	return &FragmentStore{db: db}
}

const fragmentColumns = `id, content, confidence, source_type, knowledge_type, embedding, decay_score, access_count, last_accessed_at, consolidated_into, archived, created_at, updated_at`

func scanFragment(row pgx.Row, f *domain.Fragment) error {
	var embedding *pgvector.Vector
	err := row.Scan(&f.ID, &f.Content, &f.Confidence, &f.SourceType, &f.KnowledgeType,
		&embedding, &f.DecayScore, &f.AccessCount, &f.LastAccessedAt, &f.ConsolidatedInto,
		&f.Archived, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return err
	}
	if embedding != nil {
		f.Embedding = embedding.Slice()
	}
	return nil
}

func (s *FragmentStore) Create(ctx context.Context, f *domain.Fragment) error {
	var embedding *pgvector.Vector
	if len(f.Embedding) > 0 {
		v := pgvector.NewVector(f.Embedding)
		embedding = &v
	}

	if f.DecayScore == 0 {
		f.DecayScore = 1.0
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO fragments (content, confidence, source_type, knowledge_type, embedding, decay_score, last_accessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id, access_count, last_accessed_at, archived, created_at, updated_at`,
		f.Content, f.Confidence, f.SourceType, f.KnowledgeType, embedding, f.DecayScore,
	).Scan(&f.ID, &f.AccessCount, &f.LastAccessedAt, &f.Archived, &f.CreatedAt, &f.UpdatedAt)
}

func (s *FragmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fragment, error) {
	f := &domain.Fragment{}
	err := scanFragment(s.db.QueryRow(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = $1`, id), f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FragmentStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Fragment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get fragments by ids: %w", err)
	}
	defer rows.Close()

	return collectFragments(rows)
}

// GetRecentUnconsolidated returns the newest-first planner scan window.
// Stale fragments (decay <= 0.3) are not consolidation material.
func (s *FragmentStore) GetRecentUnconsolidated(ctx context.Context, limit int) ([]domain.Fragment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+fragmentColumns+`
		 FROM fragments
		 WHERE consolidated_into IS NULL AND NOT archived
		   AND embedding IS NOT NULL AND decay_score > 0.3
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent unconsolidated query: %w", err)
	}
	defer rows.Close()

	return collectFragments(rows)
}

func (s *FragmentStore) GetCreatedSince(ctx context.Context, since time.Time) ([]domain.Fragment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+fragmentColumns+`
		 FROM fragments
		 WHERE created_at >= $1 AND NOT archived AND embedding IS NOT NULL
		 ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("created since query: %w", err)
	}
	defer rows.Close()

	return collectFragments(rows)
}

func (s *FragmentStore) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int, excludeID uuid.UUID) ([]domain.FragmentWithScore, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+fragmentColumns+`, 1 - (embedding <=> $1) AS score
		 FROM fragments
		 WHERE id != $2
		   AND consolidated_into IS NULL AND NOT archived AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY score DESC
		 LIMIT $4`,
		vec, excludeID, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("fragment similarity query: %w", err)
	}
	defer rows.Close()

	var results []domain.FragmentWithScore
	for rows.Next() {
		var fs domain.FragmentWithScore
		var emb *pgvector.Vector
		if err := rows.Scan(&fs.ID, &fs.Content, &fs.Confidence, &fs.SourceType, &fs.KnowledgeType,
			&emb, &fs.DecayScore, &fs.AccessCount, &fs.LastAccessedAt, &fs.ConsolidatedInto,
			&fs.Archived, &fs.CreatedAt, &fs.UpdatedAt, &fs.Score); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		if emb != nil {
			fs.Embedding = emb.Slice()
		}
		results = append(results, fs)
	}
	return results, rows.Err()
}

// MarkConsolidated tombstones a fragment by pointing it at the knowledge
// record that absorbed it. Already-consolidated fragments are not retargeted.
func (s *FragmentStore) MarkConsolidated(ctx context.Context, id, targetID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE fragments
		 SET consolidated_into = $2, updated_at = NOW()
		 WHERE id = $1 AND consolidated_into IS NULL`,
		id, targetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyDecay recomputes every active fragment's decay score in one
// statement: score * exp(-rate * days since last access), floored. One
// UPDATE keeps the cycle all-or-nothing.
func (s *FragmentStore) ApplyDecay(ctx context.Context, rate float64, floor float32) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE fragments
		 SET decay_score = GREATEST(
		         decay_score * exp(-$1 * EXTRACT(EPOCH FROM (NOW() - COALESCE(last_accessed_at, created_at))) / 86400),
		         $2::real
		     ),
		     updated_at = NOW()
		 WHERE consolidated_into IS NULL AND NOT archived`,
		rate, floor)
	if err != nil {
		return 0, fmt.Errorf("fragment decay update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *FragmentStore) ArchiveBelow(ctx context.Context, threshold float32) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE fragments
		 SET archived = TRUE, updated_at = NOW()
		 WHERE decay_score < $1 AND consolidated_into IS NULL AND NOT archived`,
		threshold)
	if err != nil {
		return 0, fmt.Errorf("fragment archive update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *FragmentStore) IncrementAccess(ctx context.Context, id uuid.UUID, boost float32) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE fragments
		 SET access_count = access_count + 1,
		     last_accessed_at = NOW(),
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

func (s *FragmentStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM fragments WHERE NOT archived`).Scan(&count)
	return count, err
}

func (s *FragmentStore) DecayDistribution(ctx context.Context) (*domain.DecayDistribution, error) {
	d := &domain.DecayDistribution{}
	err := s.db.QueryRow(ctx,
		`SELECT
		     COUNT(*) FILTER (WHERE decay_score > 0.7),
		     COUNT(*) FILTER (WHERE decay_score > 0.3 AND decay_score <= 0.7),
		     COUNT(*) FILTER (WHERE decay_score <= 0.3),
		     COUNT(*)
		 FROM fragments
		 WHERE consolidated_into IS NULL AND NOT archived`,
	).Scan(&d.Fresh, &d.Aging, &d.Stale, &d.Total)
	if err != nil {
		return nil, fmt.Errorf("decay distribution query: %w", err)
	}
	return d, nil
}

func collectFragments(rows pgx.Rows) ([]domain.Fragment, error) {
	var fragments []domain.Fragment
	for rows.Next() {
		var f domain.Fragment
		if err := scanFragment(rows, &f); err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}
