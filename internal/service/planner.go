package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
)

const (
	// ConsolidationSimilarityThreshold is the minimum cosine similarity
	// for two fragments to be considered near-duplicates.
	ConsolidationSimilarityThreshold = 0.85

	// MinGroupSize is the smallest candidate group worth merging: a seed
	// plus at least two neighbors.
	MinGroupSize = 3

	defaultCandidateLimit = 20
	defaultScanWindow     = 200
	plannerNeighborLimit  = 10
	previewLength         = 120

	consolidationLockName = "consolidation"
)

// CandidateGroup is one proposed merge set.
type CandidateGroup struct {
	PrimaryFragmentID  uuid.UUID   `json:"primary_fragment_id"`
	RelatedFragmentIDs []uuid.UUID `json:"related_fragment_ids"`
	TotalCount         int         `json:"total_count"`
	ContentPreview     string      `json:"content_preview"`
}

// PlannerService groups near-duplicate fragments into candidate merge sets
// with a greedy single pass over a bounded newest-first scan window. The
// pass trades cluster optimality for bounded cost: once a fragment lands
// in a group it is never reconsidered, and a later fragment that would
// also match it is simply skipped.
type PlannerService struct {
	fragmentStore domain.FragmentStore
	locks         domain.RunLocker
	logger        *zap.Logger

	scanWindow int
}

func NewPlannerService(fs domain.FragmentStore, locks domain.RunLocker, logger *zap.Logger) *PlannerService {
	return &PlannerService{
		fragmentStore: fs,
		locks:         locks,
		logger:        logger,
		scanWindow:    defaultScanWindow,
	}
}

func (s *PlannerService) SetScanWindow(n int) {
	if n > 0 {
		s.scanWindow = n
	}
}

// FindConsolidationCandidates scans the most recent unconsolidated
// fragments and emits up to limit non-overlapping groups. The run holds
// the consolidation lock: overlapping runs over the same pool would
// double-group fragments.
func (s *PlannerService) FindConsolidationCandidates(ctx context.Context, limit int) ([]CandidateGroup, error) {
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	acquired, err := s.locks.TryAcquire(ctx, consolidationLockName)
	if err != nil {
		return nil, fmt.Errorf("acquire consolidation lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: consolidation", ErrRunActive)
	}
	defer func() {
		if err := s.locks.Release(ctx, consolidationLockName); err != nil {
			s.logger.Warn("failed to release consolidation lock", zap.Error(err))
		}
	}()

	window, err := s.fragmentStore.GetRecentUnconsolidated(ctx, s.scanWindow)
	if err != nil {
		return nil, fmt.Errorf("scan fragments: %w", err)
	}

	grouped := make(map[uuid.UUID]bool)
	var groups []CandidateGroup

	for _, seed := range window {
		if len(groups) >= limit {
			break
		}
		if grouped[seed.ID] || len(seed.Embedding) == 0 {
			continue
		}

		neighbors, err := s.fragmentStore.FindSimilar(ctx, seed.Embedding,
			ConsolidationSimilarityThreshold, plannerNeighborLimit, seed.ID)
		if err != nil {
			s.logger.Warn("similarity search failed for seed",
				zap.String("fragment_id", seed.ID.String()),
				zap.Error(err))
			continue
		}

		var related []uuid.UUID
		for _, n := range neighbors {
			if grouped[n.ID] {
				continue
			}
			related = append(related, n.ID)
		}

		if 1+len(related) < MinGroupSize {
			continue
		}

		grouped[seed.ID] = true
		for _, id := range related {
			grouped[id] = true
		}

		groups = append(groups, CandidateGroup{
			PrimaryFragmentID:  seed.ID,
			RelatedFragmentIDs: related,
			TotalCount:         1 + len(related),
			ContentPreview:     preview(seed.Content),
		})
	}

	return groups, nil
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= previewLength {
		return content
	}
	return content[:previewLength] + "..."
}
