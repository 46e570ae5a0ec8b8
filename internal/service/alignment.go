package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/store"
)

const (
	// AlignmentSimilarityThreshold is looser than the consolidation
	// threshold: alignment links related material, it does not merge it.
	AlignmentSimilarityThreshold = 0.75

	// MaxEdgesPerRun caps graph growth per alignment pass.
	MaxEdgesPerRun = 50

	alignmentNeighborLimit = 5
	defaultLookbackHours   = 24
	defaultAlignInterval   = 6 * time.Hour

	alignmentLockName = "alignment"
)

// AlignmentResult reports one alignment pass.
type AlignmentResult struct {
	Processed    int `json:"processed"`
	EdgesCreated int `json:"edges_created"`
}

// AlignmentService links recently ingested fragments to similar fragments
// from other sources, building the knowledge graph incrementally.
type AlignmentService struct {
	fragmentStore domain.FragmentStore
	edgeStore     domain.EdgeStore
	locks         domain.RunLocker
	logger        *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewAlignmentService(fs domain.FragmentStore, es domain.EdgeStore, locks domain.RunLocker, logger *zap.Logger) *AlignmentService {
	return &AlignmentService{
		fragmentStore: fs,
		edgeStore:     es,
		locks:         locks,
		logger:        logger,
		interval:      defaultAlignInterval,
		stopCh:        make(chan struct{}),
	}
}

func (s *AlignmentService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *AlignmentService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("alignment worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if result, err := s.RunAlignment(ctx, defaultLookbackHours); err != nil {
					if !errors.Is(err, ErrRunActive) {
						s.logger.Error("alignment run failed", zap.Error(err))
					}
				} else if result.EdgesCreated > 0 {
					s.logger.Info("alignment run complete",
						zap.Int("processed", result.Processed),
						zap.Int("edges_created", result.EdgesCreated))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("alignment worker stopped")
				return
			}
		}
	}()
}

func (s *AlignmentService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunAlignment scans fragments created in the lookback window and creates
// typed edges to similar fragments from other sources. Same-source
// same-type pairs are skipped: those are consolidation's territory, and
// linking them would only duplicate the planner's grouping. Duplicate
// edges from earlier runs are silently skipped.
func (s *AlignmentService) RunAlignment(ctx context.Context, hoursBack int) (*AlignmentResult, error) {
	if hoursBack <= 0 {
		hoursBack = defaultLookbackHours
	}

	acquired, err := s.locks.TryAcquire(ctx, alignmentLockName)
	if err != nil {
		return nil, fmt.Errorf("acquire alignment lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: alignment", ErrRunActive)
	}
	defer func() {
		if err := s.locks.Release(ctx, alignmentLockName); err != nil {
			s.logger.Warn("failed to release alignment lock", zap.Error(err))
		}
	}()

	since := time.Now().Add(-time.Duration(hoursBack) * time.Hour)
	recent, err := s.fragmentStore.GetCreatedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("scan recent fragments: %w", err)
	}

	result := &AlignmentResult{}
	for _, fragment := range recent {
		result.Processed++
		if len(fragment.Embedding) == 0 {
			continue
		}

		neighbors, err := s.fragmentStore.FindSimilar(ctx, fragment.Embedding,
			AlignmentSimilarityThreshold, alignmentNeighborLimit, fragment.ID)
		if err != nil {
			s.logger.Warn("similarity search failed",
				zap.String("fragment_id", fragment.ID.String()),
				zap.Error(err))
			continue
		}

		for _, neighbor := range neighbors {
			if result.EdgesCreated >= MaxEdgesPerRun {
				break
			}
			if neighbor.SourceType == fragment.SourceType && neighbor.KnowledgeType == fragment.KnowledgeType {
				continue
			}

			edge := &domain.KnowledgeEdge{
				SourceID: fragment.ID,
				TargetID: neighbor.ID,
				EdgeType: domain.InferEdgeType(fragment.KnowledgeType, neighbor.KnowledgeType),
				Strength: neighbor.Score,
				Reasoning: fmt.Sprintf("aligned %s/%s with %s/%s",
					fragment.SourceType, fragment.KnowledgeType,
					neighbor.SourceType, neighbor.KnowledgeType),
			}
			if err := s.edgeStore.Create(ctx, edge); err != nil {
				if errors.Is(err, store.ErrConflict) {
					s.logger.Debug("edge already exists",
						zap.String("source_id", edge.SourceID.String()),
						zap.String("target_id", edge.TargetID.String()))
					continue
				}
				s.logger.Warn("failed to create edge",
					zap.String("source_id", edge.SourceID.String()),
					zap.String("target_id", edge.TargetID.String()),
					zap.Error(err))
				continue
			}
			result.EdgesCreated++
		}

		if result.EdgesCreated >= MaxEdgesPerRun {
			s.logger.Info("alignment edge budget reached", zap.Int("max", MaxEdgesPerRun))
			break
		}
	}

	return result, nil
}
