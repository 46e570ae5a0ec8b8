package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
)

const (
	defaultDecayInterval = 1 * time.Hour

	// Per-day decay rates. Knowledge records decay an order of magnitude
	// slower than raw fragments.
	FragmentDecayRate  = 0.05
	KnowledgeDecayRate = 0.005

	// DecayFloor keeps scores from hitting zero so an access boost can
	// still revive a record.
	DecayFloor = 0.05

	// ArchiveThreshold soft-deletes records from active pools.
	ArchiveThreshold = 0.2

	// AccessBoost is the decay-score nudge applied per recorded access.
	AccessBoost = 0.1
)

// DecayCycleResult reports what one maintenance cycle touched.
type DecayCycleResult struct {
	UpdatedFragments int64 `json:"updated_fragments"`
	UpdatedKnowledge int64 `json:"updated_knowledge"`
	Archived         int64 `json:"archived"`
}

// AccessItem names one record whose access should be recorded.
type AccessItem struct {
	Kind domain.RecordKind `json:"kind"`
	ID   uuid.UUID         `json:"id"`
}

type DecayService struct {
	fragmentStore  domain.FragmentStore
	knowledgeStore domain.KnowledgeStore
	logger         *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDecayService(fs domain.FragmentStore, ks domain.KnowledgeStore, logger *zap.Logger) *DecayService {
	return &DecayService{
		fragmentStore:  fs,
		knowledgeStore: ks,
		logger:         logger,
		interval:       defaultDecayInterval,
		stopCh:         make(chan struct{}),
	}
}

func (s *DecayService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *DecayService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("decay worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if result, err := s.RunDecayCycle(ctx); err != nil {
					s.logger.Error("decay cycle failed", zap.Error(err))
				} else if result.UpdatedFragments > 0 || result.UpdatedKnowledge > 0 || result.Archived > 0 {
					s.logger.Info("decay cycle complete",
						zap.Int64("updated_fragments", result.UpdatedFragments),
						zap.Int64("updated_knowledge", result.UpdatedKnowledge),
						zap.Int64("archived", result.Archived))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("decay worker stopped")
				return
			}
		}
	}()
}

func (s *DecayService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunDecayCycle bulk-recomputes decay scores for active fragments and live
// knowledge records, then archives whatever fell under the floor. This is
// scheduled maintenance, not a per-item operation: each step is a single
// bulk statement, and any failure aborts the cycle rather than leaving
// partially applied scores.
func (s *DecayService) RunDecayCycle(ctx context.Context) (*DecayCycleResult, error) {
	result := &DecayCycleResult{}

	updated, err := s.fragmentStore.ApplyDecay(ctx, FragmentDecayRate, DecayFloor)
	if err != nil {
		return nil, fmt.Errorf("fragment decay: %w", err)
	}
	result.UpdatedFragments = updated

	updated, err = s.knowledgeStore.ApplyDecay(ctx, KnowledgeDecayRate, DecayFloor)
	if err != nil {
		return nil, fmt.Errorf("knowledge decay: %w", err)
	}
	result.UpdatedKnowledge = updated

	archived, err := s.fragmentStore.ArchiveBelow(ctx, ArchiveThreshold)
	if err != nil {
		return nil, fmt.Errorf("fragment archive: %w", err)
	}
	result.Archived += archived

	archived, err = s.knowledgeStore.ArchiveBelow(ctx, ArchiveThreshold)
	if err != nil {
		return nil, fmt.Errorf("knowledge archive: %w", err)
	}
	result.Archived += archived

	return result, nil
}

// RecordAccess increments the access counter and nudges the decay score
// upward for one record. Duplicate calls are safe; they only increment.
func (s *DecayService) RecordAccess(ctx context.Context, kind domain.RecordKind, id uuid.UUID) error {
	switch kind {
	case domain.KindFragment:
		return s.fragmentStore.IncrementAccess(ctx, id, AccessBoost)
	case domain.KindKnowledge:
		return s.knowledgeStore.IncrementAccess(ctx, id, AccessBoost)
	default:
		return fmt.Errorf("%w: unknown record kind %q", ErrValidation, kind)
	}
}

// RecordBatchAccess fans out independent per-item access recordings and
// waits for all of them. Individual failures are logged and do not abort
// the batch; each item is independent and idempotent.
func (s *DecayService) RecordBatchAccess(ctx context.Context, items []AccessItem) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item AccessItem) {
			defer wg.Done()
			if err := s.RecordAccess(ctx, item.Kind, item.ID); err != nil {
				s.logger.Warn("failed to record access",
					zap.String("kind", string(item.Kind)),
					zap.String("id", item.ID.String()),
					zap.Error(err))
			}
		}(item)
	}
	wg.Wait()
}
