package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
)

// LedgerService maintains knowledge validation counters and the append-only
// audit trail behind them. Unlike consolidation, a failed log append here is
// returned to the caller: the counter moved but the trail has a gap, and the
// caller should know.
type LedgerService struct {
	knowledgeStore domain.KnowledgeStore
	ledgerStore    domain.LedgerStore
	logger         *zap.Logger
}

func NewLedgerService(ks domain.KnowledgeStore, ls domain.LedgerStore, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		knowledgeStore: ks,
		ledgerStore:    ls,
		logger:         logger,
	}
}

// StrengthenKnowledge records one piece of supporting evidence.
func (s *LedgerService) StrengthenKnowledge(ctx context.Context, id uuid.UUID, evidence string) error {
	record, err := s.knowledgeStore.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch knowledge %s: %w", id, err)
	}

	if err := s.knowledgeStore.IncrementValidation(ctx, id); err != nil {
		return fmt.Errorf("increment validation count: %w", err)
	}

	if err := s.ledgerStore.Append(ctx, &domain.LedgerEntry{
		Action:           domain.ActionStrengthen,
		SourceIDs:        []uuid.UUID{id},
		TargetID:         id,
		Actor:            defaultActor,
		Reasoning:        evidence,
		ConfidenceBefore: record.Confidence,
		ConfidenceAfter:  record.Confidence,
	}); err != nil {
		return fmt.Errorf("append strengthen entry: %w", err)
	}

	s.logger.Debug("knowledge strengthened", zap.String("knowledge_id", id.String()))
	return nil
}

// ContradictKnowledge records one piece of conflicting evidence.
func (s *LedgerService) ContradictKnowledge(ctx context.Context, id uuid.UUID, evidence string) error {
	record, err := s.knowledgeStore.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch knowledge %s: %w", id, err)
	}

	if err := s.knowledgeStore.IncrementContradiction(ctx, id); err != nil {
		return fmt.Errorf("increment contradiction count: %w", err)
	}

	if err := s.ledgerStore.Append(ctx, &domain.LedgerEntry{
		Action:           domain.ActionContradict,
		SourceIDs:        []uuid.UUID{id},
		TargetID:         id,
		Actor:            defaultActor,
		Reasoning:        evidence,
		ConfidenceBefore: record.Confidence,
		ConfidenceAfter:  record.Confidence,
	}); err != nil {
		return fmt.Errorf("append contradict entry: %w", err)
	}

	s.logger.Debug("knowledge contradicted", zap.String("knowledge_id", id.String()))
	return nil
}

// SupersedeKnowledge points an obsolete record at its replacement. Superseded
// records stay readable but drop out of active pools.
func (s *LedgerService) SupersedeKnowledge(ctx context.Context, oldID, newID uuid.UUID, reasoning string) error {
	old, err := s.knowledgeStore.GetByID(ctx, oldID)
	if err != nil {
		return fmt.Errorf("fetch superseded knowledge %s: %w", oldID, err)
	}
	replacement, err := s.knowledgeStore.GetByID(ctx, newID)
	if err != nil {
		return fmt.Errorf("fetch superseding knowledge %s: %w", newID, err)
	}

	if err := s.knowledgeStore.SetSupersededBy(ctx, oldID, newID); err != nil {
		return fmt.Errorf("set superseded_by: %w", err)
	}

	if err := s.ledgerStore.Append(ctx, &domain.LedgerEntry{
		Action:           domain.ActionSupersede,
		SourceIDs:        []uuid.UUID{oldID},
		TargetID:         newID,
		Actor:            defaultActor,
		Reasoning:        reasoning,
		ConfidenceBefore: old.Confidence,
		ConfidenceAfter:  replacement.Confidence,
	}); err != nil {
		return fmt.Errorf("append supersede entry: %w", err)
	}

	s.logger.Info("knowledge superseded",
		zap.String("old_id", oldID.String()),
		zap.String("new_id", newID.String()))
	return nil
}

// GetAuditLog returns the newest-first ledger entries targeting one record.
func (s *LedgerService) GetAuditLog(ctx context.Context, targetID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	return s.ledgerStore.ListByTarget(ctx, targetID, limit)
}
