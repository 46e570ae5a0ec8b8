package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/store"
)

const (
	// ConsolidationBonus rewards multi-source agreement on top of the mean
	// source confidence.
	ConsolidationBonus = 0.1

	// DefaultPromoteConfidence is used when a promoted fragment carries no
	// confidence of its own.
	DefaultPromoteConfidence = 0.7

	// mergeDelimiter visibly separates source contents in merged records.
	mergeDelimiter = "\n\n---\n\n"

	titleMaxLength = 80

	defaultActor = "consolidation-engine"
)

// ConsolidateMetadata carries caller-supplied overrides for a merge or
// promotion. Zero values fall back to defaults derived from the primary
// fragment.
type ConsolidateMetadata struct {
	Title         string                `json:"title,omitempty"`
	KnowledgeType domain.KnowledgeType  `json:"knowledge_type,omitempty"`
	Importance    domain.ImportanceTier `json:"importance,omitempty"`
	Actor         string                `json:"actor,omitempty"`
	Reasoning     string                `json:"reasoning,omitempty"`
}

func (m ConsolidateMetadata) actor() string {
	if m.Actor != "" {
		return m.Actor
	}
	return defaultActor
}

// ExecutorService commits candidate groups: it merges fragment sets into
// knowledge records and promotes single fragments 1:1.
type ExecutorService struct {
	fragmentStore  domain.FragmentStore
	knowledgeStore domain.KnowledgeStore
	ledgerStore    domain.LedgerStore
	logger         *zap.Logger
}

func NewExecutorService(fs domain.FragmentStore, ks domain.KnowledgeStore, ls domain.LedgerStore, logger *zap.Logger) *ExecutorService {
	return &ExecutorService{
		fragmentStore:  fs,
		knowledgeStore: ks,
		ledgerStore:    ls,
		logger:         logger,
	}
}

// ConsolidateChunks merges the named fragments into one knowledge record.
//
// The three writes form a logical transaction with deliberate asymmetry:
// a failed record insert aborts before any fragment is touched, while a
// failed fragment-marking or log append is logged and not rolled back.
// An orphaned-but-valid knowledge record beats losing the merge.
func (s *ExecutorService) ConsolidateChunks(ctx context.Context, fragmentIDs []uuid.UUID, meta ConsolidateMetadata) (*domain.KnowledgeRecord, error) {
	if len(fragmentIDs) < 2 {
		return nil, fmt.Errorf("%w: consolidation requires at least 2 fragment ids, got %d", ErrValidation, len(fragmentIDs))
	}

	fragments, err := s.fragmentStore.GetByIDs(ctx, fragmentIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch fragments: %w", err)
	}
	if len(fragments) < 2 {
		return nil, fmt.Errorf("%w: only %d of %d fragments resolved", store.ErrNotFound, len(fragments), len(fragmentIDs))
	}

	// Highest confidence first; the primary supplies title, type and
	// embedding defaults.
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Confidence > fragments[j].Confidence
	})
	primary := fragments[0]

	var contents []string
	var total float32
	resolvedIDs := make([]uuid.UUID, 0, len(fragments))
	for _, f := range fragments {
		contents = append(contents, f.Content)
		total += f.Confidence
		resolvedIDs = append(resolvedIDs, f.ID)
	}

	confidence := total/float32(len(fragments)) + ConsolidationBonus
	if confidence > 1.0 {
		confidence = 1.0
	}

	knowledgeType := meta.KnowledgeType
	if knowledgeType == "" {
		knowledgeType = primary.KnowledgeType
	}

	title := meta.Title
	if title == "" {
		title = titleFromContent(primary.Content)
	}

	record := &domain.KnowledgeRecord{
		Title:             title,
		Content:           strings.Join(contents, mergeDelimiter),
		KnowledgeType:     knowledgeType,
		Importance:        meta.Importance,
		Confidence:        confidence,
		Embedding:         primary.Embedding,
		SourceFragmentIDs: resolvedIDs,
		Provenance: domain.Provenance{
			Actor:     meta.actor(),
			Reason:    meta.Reasoning,
			CreatedAt: time.Now(),
		},
	}

	if err := s.knowledgeStore.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create knowledge record: %w", err)
	}

	for _, id := range resolvedIDs {
		if err := s.fragmentStore.MarkConsolidated(ctx, id, record.ID); err != nil {
			s.logger.Warn("failed to mark fragment consolidated",
				zap.String("fragment_id", id.String()),
				zap.String("knowledge_id", record.ID.String()),
				zap.Error(err))
		}
	}

	s.appendLog(ctx, &domain.LedgerEntry{
		Action:           domain.ActionMerge,
		SourceIDs:        resolvedIDs,
		TargetID:         record.ID,
		Actor:            meta.actor(),
		Reasoning:        meta.Reasoning,
		ConfidenceBefore: primary.Confidence,
		ConfidenceAfter:  record.Confidence,
	})

	return record, nil
}

// PromoteChunk elevates exactly one fragment into a knowledge record.
func (s *ExecutorService) PromoteChunk(ctx context.Context, fragmentID uuid.UUID, knowledgeType domain.KnowledgeType, meta ConsolidateMetadata) (*domain.KnowledgeRecord, error) {
	fragment, err := s.fragmentStore.GetByID(ctx, fragmentID)
	if err != nil {
		return nil, fmt.Errorf("fetch fragment %s: %w", fragmentID, err)
	}

	confidence := fragment.Confidence
	if confidence == 0 {
		confidence = DefaultPromoteConfidence
	}

	if knowledgeType == "" {
		knowledgeType = fragment.KnowledgeType
	}

	title := meta.Title
	if title == "" {
		title = titleFromContent(fragment.Content)
	}

	record := &domain.KnowledgeRecord{
		Title:             title,
		Content:           fragment.Content,
		KnowledgeType:     knowledgeType,
		Importance:        meta.Importance,
		Confidence:        confidence,
		Embedding:         fragment.Embedding,
		SourceFragmentIDs: []uuid.UUID{fragment.ID},
		Provenance: domain.Provenance{
			Actor:     meta.actor(),
			Reason:    meta.Reasoning,
			CreatedAt: time.Now(),
		},
	}

	if err := s.knowledgeStore.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create knowledge record: %w", err)
	}

	if err := s.fragmentStore.MarkConsolidated(ctx, fragment.ID, record.ID); err != nil {
		s.logger.Warn("failed to mark fragment consolidated",
			zap.String("fragment_id", fragment.ID.String()),
			zap.String("knowledge_id", record.ID.String()),
			zap.Error(err))
	}

	s.appendLog(ctx, &domain.LedgerEntry{
		Action:           domain.ActionPromote,
		SourceIDs:        []uuid.UUID{fragment.ID},
		TargetID:         record.ID,
		Actor:            meta.actor(),
		Reasoning:        meta.Reasoning,
		ConfidenceBefore: fragment.Confidence,
		ConfidenceAfter:  record.Confidence,
	})

	return record, nil
}

func (s *ExecutorService) appendLog(ctx context.Context, entry *domain.LedgerEntry) {
	if err := s.ledgerStore.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append consolidation log entry",
			zap.String("action", string(entry.Action)),
			zap.String("target_id", entry.TargetID.String()),
			zap.Error(err))
	}
}

// titleFromContent derives a default title from the first line of the
// highest-confidence source.
func titleFromContent(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.IndexByte(content, '\n'); idx > 0 {
		content = content[:idx]
	}
	if len(content) > titleMaxLength {
		content = strings.TrimSpace(content[:titleMaxLength]) + "..."
	}
	return content
}
