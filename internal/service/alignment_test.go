package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
)

func alignmentFixture() (*AlignmentService, *mockFragmentStore, *mockEdgeStore, *mockRunLocker) {
	fragments := newMockFragmentStore()
	edges := newMockEdgeStore()
	locks := newMockRunLocker()
	svc := NewAlignmentService(fragments, edges, locks, zap.NewNop())
	return svc, fragments, edges, locks
}

func alignFragment(source domain.SourceType, ktype domain.KnowledgeType) *domain.Fragment {
	return &domain.Fragment{
		ID:            uuid.New(),
		Content:       fmt.Sprintf("%s %s fragment", source, ktype),
		Confidence:    0.8,
		SourceType:    source,
		KnowledgeType: ktype,
		Embedding:     []float32{0.1, 0.2},
	}
}

func TestRunAlignment_CrossSourceOnly(t *testing.T) {
	svc, fragments, edges, _ := alignmentFixture()

	meeting := alignFragment(domain.SourceCalendar, domain.KnowledgeTypeMeeting)
	action := alignFragment(domain.SourceEmail, domain.KnowledgeTypeAction)
	sameSource := alignFragment(domain.SourceCalendar, domain.KnowledgeTypeMeeting)

	fragments.add(meeting)
	fragments.similar[meeting.ID] = []domain.FragmentWithScore{
		{Fragment: *action, Score: 0.82},
		{Fragment: *sameSource, Score: 0.91}, // same source and type, must be skipped
	}

	result, err := svc.RunAlignment(context.Background(), 24)
	if err != nil {
		t.Fatalf("RunAlignment failed: %v", err)
	}

	if result.Processed != 1 {
		t.Errorf("Processed = %d, want 1", result.Processed)
	}
	if result.EdgesCreated != 1 {
		t.Fatalf("EdgesCreated = %d, want 1", result.EdgesCreated)
	}

	edge := edges.edges[0]
	if edge.SourceID != meeting.ID || edge.TargetID != action.ID {
		t.Errorf("edge %s -> %s, want %s -> %s", edge.SourceID, edge.TargetID, meeting.ID, action.ID)
	}
	if edge.EdgeType != domain.EdgeDerivedFrom {
		t.Errorf("edge type = %s, want %s", edge.EdgeType, domain.EdgeDerivedFrom)
	}
	if edge.Strength != 0.82 {
		t.Errorf("strength = %v, want similarity score 0.82", edge.Strength)
	}
}

func TestRunAlignment_EdgeBudget(t *testing.T) {
	svc, fragments, _, _ := alignmentFixture()

	// 12 fragments with 5 cross-source neighbors each would create 60
	// edges without the cap.
	for i := 0; i < 12; i++ {
		f := alignFragment(domain.SourceEmail, domain.KnowledgeTypeFact)
		fragments.add(f)

		var neighbors []domain.FragmentWithScore
		for j := 0; j < 5; j++ {
			n := alignFragment(domain.SourceChat, domain.KnowledgeTypeInsight)
			neighbors = append(neighbors, domain.FragmentWithScore{Fragment: *n, Score: 0.8})
		}
		fragments.similar[f.ID] = neighbors
	}

	result, err := svc.RunAlignment(context.Background(), 24)
	if err != nil {
		t.Fatalf("RunAlignment failed: %v", err)
	}

	if result.EdgesCreated != MaxEdgesPerRun {
		t.Errorf("EdgesCreated = %d, want cap %d", result.EdgesCreated, MaxEdgesPerRun)
	}
}

func TestRunAlignment_DuplicateEdgesSkipped(t *testing.T) {
	svc, fragments, edges, _ := alignmentFixture()

	f := alignFragment(domain.SourceEmail, domain.KnowledgeTypeFact)
	n := alignFragment(domain.SourceChat, domain.KnowledgeTypeInsight)
	fragments.add(f)
	fragments.similar[f.ID] = []domain.FragmentWithScore{{Fragment: *n, Score: 0.8}}

	// A previous run already created this edge.
	edges.existing[edgeKey{f.ID, n.ID, domain.InferEdgeType(f.KnowledgeType, n.KnowledgeType)}] = true

	result, err := svc.RunAlignment(context.Background(), 24)
	if err != nil {
		t.Fatalf("RunAlignment failed: %v", err)
	}

	if result.EdgesCreated != 0 {
		t.Errorf("EdgesCreated = %d, want 0 for duplicate", result.EdgesCreated)
	}
	if len(edges.edges) != 0 {
		t.Errorf("edge store grew by %d on duplicate", len(edges.edges))
	}
}

func TestRunAlignment_RunActive(t *testing.T) {
	svc, _, _, locks := alignmentFixture()
	locks.denied = true

	_, err := svc.RunAlignment(context.Background(), 24)
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}
}

func TestRunAlignment_ReleasesLock(t *testing.T) {
	svc, _, _, locks := alignmentFixture()

	if _, err := svc.RunAlignment(context.Background(), 24); err != nil {
		t.Fatalf("RunAlignment failed: %v", err)
	}
	if locks.held[alignmentLockName] {
		t.Error("alignment lock still held after run")
	}
}

func TestRunAlignment_SkipsFragmentsWithoutEmbedding(t *testing.T) {
	svc, fragments, _, _ := alignmentFixture()

	f := alignFragment(domain.SourceEmail, domain.KnowledgeTypeFact)
	f.Embedding = nil
	fragments.add(f)

	result, err := svc.RunAlignment(context.Background(), 24)
	if err != nil {
		t.Fatalf("RunAlignment failed: %v", err)
	}

	if result.Processed != 1 || result.EdgesCreated != 0 {
		t.Errorf("processed=%d edges=%d, want 1/0", result.Processed, result.EdgesCreated)
	}
}
