package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
)

func plannerFragment(content string) *domain.Fragment {
	return &domain.Fragment{
		ID:            uuid.New(),
		Content:       content,
		Confidence:    0.8,
		SourceType:    domain.SourceEmail,
		KnowledgeType: domain.KnowledgeTypeFact,
		Embedding:     []float32{0.1, 0.2, 0.3},
	}
}

func withScore(f *domain.Fragment, score float32) domain.FragmentWithScore {
	return domain.FragmentWithScore{Fragment: *f, Score: score}
}

func TestFindConsolidationCandidates_NonOverlappingGroups(t *testing.T) {
	fragments := newMockFragmentStore()
	locks := newMockRunLocker()
	svc := NewPlannerService(fragments, locks, zap.NewNop())

	a := plannerFragment("quarterly report draft sent")
	b := plannerFragment("quarterly report draft v2")
	c := plannerFragment("quarterly report final")
	d := plannerFragment("unrelated note about pricing")
	e := plannerFragment("pricing note follow-up")

	for _, f := range []*domain.Fragment{a, b, c, d, e} {
		fragments.add(f)
	}

	fragments.similar[a.ID] = []domain.FragmentWithScore{withScore(b, 0.95), withScore(c, 0.9)}
	// d's best matches overlap a's group, leaving too few free neighbors.
	fragments.similar[d.ID] = []domain.FragmentWithScore{withScore(b, 0.88), withScore(e, 0.86)}

	groups, err := svc.FindConsolidationCandidates(context.Background(), 10)
	if err != nil {
		t.Fatalf("FindConsolidationCandidates failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}

	group := groups[0]
	if group.PrimaryFragmentID != a.ID {
		t.Errorf("primary = %s, want %s", group.PrimaryFragmentID, a.ID)
	}
	if group.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", group.TotalCount)
	}

	// No fragment may appear in two groups.
	seen := map[uuid.UUID]bool{group.PrimaryFragmentID: true}
	for _, id := range group.RelatedFragmentIDs {
		if seen[id] {
			t.Errorf("fragment %s appears twice", id)
		}
		seen[id] = true
	}
}

func TestFindConsolidationCandidates_MinGroupSize(t *testing.T) {
	fragments := newMockFragmentStore()
	svc := NewPlannerService(fragments, newMockRunLocker(), zap.NewNop())

	a := plannerFragment("lonely fragment")
	b := plannerFragment("its single neighbor")
	fragments.add(a)
	fragments.add(b)
	fragments.similar[a.ID] = []domain.FragmentWithScore{withScore(b, 0.92)}

	groups, err := svc.FindConsolidationCandidates(context.Background(), 10)
	if err != nil {
		t.Fatalf("FindConsolidationCandidates failed: %v", err)
	}

	if len(groups) != 0 {
		t.Errorf("expected no groups below minimum size, got %d", len(groups))
	}
}

func TestFindConsolidationCandidates_Limit(t *testing.T) {
	fragments := newMockFragmentStore()
	svc := NewPlannerService(fragments, newMockRunLocker(), zap.NewNop())

	// Three disjoint clusters of three.
	for i := 0; i < 3; i++ {
		seed := plannerFragment("cluster seed")
		n1 := plannerFragment("neighbor one")
		n2 := plannerFragment("neighbor two")
		fragments.add(seed)
		fragments.add(n1)
		fragments.add(n2)
		fragments.similar[seed.ID] = []domain.FragmentWithScore{withScore(n1, 0.9), withScore(n2, 0.88)}
	}

	groups, err := svc.FindConsolidationCandidates(context.Background(), 2)
	if err != nil {
		t.Fatalf("FindConsolidationCandidates failed: %v", err)
	}

	if len(groups) != 2 {
		t.Errorf("expected limit of 2 groups, got %d", len(groups))
	}
}

func TestFindConsolidationCandidates_RunActive(t *testing.T) {
	locks := newMockRunLocker()
	locks.denied = true
	svc := NewPlannerService(newMockFragmentStore(), locks, zap.NewNop())

	_, err := svc.FindConsolidationCandidates(context.Background(), 10)
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}
}

func TestFindConsolidationCandidates_ReleasesLock(t *testing.T) {
	locks := newMockRunLocker()
	svc := NewPlannerService(newMockFragmentStore(), locks, zap.NewNop())

	if _, err := svc.FindConsolidationCandidates(context.Background(), 10); err != nil {
		t.Fatalf("FindConsolidationCandidates failed: %v", err)
	}

	if locks.held[consolidationLockName] {
		t.Error("consolidation lock still held after run")
	}
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := preview(long)
	if len(got) != previewLength+3 {
		t.Errorf("preview length = %d, want %d", len(got), previewLength+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("long preview should end with ellipsis")
	}

	short := "short content"
	if preview(short) != short {
		t.Errorf("short preview altered: %q", preview(short))
	}
}
