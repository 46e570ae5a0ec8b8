package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/store"
)

type mockFragmentStore struct {
	mu        sync.Mutex
	fragments map[uuid.UUID]*domain.Fragment
	recent    []domain.Fragment
	similar   map[uuid.UUID][]domain.FragmentWithScore
	marked    map[uuid.UUID]uuid.UUID
	accessed  map[uuid.UUID]int

	decayUpdated int64
	archivedRows int64
	decayCalls   int
	archiveCalls int

	decayErr   error
	archiveErr error
	markErr    error
	similarErr error
	accessErr  error

	distribution *domain.DecayDistribution
}

func newMockFragmentStore() *mockFragmentStore {
	return &mockFragmentStore{
		fragments: make(map[uuid.UUID]*domain.Fragment),
		similar:   make(map[uuid.UUID][]domain.FragmentWithScore),
		marked:    make(map[uuid.UUID]uuid.UUID),
		accessed:  make(map[uuid.UUID]int),
	}
}

func (m *mockFragmentStore) add(f *domain.Fragment) {
	m.fragments[f.ID] = f
	m.recent = append(m.recent, *f)
}

func (m *mockFragmentStore) Create(ctx context.Context, f *domain.Fragment) error {
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	m.fragments[f.ID] = f
	return nil
}

func (m *mockFragmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fragment, error) {
	f, ok := m.fragments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f, nil
}

func (m *mockFragmentStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Fragment, error) {
	var out []domain.Fragment
	for _, id := range ids {
		if f, ok := m.fragments[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFragmentStore) GetRecentUnconsolidated(ctx context.Context, limit int) ([]domain.Fragment, error) {
	if len(m.recent) > limit {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func (m *mockFragmentStore) GetCreatedSince(ctx context.Context, since time.Time) ([]domain.Fragment, error) {
	return m.recent, nil
}

func (m *mockFragmentStore) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int, excludeID uuid.UUID) ([]domain.FragmentWithScore, error) {
	if m.similarErr != nil {
		return nil, m.similarErr
	}
	neighbors := m.similar[excludeID]
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

func (m *mockFragmentStore) MarkConsolidated(ctx context.Context, id, targetID uuid.UUID) error {
	if m.markErr != nil {
		return m.markErr
	}
	if _, ok := m.fragments[id]; !ok {
		return store.ErrNotFound
	}
	m.marked[id] = targetID
	return nil
}

func (m *mockFragmentStore) ApplyDecay(ctx context.Context, rate float64, floor float32) (int64, error) {
	m.decayCalls++
	if m.decayErr != nil {
		return 0, m.decayErr
	}
	return m.decayUpdated, nil
}

func (m *mockFragmentStore) ArchiveBelow(ctx context.Context, threshold float32) (int64, error) {
	m.archiveCalls++
	if m.archiveErr != nil {
		return 0, m.archiveErr
	}
	return m.archivedRows, nil
}

func (m *mockFragmentStore) IncrementAccess(ctx context.Context, id uuid.UUID, boost float32) error {
	if m.accessErr != nil {
		return m.accessErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fragments[id]; !ok {
		return store.ErrNotFound
	}
	m.accessed[id]++
	return nil
}

func (m *mockFragmentStore) Count(ctx context.Context) (int, error) {
	return len(m.fragments), nil
}

func (m *mockFragmentStore) DecayDistribution(ctx context.Context) (*domain.DecayDistribution, error) {
	if m.distribution != nil {
		return m.distribution, nil
	}
	return &domain.DecayDistribution{}, nil
}

type mockKnowledgeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.KnowledgeRecord

	validations    map[uuid.UUID]int
	contradictions map[uuid.UUID]int
	superseded     map[uuid.UUID]uuid.UUID
	accessed       map[uuid.UUID]int

	decayUpdated int64
	archivedRows int64
	decayCalls   int
	archiveCalls int

	createErr error
	decayErr  error
}

func newMockKnowledgeStore() *mockKnowledgeStore {
	return &mockKnowledgeStore{
		records:        make(map[uuid.UUID]*domain.KnowledgeRecord),
		validations:    make(map[uuid.UUID]int),
		contradictions: make(map[uuid.UUID]int),
		superseded:     make(map[uuid.UUID]uuid.UUID),
		accessed:       make(map[uuid.UUID]int),
	}
}

func (m *mockKnowledgeStore) Create(ctx context.Context, k *domain.KnowledgeRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	k.ID = uuid.New()
	now := time.Now()
	k.CreatedAt = now
	k.UpdatedAt = now
	m.records[k.ID] = k
	return nil
}

func (m *mockKnowledgeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeRecord, error) {
	k, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return k, nil
}

func (m *mockKnowledgeStore) ApplyDecay(ctx context.Context, rate float64, floor float32) (int64, error) {
	m.decayCalls++
	if m.decayErr != nil {
		return 0, m.decayErr
	}
	return m.decayUpdated, nil
}

func (m *mockKnowledgeStore) ArchiveBelow(ctx context.Context, threshold float32) (int64, error) {
	m.archiveCalls++
	return m.archivedRows, nil
}

func (m *mockKnowledgeStore) IncrementAccess(ctx context.Context, id uuid.UUID, boost float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return store.ErrNotFound
	}
	m.accessed[id]++
	return nil
}

func (m *mockKnowledgeStore) IncrementValidation(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return store.ErrNotFound
	}
	m.validations[id]++
	m.records[id].ValidationCount++
	return nil
}

func (m *mockKnowledgeStore) IncrementContradiction(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return store.ErrNotFound
	}
	m.contradictions[id]++
	m.records[id].ContradictionCount++
	return nil
}

func (m *mockKnowledgeStore) SetSupersededBy(ctx context.Context, id, successorID uuid.UUID) error {
	k, ok := m.records[id]
	if !ok {
		return store.ErrNotFound
	}
	m.superseded[id] = successorID
	k.SupersededBy = &successorID
	return nil
}

func (m *mockKnowledgeStore) Count(ctx context.Context) (int, error) {
	return len(m.records), nil
}

type mockLedgerStore struct {
	entries   []domain.LedgerEntry
	appendErr error
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{}
}

func (m *mockLedgerStore) Append(ctx context.Context, e *domain.LedgerEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockLedgerStore) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLedgerStore) CountByActions(ctx context.Context, actions ...domain.LedgerAction) (int, error) {
	count := 0
	for _, e := range m.entries {
		for _, a := range actions {
			if e.Action == a {
				count++
			}
		}
	}
	return count, nil
}

func (m *mockLedgerStore) byAction(action domain.LedgerAction) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type edgeKey struct {
	source, target uuid.UUID
	edgeType       domain.EdgeType
}

type mockEdgeStore struct {
	edges     []domain.KnowledgeEdge
	existing  map[edgeKey]bool
	createErr error
}

func newMockEdgeStore() *mockEdgeStore {
	return &mockEdgeStore{existing: make(map[edgeKey]bool)}
}

func (m *mockEdgeStore) Create(ctx context.Context, e *domain.KnowledgeEdge) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := edgeKey{e.SourceID, e.TargetID, e.EdgeType}
	if m.existing[key] {
		return store.ErrConflict
	}
	m.existing[key] = true
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.edges = append(m.edges, *e)
	return nil
}

func (m *mockEdgeStore) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.KnowledgeEdge, error) {
	var out []domain.KnowledgeEdge
	for _, e := range m.edges {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockRunLocker struct {
	mu         sync.Mutex
	held       map[string]bool
	denied     bool
	acquireErr error
}

func newMockRunLocker() *mockRunLocker {
	return &mockRunLocker{held: make(map[string]bool)}
}

func (m *mockRunLocker) TryAcquire(ctx context.Context, name string) (bool, error) {
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied || m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *mockRunLocker) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}
