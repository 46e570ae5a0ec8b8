package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunLockStore provides run-level mutual exclusion via Postgres advisory
// locks. Consolidation and alignment runs assume exclusive ownership of
// their candidate scan; overlapping runs would double-group fragments and
// burn edge budget on duplicates.
//
// Advisory locks are session-scoped, so the connection that acquired a
// lock is pinned until Release.
type RunLockStore struct {
	db *pgxpool.Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

func NewRunLockStore(db *pgxpool.Pool) *RunLockStore {
	return &RunLockStore{
		db:   db,
		held: make(map[string]*pgxpool.Conn),
	}
}

// lockKey maps a subsystem name onto a stable 64-bit advisory lock key.
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (s *RunLockStore) TryAcquire(ctx context.Context, name string) (bool, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for run lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx,
		`SELECT pg_try_advisory_lock($1)`, lockKey(name)).Scan(&acquired); err != nil {
		conn.Release()
		return false, err
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	s.mu.Lock()
	s.held[name] = conn
	s.mu.Unlock()
	return true, nil
}

func (s *RunLockStore) Release(ctx context.Context, name string) error {
	s.mu.Lock()
	conn, ok := s.held[name]
	delete(s.held, name)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Release()

	_, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, lockKey(name))
	return err
}
