package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/tithe/internal/common"
)

// DefaultRunLogLimit caps the classification run log.
const DefaultRunLogLimit = 50

// Persister stores ledger snapshots as an opaque value. Load returns
// common.ErrNotFound when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Store owns the current snapshot. Every mutation builds a new snapshot from
// a clone, persists it and then swaps it in, so readers never observe a
// partial write.
type Store struct {
	persister   Persister
	snap        *Snapshot
	now         func() time.Time
	runLogLimit int
	mu          sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRunLogLimit sets how many run log entries are retained.
func WithRunLogLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.runLogLimit = n
		}
	}
}

// NewStore wraps snap. A nil persister keeps the ledger in memory only.
func NewStore(snap *Snapshot, persister Persister, opts ...Option) *Store {
	if snap == nil {
		snap = NewSnapshot("")
	}
	s := &Store{
		persister:   persister,
		snap:        snap,
		now:         time.Now,
		runLogLimit: DefaultRunLogLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the ledger from persister, starting an empty ledger in
// baseCurrency when none exists.
func Open(ctx context.Context, persister Persister, baseCurrency string, opts ...Option) (*Store, error) {
	snap, err := persister.Load(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
		snap = NewSnapshot(baseCurrency)
	case err != nil:
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return NewStore(snap, persister, opts...), nil
}

// Snapshot returns a copy of the current ledger.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// current returns the published snapshot for read-only use.
func (s *Store) current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Update applies fn to a clone of the ledger and commits the result. If fn
// or persistence fails the current ledger is left untouched.
func (s *Store) Update(ctx context.Context, fn func(next *Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	if err := fn(next); err != nil {
		return err
	}
	return s.commitLocked(ctx, next)
}

func (s *Store) commitLocked(ctx context.Context, next *Snapshot) error {
	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to persist ledger: %w", err)
		}
	}
	s.snap = next
	return nil
}

// errValidation aborts an Update whose input failed validation.
var errValidation = errors.New("validation failed")
