package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/eqindex/internal/contracts"
)

// Store is the PostgreSQL implementation of contracts.VersionedStore.
// Composition, performance and change rows are only ever inserted; every
// append call is one transaction stamped with one write-time and run id.
// ⭐ SSOT: 인덱스 이력 저장소는 여기서만
type Store struct {
	pool     *pgxpool.Pool
	clock    *VersionClock
	newRunID func() string
}

var (
	_ contracts.VersionedStore = (*Store)(nil)
	_ contracts.QueryRunner    = (*Store)(nil)
)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the wall clock used for write-times
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock = NewVersionClock(now)
	}
}

// WithRunIDs overrides run id generation
func WithRunIDs(fn func() string) Option {
	return func(s *Store) {
		s.newRunID = fn
	}
}

// New creates a Store over an open pool
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:     pool,
		clock:    NewVersionClock(nil),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nextBatch stamps a new append batch
func (s *Store) nextBatch(rows int) contracts.WriteBatch {
	return contracts.WriteBatch{
		RunID:     s.newRunID(),
		WriteTime: s.clock.Next(),
		Rows:      rows,
	}
}
