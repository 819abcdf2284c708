package store

import (
	"context"

	"github.com/solveiti/trgscout/internal/types"
)

// Store defines the persistence contract for the registry (C1) and ledger
// (C2). A single implementation (SQLiteStore) backs both; they are kept as
// one interface because §4.7 requires C1.upsert_outcome and C2.append to run
// in one write-transaction per store.
type Store interface {
	// SeedNew inserts any URLs not already present with defaults
	// (is_valid=true, is_automoto=nil, counts=0, created_at=now). Returns
	// the URLs that were actually inserted.
	SeedNew(ctx context.Context, urls []string) ([]string, error)

	// ListToScrape returns known store URLs ordered by updated_at ascending
	// (nulls/earliest first), truncated to limit if limit > 0.
	ListToScrape(ctx context.Context, limit int) ([]string, error)

	// IsEmpty reports whether the registry has no rows at all.
	IsEmpty(ctx context.Context) (bool, error)

	// NewestUpdatedAt returns the most recent updated_at across the
	// registry as stored text; hasRows is false and newest is empty if the
	// registry is empty.
	NewestUpdatedAt(ctx context.Context) (hasRows bool, newest string, err error)

	// UpsertOutcome persists a store visit's classification outcome into the
	// registry and appends the corresponding ledger row, in a single
	// transaction. It returns the new ledger row. If the outcome is not
	// valid (a failed visit), no ledger row is written (§9 open question 2);
	// the registry row is still touched per open question 1 (preserve
	// counts, flip is_valid).
	UpsertOutcome(ctx context.Context, url string, outcome types.Outcome) (*types.Snapshot, error)

	// GetStore returns the current registry row for a URL, or nil if unknown.
	GetStore(ctx context.Context, url string) (*types.Store, error)

	// ListAll returns every registry row ordered by url, for tabular export.
	ListAll(ctx context.Context) ([]types.Store, error)

	// Close closes the underlying database handle.
	Close() error
}
