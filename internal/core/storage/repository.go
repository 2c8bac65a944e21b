package storage

import "context"

// CounterStore is the durable keyed-counter persistence for the aggregate
// keyword mapping. One logical table: keyword -> occurrence count.
//
// The store is owned exclusively by the consumer for the lifetime of one
// process run. No decrement or delete operation is exposed; counts are
// monotonically non-decreasing within a run.
type CounterStore interface {
	// Reset drops all existing counter state, leaving an empty keyed table.
	// Called once at startup (fresh epoch per run). Idempotent.
	Reset(ctx context.Context) error

	// Increment atomically inserts the keyword with count 1 on first sight,
	// or adds 1 to its existing count. Insert-or-update semantics: no two
	// increments for the same keyword are ever lost.
	Increment(ctx context.Context, keyword string) error

	// Get returns the current count for a keyword, 0 if unseen.
	// Read path for diagnostics and tests.
	Get(ctx context.Context, keyword string) (int64, error)

	// GetAll returns the full keyword -> count mapping.
	GetAll(ctx context.Context) (map[string]int64, error)
}
