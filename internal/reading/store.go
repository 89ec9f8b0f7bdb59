package reading

import (
	"context"
	"time"
)

// Store defines the interface for reading persistence operations.
type Store interface {
	// Insert persists a single reading and returns the stored row.
	// Returns ErrInvalidMapping if the mapping does not exist and
	// ErrInvalidValue if the value is not finite.
	Insert(ctx context.Context, r Reading) (*Reading, error)

	// InsertBatch persists readings using chunked multi-row inserts.
	// When a chunk fails it falls back to row-at-a-time inserts for
	// that chunk, so one bad row doesn't reject its neighbours. The
	// returned map is keyed by input index and holds the error for each
	// row that could not be persisted; an empty map means all rows
	// committed.
	InsertBatch(ctx context.Context, readings []Reading) (map[int]error, error)

	// ListByDevice returns the device's readings with sensor details,
	// newest first, up to limit rows (0 means no limit).
	ListByDevice(ctx context.Context, deviceID int64, limit int) ([]Detail, error)

	// LatestByDevice returns the most recent reading per mapping for
	// the device, with sensor details. Mappings with no readings are
	// omitted.
	LatestByDevice(ctx context.Context, deviceID int64) ([]Detail, error)

	// DeleteByMapping removes all readings for a mapping and reports
	// how many rows were removed.
	DeleteByMapping(ctx context.Context, mappingID int64) (int64, error)

	// PruneOlderThan removes readings older than the given age and
	// reports how many rows were removed. Used by the retention sweep.
	PruneOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}
