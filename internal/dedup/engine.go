package dedup

import (
	"context"
	"errors"
	"fmt"
)

// Outcome reasons reported in Result.Reason.
const (
	// ReasonNew indicates the candidate was inserted.
	ReasonNew = "new"

	// ReasonPreExisted indicates a record with the same identity already
	// existed; the existing record is returned instead.
	ReasonPreExisted = "pre-existed"
)

// Store is the persistence contract the engine operates over.
//
// Implementations define what "identity" means for their record type
// (e.g. a sensor's type, a mapping's device/sensor pair) and must map
// storage-level uniqueness violations on Insert to ErrDuplicate.
type Store[T any] interface {
	// FindByIdentity returns the stored record sharing the candidate's
	// identity, if one exists.
	FindByIdentity(ctx context.Context, candidate T) (T, bool, error)

	// FindByIdentityBatch resolves many candidates in one lookup.
	// The returned map is keyed by candidate index; absent indices had
	// no existing record.
	FindByIdentityBatch(ctx context.Context, candidates []T) (map[int]T, error)

	// Insert persists the candidate and returns the stored record
	// (with generated ID and timestamps). Uniqueness violations are
	// reported as ErrDuplicate.
	Insert(ctx context.Context, candidate T) (T, error)
}

// Result describes the outcome for one candidate.
type Result[T any] struct {
	// Record is the stored record: freshly inserted or pre-existing.
	// Zero-valued when Err is set.
	Record T

	// Added is true when the candidate was inserted.
	Added bool

	// Reason is ReasonNew, ReasonPreExisted, or a failure description.
	Reason string

	// Err is the per-candidate failure, if any. Batch operations record
	// it here instead of aborting the whole batch.
	Err error
}

// Engine implements idempotent create-or-skip over a Store.
//
// The zero value is not usable; construct with New or NewAppendOnly.
type Engine[T any] struct {
	store      Store[T]
	appendOnly bool
}

// New creates an engine that deduplicates on the store's identity.
func New[T any](store Store[T]) *Engine[T] {
	return &Engine[T]{store: store}
}

// NewAppendOnly creates an engine that always inserts. Used for record
// kinds with no identity, where every candidate is a distinct record.
func NewAppendOnly[T any](store Store[T]) *Engine[T] {
	return &Engine[T]{store: store, appendOnly: true}
}

// CreateOrSkip inserts the candidate unless a record with the same
// identity already exists.
//
// The check-then-insert sequence holds no lock, so a concurrent insert
// of the same identity can land between the check and the insert. The
// store reports that as ErrDuplicate and the engine re-reads, reporting
// ReasonPreExisted. Both racing callers end up observing the same
// stored record.
//
// Returns:
//   - Result[T]: outcome with the stored record and reason
//   - error: hard failure (storage unavailable, re-read miss)
func (e *Engine[T]) CreateOrSkip(ctx context.Context, candidate T) (Result[T], error) {
	if !e.appendOnly {
		existing, found, err := e.store.FindByIdentity(ctx, candidate)
		if err != nil {
			return failure[T](fmt.Errorf("checking for existing record: %w", err))
		}
		if found {
			return Result[T]{Record: existing, Added: false, Reason: ReasonPreExisted}, nil
		}
	}

	return e.insert(ctx, candidate)
}

// CreateOrSkipMany applies create-or-skip to every candidate.
//
// Existing records are resolved with a single batched lookup; only the
// misses are inserted. Per-candidate insert failures are isolated: the
// failing candidate's Result carries the error and the rest of the
// batch proceeds. Results preserve candidate order.
//
// Returns:
//   - []Result[T]: one result per candidate, in input order
//   - error: hard failure of the batched lookup only
func (e *Engine[T]) CreateOrSkipMany(ctx context.Context, candidates []T) ([]Result[T], error) {
	results := make([]Result[T], len(candidates))
	if len(candidates) == 0 {
		return results, nil
	}

	existing := map[int]T{}
	if !e.appendOnly {
		var err error
		existing, err = e.store.FindByIdentityBatch(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("batch identity lookup: %w", err)
		}
	}

	for i, candidate := range candidates {
		if record, found := existing[i]; found {
			results[i] = Result[T]{Record: record, Added: false, Reason: ReasonPreExisted}
			continue
		}

		result, err := e.insert(ctx, candidate)
		if err != nil {
			// Isolated: this candidate failed, the rest continue.
			results[i] = result
			continue
		}
		results[i] = result
	}

	return results, nil
}

// insert persists a candidate, resolving uniqueness conflicts by
// re-reading the winner.
func (e *Engine[T]) insert(ctx context.Context, candidate T) (Result[T], error) {
	stored, err := e.store.Insert(ctx, candidate)
	if err == nil {
		return Result[T]{Record: stored, Added: true, Reason: ReasonNew}, nil
	}

	if !isDuplicate(err) || e.appendOnly {
		return failure[T](fmt.Errorf("inserting record: %w", err))
	}

	// Lost a create race: some concurrent caller inserted the same
	// identity first. Re-read and report theirs.
	existing, found, findErr := e.store.FindByIdentity(ctx, candidate)
	if findErr != nil {
		return failure[T](fmt.Errorf("re-reading after duplicate insert: %w", findErr))
	}
	if !found {
		return failure[T](fmt.Errorf("re-reading after duplicate insert: %w", ErrNotFound))
	}

	return Result[T]{Record: existing, Added: false, Reason: ReasonPreExisted}, nil
}

func failure[T any](err error) (Result[T], error) {
	return Result[T]{Reason: err.Error(), Err: err}, err
}

func isDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
