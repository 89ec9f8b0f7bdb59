package dedup

import "errors"

// Sentinel errors for dedup operations.
var (
	// ErrDuplicate is returned by Store implementations when an insert
	// violates the identity uniqueness constraint. The engine treats it
	// as "this record pre-existed", never as a failure.
	ErrDuplicate = errors.New("dedup: duplicate record")

	// ErrNotFound is returned by Store implementations when a re-read
	// after a duplicate insert finds nothing. This indicates the record
	// was deleted between the conflicting insert and the re-read.
	ErrNotFound = errors.New("dedup: record not found")
)
