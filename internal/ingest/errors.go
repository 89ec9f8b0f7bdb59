package ingest

import "errors"

// Sentinel errors for pipeline operations.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, ingest.ErrValidation) {
//	    // respond 400
//	}
var (
	// ErrValidation is returned when a request is malformed before any
	// storage work happens (missing fields, non-finite values, empty
	// bulk payloads).
	ErrValidation = errors.New("ingest: validation failed")

	// ErrPersistence is returned when storage fails. Hard for single
	// operations; bulk operations isolate it per item where possible.
	ErrPersistence = errors.New("ingest: persistence failed")
)
