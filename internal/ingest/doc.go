// Package ingest implements the reading ingestion pipeline: validate,
// persist, fan out.
//
// Two entry points exist. IngestSingle accepts one reading against a
// known mapping. IngestBulk accepts a device's batch, resolving every
// item against one snapshot of the device's mappings and persisting the
// accepted subset in one batched write.
//
// Rejection is data, not failure: a reading referencing an unknown
// mapping is reported as accepted=false with a reason, and a bulk
// request mixing accepted and rejected items is a normal outcome. The
// only hard errors are malformed requests (ErrValidation) and storage
// failures (ErrPersistence).
//
// Events are published strictly after the readings they announce are
// durably committed, and event or archive failures never affect the
// commit.
package ingest
