// Package reading provides append-only persistence for sensor readings.
//
// Readings are recorded against device-sensor mappings and carry no
// uniqueness constraint: two identical consecutive observations from the
// same channel are both legitimate data. Batch writes use chunked
// multi-row INSERTs so bulk ingestion costs one round trip per chunk
// rather than one per reading.
package reading
