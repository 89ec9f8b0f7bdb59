// Package api implements the HTTP REST API and WebSocket server for
// Telemetry Core.
//
// This package provides:
//   - REST endpoints for device, sensor, and mapping management
//   - Reading ingestion endpoints (single and per-device bulk)
//   - WebSocket hub for real-time reading broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits between reading producers (device firmware, edge
// collectors) and the topology and reading stores. Ingestion flows
// through the pipeline in internal/ingest, which validates against the
// topology, persists, and only then fans events out. The WebSocket hub
// is one fan-out transport among several; it delivers committed
// readings to clients subscribed to per-mapping and per-device
// channels.
//
// # Graceful Degradation
//
// The server operates without MQTT or InfluxDB configured. Ingestion
// and WebSocket delivery work standalone; the optional transports just
// widen the audience.
package api
