// Package fanout delivers post-commit events to connected consumers.
//
// The Broadcaster addresses events to topics: "device-sensor-<id>" for a
// single mapping's readings, "device-<id>" for a device's bulk results.
// Transports (WebSocket hub, optional MQTT mirror) are injected at
// construction; there is no process-global broadcaster.
//
// Delivery is best-effort and at-most-once. Publish is called only after
// a durable commit, and a failing transport is logged, never retried
// synchronously, and never unwinds the commit. Dispatch is synchronous
// per transport, so each transport observes a topic's events in publish
// order.
package fanout
