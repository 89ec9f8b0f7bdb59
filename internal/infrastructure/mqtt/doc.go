// Package mqtt provides MQTT client connectivity for Telemetry Core.
//
// This package manages:
//   - Broker connection with auto-reconnect and exponential backoff
//   - Last Will and Testament (LWT) for offline detection
//   - Publish/subscribe with QoS support
//   - Subscription restoration after reconnection
//
// Telemetry Core uses MQTT as an optional mirror of the event fan-out:
// every event broadcast to WebSocket subscribers is also published under
// telemetry/event/{channel}/{event} so external consumers can follow the
// stream without holding a WebSocket connection.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Mirror an event
//	topic := mqtt.Topics{}.Event("device-7", "sensors-update")
//	err = client.Publish(topic, payload, 1, false)
//
// Thread Safety: all methods are safe for concurrent use.
package mqtt
