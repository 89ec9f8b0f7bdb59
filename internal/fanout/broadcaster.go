package fanout

import (
	"encoding/json"
	"fmt"
)

// Event names carried alongside topics.
const (
	// EventSensorUpdate announces one committed reading on a mapping topic.
	EventSensorUpdate = "sensor-update"

	// EventSensorsUpdate announces a bulk ingestion outcome on a device topic.
	EventSensorsUpdate = "sensors-update"

	// EventDeviceCreated announces a newly registered device.
	EventDeviceCreated = "device-created"
)

// DeviceSensorTopic returns the per-mapping topic single readings are
// published on.
func DeviceSensorTopic(mappingID int64) string {
	return fmt.Sprintf("device-sensor-%d", mappingID)
}

// DeviceTopic returns the per-device topic bulk results are published on.
func DeviceTopic(deviceID int64) string {
	return fmt.Sprintf("device-%d", deviceID)
}

// Transport delivers an encoded event to one class of consumer.
//
// Implementations must not retry internally on failure; the broadcaster
// treats a returned error as a dropped delivery and moves on.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string

	// Publish delivers one event. The payload is JSON-encoded.
	Publish(topic, event string, payload []byte) error
}

// Logger is the logging surface the broadcaster needs.
// Compatible with logging.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// Broadcaster fans events out to all configured transports.
//
// Safe for concurrent use as long as the transports are.
type Broadcaster struct {
	transports []Transport
	logger     Logger
}

// NewBroadcaster creates a broadcaster over the given transports.
// A broadcaster with no transports is valid and drops everything.
func NewBroadcaster(logger Logger, transports ...Transport) *Broadcaster {
	return &Broadcaster{
		transports: transports,
		logger:     logger,
	}
}

// Publish encodes the payload and delivers it to every transport.
//
// Callers invoke this only after the state being announced is durably
// committed. Failures are logged per transport and never propagated:
// a consumer missing an event re-reads current state through the API.
func (b *Broadcaster) Publish(topic, event string, payload interface{}) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("dropping event with unencodable payload",
			"topic", topic,
			"event", event,
			"error", err,
		)
		return
	}

	for _, transport := range b.transports {
		if err := transport.Publish(topic, event, encoded); err != nil {
			b.logger.Warn("event delivery failed",
				"transport", transport.Name(),
				"topic", topic,
				"event", event,
				"error", err,
			)
		}
	}
}
