package mqtt

import "fmt"

// Topic prefixes for the Telemetry Core MQTT hierarchy.
//
// All topics live under a single root: telemetry/{category}/...
const (
	// TopicPrefix is the root for all Telemetry Core topics.
	TopicPrefix = "telemetry"

	// TopicPrefixEvent is the base for mirrored fan-out events.
	TopicPrefixEvent = "telemetry/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "telemetry/system"

	// TopicPrefixIngest is the base for inbound device readings.
	TopicPrefixIngest = "telemetry/ingest"
)

// Topics provides builders for Telemetry Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	eventTopic := topics.Event("device-sensor-42", "sensor-update")
//	// Returns: "telemetry/event/device-sensor-42/sensor-update"
type Topics struct{}

// Event returns the topic a fan-out event is mirrored to.
//
// Example: telemetry/event/device-7/sensors-update
func (Topics) Event(channel, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvent, channel, event)
}

// SystemStatus returns the system status topic used for LWT and
// online/offline announcements.
//
// Example: telemetry/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Ingest returns the topic a device publishes its readings to.
//
// Example: telemetry/ingest/7
func (Topics) Ingest(deviceID int64) string {
	return fmt.Sprintf("%s/%d", TopicPrefixIngest, deviceID)
}

// AllIngest returns a pattern matching every device's ingest topic.
//
// Pattern: telemetry/ingest/+
func (Topics) AllIngest() string {
	return fmt.Sprintf("%s/+", TopicPrefixIngest)
}
