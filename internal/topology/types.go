package topology

import "time"

// Device represents a physical unit that hosts measurement channels.
// Devices carry no identity beyond their row ID: registering the same
// name and type twice produces two devices.
type Device struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sensor represents a measurement kind. Identity is the Type field:
// there is exactly one "temperature" sensor row regardless of how many
// devices measure temperature.
type Sensor struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Unit      string    `json:"unit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mapping joins one sensor to one device, forming a measurement channel.
// Identity is the (DeviceID, SensorID) pair. Readings are recorded
// against mapping IDs, never directly against devices or sensors.
type Mapping struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"device_id"`
	SensorID  int64     `json:"sensor_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MappingDetail is a mapping enriched with its sensor's type and unit,
// as needed by the ingestion pipeline and read endpoints.
type MappingDetail struct {
	Mapping
	SensorType string `json:"sensor_type"`
	SensorUnit string `json:"sensor_unit,omitempty"`
}

// SensorInput describes one sensor to register and attach in a bulk
// attach request.
type SensorInput struct {
	Type string `json:"type"`
	Unit string `json:"unit,omitempty"`
}

// AttachResult reports the outcome for one SensorInput in a bulk attach:
// whether the sensor row and the mapping row were created or already
// existed, mirroring the dedup engine's reasons.
type AttachResult struct {
	Sensor         Sensor  `json:"sensor"`
	SensorCreated  bool    `json:"sensor_created"`
	SensorReason   string  `json:"sensor_reason"`
	Mapping        Mapping `json:"mapping"`
	MappingCreated bool    `json:"mapping_created"`
	MappingReason  string  `json:"mapping_reason"`
	Err            error   `json:"-"`
}
