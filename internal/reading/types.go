package reading

import "time"

// Reading is one observation recorded against a device-sensor mapping.
type Reading struct {
	ID             int64     `json:"id"`
	DeviceSensorID int64     `json:"device_sensor_id"`
	Time           time.Time `json:"time"`
	Value          float64   `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
}

// Detail is a reading enriched with its sensor's type and unit, as
// served by the per-device read endpoints.
type Detail struct {
	Reading
	SensorType string `json:"sensor_type"`
	SensorUnit string `json:"sensor_unit,omitempty"`
}
