package ingest

import "time"

// Outcome reasons reported in Result.Reason.
const (
	// ReasonInvalidMapping marks a reading rejected because its mapping
	// does not exist (or does not belong to the addressed device).
	ReasonInvalidMapping = "invalid_mapping"

	// ReasonInvalidValue marks a reading rejected for a non-finite value.
	ReasonInvalidValue = "invalid_value"

	// ReasonDeviceTime notes that the reading's own timestamp was used.
	ReasonDeviceTime = "used device time"

	// ReasonServerTime notes that the reading carried no timestamp and
	// the pipeline assigned the server's time.
	ReasonServerTime = "used server time"
)

// SingleRequest is one reading submitted against a known mapping.
// Value is a pointer so an absent value can be told apart from a
// legitimate zero; absent is a validation failure.
type SingleRequest struct {
	DeviceSensorID int64      `json:"device_sensor_id"`
	Time           *time.Time `json:"time,omitempty"`
	Value          *float64   `json:"value"`

	// SkipValidation bypasses the mapping existence check. The reading
	// is still subject to the schema's foreign key on insert.
	SkipValidation bool `json:"skip_validation,omitempty"`
}

// Item is one reading inside a bulk request. The target device is
// carried by the request, not the item. As with SingleRequest, a nil
// Value means the field was never sent.
type Item struct {
	DeviceSensorID int64      `json:"device_sensor_id"`
	Time           *time.Time `json:"time,omitempty"`
	Value          *float64   `json:"value"`
}

// Result reports the outcome for one reading. Accepted readings carry
// the timestamp that was committed and the sensor's type and unit when
// known; rejected readings carry the rejection reason.
type Result struct {
	DeviceSensorID int64     `json:"device_sensor_id"`
	Time           time.Time `json:"time"`
	Value          float64   `json:"value"`
	Accepted       bool      `json:"accepted"`
	Reason         string    `json:"reason,omitempty"`
	SensorType     string    `json:"sensor_type,omitempty"`
	SensorUnit     string    `json:"sensor_unit,omitempty"`
}
