package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReading archives an accepted sensor reading.
//
// This is the primary method for mirroring committed readings into the
// time-series archive. The write is non-blocking; data is batched and
// sent asynchronously, so a slow or unreachable server never delays the
// ingestion pipeline.
//
// Parameters:
//   - deviceSensorID: The mapping the reading was recorded against
//   - sensorType: Sensor type for the mapping (e.g., "temperature")
//   - unit: Sensor unit, may be empty (e.g., "celsius")
//   - value: The recorded value
//   - timestamp: The reading time (device or server assigned)
//
// Example:
//
//	client.WriteReading(42, "temperature", "celsius", 21.5, time.Now())
func (c *Client) WriteReading(deviceSensorID int64, sensorType, unit string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_sensor_id": strconv.FormatInt(deviceSensorID, 10),
		"sensor_type":      sensorType,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"sensor_readings",
		tags,
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteReading.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
