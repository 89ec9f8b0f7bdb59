package topology

import "context"

// Store defines the interface for topology persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Store interface {
	// RegisterDevice creates a new device. Devices have no identity, so
	// this always creates a new row.
	RegisterDevice(ctx context.Context, name, deviceType string) (*Device, error)

	// RegisterSensor creates a sensor unless one with the same type
	// already exists. Returns the stored sensor and whether it was
	// created by this call.
	RegisterSensor(ctx context.Context, sensorType, unit string) (*Sensor, bool, error)

	// MapSensorToDevice creates a mapping unless the (device, sensor)
	// pair already exists. Returns ErrDeviceNotFound or ErrSensorNotFound
	// when a referenced row is missing.
	MapSensorToDevice(ctx context.Context, deviceID, sensorID int64) (*Mapping, bool, error)

	// AttachSensors registers the given sensors and maps them to the
	// device in one batched pass. Per-input failures are isolated in the
	// returned results. Returns ErrDeviceNotFound if the device is missing.
	AttachSensors(ctx context.Context, deviceID int64, inputs []SensorInput) ([]AttachResult, error)

	// MappingsForDevice returns the device's mappings with sensor type
	// and unit embedded. An unknown device yields an empty slice.
	MappingsForDevice(ctx context.Context, deviceID int64) ([]MappingDetail, error)

	// MappingExists reports whether a mapping ID exists.
	MappingExists(ctx context.Context, mappingID int64) (bool, error)

	// GetMappingDetail retrieves one mapping with sensor type and unit.
	// Returns ErrMappingNotFound if the mapping does not exist.
	GetMappingDetail(ctx context.Context, mappingID int64) (*MappingDetail, error)

	// GetDevice retrieves a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetDevice(ctx context.Context, id int64) (*Device, error)

	// ListDevices retrieves all devices.
	ListDevices(ctx context.Context) ([]Device, error)

	// ListSensors retrieves all sensors.
	ListSensors(ctx context.Context) ([]Sensor, error)

	// ListMappings retrieves all mappings.
	ListMappings(ctx context.Context) ([]Mapping, error)

	// DeleteDevice removes a device; its mappings and their readings
	// cascade. Returns ErrDeviceNotFound if the device does not exist.
	DeleteDevice(ctx context.Context, id int64) error

	// DeleteSensor removes a sensor; its mappings and their readings
	// cascade. Returns ErrSensorNotFound if the sensor does not exist.
	DeleteSensor(ctx context.Context, id int64) error

	// DeleteMapping removes a mapping; its readings cascade.
	// Returns ErrMappingNotFound if the mapping does not exist.
	DeleteMapping(ctx context.Context, id int64) error
}
