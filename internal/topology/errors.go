package topology

import "errors"

// Domain errors for the topology package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, topology.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("topology: device not found")

	// ErrSensorNotFound is returned when a sensor ID does not exist.
	ErrSensorNotFound = errors.New("topology: sensor not found")

	// ErrMappingNotFound is returned when a mapping ID does not exist.
	ErrMappingNotFound = errors.New("topology: mapping not found")

	// ErrInvalidName is returned when a device name is empty.
	ErrInvalidName = errors.New("topology: invalid name")

	// ErrInvalidType is returned when a device or sensor type is empty.
	ErrInvalidType = errors.New("topology: invalid type")
)
