package reading

import "errors"

// Domain errors for the reading package.
var (
	// ErrInvalidValue is returned when a reading value is not a finite number.
	ErrInvalidValue = errors.New("reading: invalid value")

	// ErrInvalidMapping is returned when a reading references a mapping
	// that does not exist (surfaces as a foreign key failure on insert).
	ErrInvalidMapping = errors.New("reading: mapping not found")
)
