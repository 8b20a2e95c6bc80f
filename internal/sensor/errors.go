package sensor

import "codeberg.org/mutker/thermald/internal/errors"

const (
	ErrSensorRead     = errors.ErrorCode("sensor_read_failed")
	ErrSensorNotFound = errors.ErrorCode("sensor_not_found")
	ErrInvalidReading = errors.ErrorCode("sensor_invalid_reading")
)
