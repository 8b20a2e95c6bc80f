package thermal

import "codeberg.org/mutker/thermald/internal/errors"

const (
	// Construction Errors
	ErrMissingCollaborator = errors.ErrorCode("thermal_missing_collaborator")
	ErrInvalidParams       = errors.ErrorCode("thermal_invalid_params")

	// Collaborator Errors
	ErrTemperatureRead   = errors.ErrorCode("thermal_temperature_read_failed")
	ErrPowerDistribution = errors.ErrorCode("thermal_power_distribution_failed")
	ErrShutdownFailed    = errors.ErrorCode("thermal_shutdown_failed")
	ErrLoadUpdate        = errors.ErrorCode("thermal_load_update_failed")
	ErrCrashReport       = errors.ErrorCode("thermal_crash_report_failed")

	// State Machine Errors
	ErrThrottleTransition = errors.ErrorCode("thermal_throttle_transition_failed")

	// Internal Errors
	ErrLoadOutOfRange = errors.ErrorCode("thermal_load_out_of_range")
)
