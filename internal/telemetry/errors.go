package telemetry

import "codeberg.org/mutker/thermald/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidListen = errors.ErrorCode("telemetry_invalid_listen_address")

	// Exposition Errors
	ErrEncodeHistory = errors.ErrorCode("telemetry_encode_history_failed")
	ErrServe         = errors.ErrorCode("telemetry_serve_failed")

	// Operation Errors
	ErrServiceShutdown = errors.ErrorCode("telemetry_service_shutdown_failed")
)
