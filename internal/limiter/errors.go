package limiter

import "codeberg.org/mutker/thermald/internal/errors"

const (
	ErrConnect = errors.ErrorCode("limiter_connect_failed")
	ErrPublish = errors.ErrorCode("limiter_publish_failed")
	ErrEncode  = errors.ErrorCode("limiter_encode_failed")
	ErrTimeout = errors.ErrorCode("limiter_timeout")
)
