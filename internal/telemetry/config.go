package telemetry

import (
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
)

const (
	defaultReadTimeout = 5 * time.Second
	namespace          = "thermald"
	subsystem          = "controller"
)

type Config struct {
	Listen      string
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout: defaultReadTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Listen == "" {
		return errFactory.New(ErrInvalidListen)
	}
	return nil
}
