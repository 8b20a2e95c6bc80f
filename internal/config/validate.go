package config

import (
	"fmt"

	"codeberg.org/mutker/thermald/internal/errors"
)

// Validate checks the loaded values and returns the first problem found.
func (c *Config) Validate() error {
	errFactory := errors.New()
	invalid := func(format string, args ...any) error {
		return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	ctrl := c.Controller
	switch {
	case ctrl.SampleInterval <= 0:
		return errFactory.WithData(errors.ErrInvalidInterval, ctrl.SampleInterval)
	case ctrl.FilterTimeConstant < 0:
		return invalid("filter_time_constant must not be negative, got %g", ctrl.FilterTimeConstant)
	case ctrl.IntegralMin >= ctrl.IntegralMax:
		return invalid("e_integral_min (%g) must be below e_integral_max (%g)", ctrl.IntegralMin, ctrl.IntegralMax)
	case ctrl.IntegralMin > 0 || ctrl.IntegralMax < 0:
		return invalid("integral range [%g, %g] must contain zero", ctrl.IntegralMin, ctrl.IntegralMax)
	case ctrl.SustainablePower < 0:
		return invalid("sustainable_power must not be negative, got %g", ctrl.SustainablePower)
	case ctrl.ProportionalGain < 0 || ctrl.IntegralGain < 0:
		return invalid("gains must not be negative")
	case c.Policy.ShutdownTemperature <= ctrl.TargetTemperature:
		return invalid("thermal_shutdown_temperature (%g) must be above target_temperature (%g)",
			c.Policy.ShutdownTemperature, ctrl.TargetTemperature)
	case c.Policy.ThrottleEndDelay < 0:
		return invalid("throttle_end_delay must not be negative, got %g", c.Policy.ThrottleEndDelay)
	}

	switch c.Sensor.Kind {
	case SensorHwmon:
		if c.Sensor.Key == "" {
			return invalid("sensor.key is required for hwmon sensors")
		}
	case SensorNVML:
	default:
		return invalid("unknown sensor kind %q", c.Sensor.Kind)
	}

	if len(c.Actors) == 0 {
		return invalid("at least one power actor is required")
	}
	for i, a := range c.Actors {
		switch a.Kind {
		case ActorRAPL:
			if a.Path == "" {
				return invalid("actors[%d]: path is required for rapl actors", i)
			}
		case ActorNVML:
		default:
			return invalid("actors[%d]: unknown actor kind %q", i, a.Kind)
		}
	}

	if c.Limiter.QoS > 2 {
		return invalid("limiter.qos must be 0, 1 or 2, got %d", c.Limiter.QoS)
	}
	if c.Limiter.Broker != "" && c.Limiter.Topic == "" {
		return invalid("limiter.topic is required when a broker is configured")
	}

	if len(c.Shutdown.Command) == 0 {
		return invalid("shutdown.command must not be empty")
	}

	if c.Metrics.Enabled {
		if c.Metrics.DBPath == "" {
			return invalid("metrics.db_path is required when metrics are enabled")
		}
		if c.Metrics.BatchSize <= 0 || c.Metrics.BatchTimeout <= 0 {
			return invalid("metrics batch size and timeout must be positive")
		}
	}

	return nil
}
