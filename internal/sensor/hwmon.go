package sensor

import (
	"context"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/shirou/gopsutil/v3/host"
)

// RawSource reads an unfiltered temperature.
type RawSource interface {
	ReadRaw(ctx context.Context) (thermal.Celsius, error)
}

// HwmonSource reads one hwmon sensor, selected by its gopsutil sensor key
// such as "coretemp_package_id_0" or "k10temp_tctl".
type HwmonSource struct {
	key    string
	read   func(context.Context) ([]host.TemperatureStat, error)
	logger logger.Logger
}

func NewHwmonSource(key string, log logger.Logger) *HwmonSource {
	return &HwmonSource{
		key:    key,
		read:   host.SensorsTemperaturesWithContext,
		logger: log,
	}
}

func (s *HwmonSource) ReadRaw(ctx context.Context) (thermal.Celsius, error) {
	errFactory := errors.New()

	stats, err := s.read(ctx)
	if err != nil {
		// Some hwmon chips fail to read while others succeed. Keep going as
		// long as the one we need is among the results.
		var warns *host.Warnings
		if !errors.As(err, &warns) {
			return 0, errFactory.Wrap(ErrSensorRead, err)
		}
		s.logger.Debug().Int("warnings", len(warns.List)).Msg("Partial sensor read")
	}

	for _, stat := range stats {
		if stat.SensorKey == s.key {
			return thermal.Celsius(stat.Temperature), nil
		}
	}

	return 0, errFactory.WithData(ErrSensorNotFound, s.key)
}
