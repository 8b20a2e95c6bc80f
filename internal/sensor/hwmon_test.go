package sensor

import (
	"context"
	"errors"
	"testing"

	apperrors "codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHwmon(stats []host.TemperatureStat, err error) *HwmonSource {
	s := NewHwmonSource("coretemp_package_id_0", logger.Nop())
	s.read = func(context.Context) ([]host.TemperatureStat, error) { return stats, err }
	return s
}

func TestHwmonReadRaw(t *testing.T) {
	stats := []host.TemperatureStat{
		{SensorKey: "acpitz", Temperature: 40},
		{SensorKey: "coretemp_package_id_0", Temperature: 71.5, High: 80, Critical: 100},
	}

	temp, err := newTestHwmon(stats, nil).ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, thermal.Celsius(71.5), temp)
}

func TestHwmonToleratesWarnings(t *testing.T) {
	stats := []host.TemperatureStat{{SensorKey: "coretemp_package_id_0", Temperature: 60}}
	warns := &host.Warnings{List: []error{errors.New("nvme0: read failed")}}

	temp, err := newTestHwmon(stats, warns).ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, thermal.Celsius(60), temp)
}

func TestHwmonErrors(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		_, err := newTestHwmon(nil, errors.New("no hwmon")).ReadRaw(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, ErrSensorRead))
	})

	t.Run("missing key", func(t *testing.T) {
		stats := []host.TemperatureStat{{SensorKey: "acpitz", Temperature: 40}}
		_, err := newTestHwmon(stats, nil).ReadRaw(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, ErrSensorNotFound))
	})

	t.Run("missing key with warnings", func(t *testing.T) {
		warns := &host.Warnings{List: []error{errors.New("coretemp: read failed")}}
		_, err := newTestHwmon(nil, warns).ReadRaw(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, ErrSensorNotFound))
	})
}
