package gpu

import (
	"context"
	"math"
	"testing"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestActor(t *testing.T, dev *fakeDevice) *PowerActor {
	t.Helper()
	a, err := NewPowerActor(newDevice(0, dev, logger.Nop()), logger.Nop())
	require.NoError(t, err)
	return a
}

func TestNewPowerActor(t *testing.T) {
	a := newTestActor(t, newFakeDevice())

	assert.Equal(t, PowerLimits{Min: 100, Max: 300, Default: 250}, a.Limits())
	assert.Equal(t, thermal.Watts(250), a.CurrentLimit())
}

func TestNewPowerActorConstraintsFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.constraintsRet = nvml.ERROR_NOT_SUPPORTED

	_, err := NewPowerActor(newDevice(0, dev, logger.Nop()), logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrPowerLimitsFailed))
}

func TestSetMaxPowerConsumption(t *testing.T) {
	tests := []struct {
		name      string
		offered   thermal.Watts
		wantLimit uint32
		wantUsed  thermal.Watts
	}{
		{"within range", 180.5, 180500, 180.5},
		{"above max", 400, 300000, 300},
		{"below min", 40, 100000, 40},
		{"zero", 0, 100000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			a := newTestActor(t, dev)

			used, err := a.SetMaxPowerConsumption(context.Background(), tt.offered)
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.wantUsed), float64(used), 1e-9)
			assert.LessOrEqual(t, float64(used), float64(tt.offered))
			assert.Equal(t, tt.wantLimit, dev.limit)
		})
	}
}

func TestSetMaxPowerConsumptionSkipsUnchangedLimit(t *testing.T) {
	dev := newFakeDevice()
	a := newTestActor(t, dev)

	_, err := a.SetMaxPowerConsumption(context.Background(), 200)
	require.NoError(t, err)
	_, err = a.SetMaxPowerConsumption(context.Background(), 200)
	require.NoError(t, err)

	assert.Equal(t, []uint32{200000}, dev.sets)
}

func TestSetMaxPowerConsumptionFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.setRet = nvml.ERROR_NO_PERMISSION
	a := newTestActor(t, dev)

	_, err := a.SetMaxPowerConsumption(context.Background(), 200)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrSetPowerLimit))
	assert.Equal(t, thermal.Watts(250), a.CurrentLimit())
}

func TestSetMaxPowerConsumptionRejectsNonFiniteOffer(t *testing.T) {
	for _, offered := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		dev := newFakeDevice()
		a := newTestActor(t, dev)

		used, err := a.SetMaxPowerConsumption(context.Background(), thermal.Watts(offered))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, ErrInvalidOffer))
		assert.Zero(t, used)
		assert.Empty(t, dev.sets)
		assert.Equal(t, thermal.Watts(250), a.CurrentLimit())
	}
}

func TestResetToDefault(t *testing.T) {
	dev := newFakeDevice()
	a := newTestActor(t, dev)

	_, err := a.SetMaxPowerConsumption(context.Background(), 150)
	require.NoError(t, err)
	require.NoError(t, a.ResetToDefault())

	assert.Equal(t, uint32(250000), dev.limit)
}

func TestWattsToMilliWatts(t *testing.T) {
	assert.Equal(t, uint32(0), wattsToMilliWatts(-5))
	assert.Equal(t, uint32(1500), wattsToMilliWatts(1.5))
	assert.Equal(t, uint32(4294967295), wattsToMilliWatts(1e12))
}
