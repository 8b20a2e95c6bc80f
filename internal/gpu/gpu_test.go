package gpu

import (
	"context"
	"testing"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	temperature uint32
	tempRet     nvml.Return

	minLimit, maxLimit, defaultLimit, limit uint32
	constraintsRet                          nvml.Return
	setRet                                  nvml.Return
	sets                                    []uint32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		temperature:  65,
		minLimit:     100000,
		maxLimit:     300000,
		defaultLimit: 250000,
		limit:        250000,
	}
}

func (d *fakeDevice) GetName() (string, nvml.Return) {
	return "NVIDIA Test GPU", nvml.SUCCESS
}

func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temperature, d.tempRet
}

func (d *fakeDevice) GetPowerManagementLimitConstraints() (uint32, uint32, nvml.Return) {
	return d.minLimit, d.maxLimit, d.constraintsRet
}

func (d *fakeDevice) GetPowerManagementDefaultLimit() (uint32, nvml.Return) {
	return d.defaultLimit, nvml.SUCCESS
}

func (d *fakeDevice) GetPowerManagementLimit() (uint32, nvml.Return) {
	return d.limit, nvml.SUCCESS
}

func (d *fakeDevice) SetPowerManagementLimit(limit uint32) nvml.Return {
	if d.setRet != nvml.SUCCESS {
		return d.setRet
	}
	d.sets = append(d.sets, limit)
	d.limit = limit
	return nvml.SUCCESS
}

type fakeNVML struct {
	dev       device
	inits     int
	shutdowns int
	initErr   error
}

func (f *fakeNVML) Initialize() error {
	f.inits++
	return f.initErr
}

func (f *fakeNVML) Shutdown() error {
	f.shutdowns++
	return nil
}

func (f *fakeNVML) GetDevice(int) (device, error) {
	return f.dev, nil
}

func TestManagerOpen(t *testing.T) {
	ctrl := &fakeNVML{dev: newFakeDevice()}
	m := newManager(ctrl, logger.Nop())

	d1, err := m.Open(0)
	require.NoError(t, err)
	d2, err := m.Open(0)
	require.NoError(t, err)

	assert.Same(t, d1, d2, "devices are shared between sensor and actors")
	assert.Equal(t, "NVIDIA Test GPU", d1.Name())
	assert.Equal(t, 1, ctrl.inits)

	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
	assert.Equal(t, 1, ctrl.shutdowns)
}

func TestManagerOpenInitFailure(t *testing.T) {
	errFactory := errors.New()
	ctrl := &fakeNVML{initErr: errFactory.New(ErrInitFailed)}
	m := newManager(ctrl, logger.Nop())

	_, err := m.Open(0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInitFailed))
}

func TestDeviceReadRaw(t *testing.T) {
	dev := newFakeDevice()
	d := newDevice(0, dev, logger.Nop())

	temp, err := d.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, thermal.Celsius(65), temp)

	dev.tempRet = nvml.ERROR_UNKNOWN
	_, err = d.ReadRaw(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTemperatureReadFailed))
}

func TestNVMLError(t *testing.T) {
	assert.NoError(t, newNVMLError(nvml.SUCCESS))
	assert.Error(t, newNVMLError(nvml.ERROR_NOT_SUPPORTED))
}
