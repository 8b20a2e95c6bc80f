package gpu

import (
	"context"
	"sync"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Manager owns the NVML library handle. The temperature sensor and any
// number of power actors may share devices opened through one Manager.
type Manager struct {
	nvml    nvmlController
	devices map[int]*Device
	mu      sync.Mutex
	logger  logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	return newManager(&nvmlWrapper{}, log)
}

func newManager(ctrl nvmlController, log logger.Logger) *Manager {
	return &Manager{
		nvml:    ctrl,
		devices: make(map[int]*Device),
		logger:  log,
	}
}

// Open returns the device at index, initializing NVML on first use.
func (m *Manager) Open(index int) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[index]; ok {
		return d, nil
	}

	if err := m.nvml.Initialize(); err != nil {
		return nil, err
	}

	dev, err := m.nvml.GetDevice(index)
	if err != nil {
		return nil, err
	}

	d := newDevice(index, dev, m.logger)
	m.devices[index] = d

	return d, nil
}

// Shutdown releases NVML. Devices opened earlier must not be used afterwards.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.devices) == 0 {
		return nil
	}
	m.devices = make(map[int]*Device)

	return m.nvml.Shutdown()
}

type Device struct {
	index  int
	name   string
	dev    device
	mu     sync.Mutex
	logger logger.Logger
}

func newDevice(index int, dev device, log logger.Logger) *Device {
	d := &Device{index: index, dev: dev, logger: log}

	if name, ret := dev.GetName(); IsNVMLSuccess(ret) {
		d.name = name
		log.Info().Int("index", index).Msgf("Detected GPU: %v", name)
	} else {
		log.Warn().Int("index", index).Err(newNVMLError(ret)).Msg("Failed to get GPU name")
	}

	return d
}

func (d *Device) Index() int {
	return d.index
}

func (d *Device) Name() string {
	return d.name
}

// ReadRaw returns the GPU core temperature.
func (d *Device) ReadRaw(_ context.Context) (thermal.Celsius, error) {
	errFactory := errors.New()
	d.mu.Lock()
	defer d.mu.Unlock()

	temp, ret := d.dev.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret)).WithData(d.index)
	}

	return thermal.Celsius(temp), nil
}
