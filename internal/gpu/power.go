package gpu

import (
	"context"
	"math"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
)

const milliWattsPerWatt = 1000

// PowerLimits are the board power constraints reported by the driver.
type PowerLimits struct {
	Min, Max, Default thermal.Watts
}

// PowerActor caps a GPU's board power limit to what the controller offers.
type PowerActor struct {
	device       *Device
	limits       PowerLimits
	currentLimit thermal.Watts
	logger       logger.Logger
}

func NewPowerActor(d *Device, log logger.Logger) (*PowerActor, error) {
	errFactory := errors.New()
	d.mu.Lock()
	defer d.mu.Unlock()

	minLimit, maxLimit, ret := d.dev.GetPowerManagementLimitConstraints()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	defaultLimit, ret := d.dev.GetPowerManagementDefaultLimit()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	currentLimit, ret := d.dev.GetPowerManagementLimit()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrPowerLimitFailed, newNVMLError(ret))
	}

	a := &PowerActor{
		device: d,
		limits: PowerLimits{
			Min:     milliWattsToWatts(minLimit),
			Max:     milliWattsToWatts(maxLimit),
			Default: milliWattsToWatts(defaultLimit),
		},
		currentLimit: milliWattsToWatts(currentLimit),
		logger:       log,
	}

	log.Debug().
		Float64("min", float64(a.limits.Min)).
		Float64("max", float64(a.limits.Max)).
		Float64("default", float64(a.limits.Default)).
		Msg("GPU power limits")

	return a, nil
}

func (a *PowerActor) Limits() PowerLimits {
	return a.limits
}

func (a *PowerActor) CurrentLimit() thermal.Watts {
	a.device.mu.Lock()
	defer a.device.mu.Unlock()
	return a.currentLimit
}

// SetMaxPowerConsumption sets the board power limit to the offered power,
// clamped to the driver constraints. The returned usage never exceeds the
// offer: when the hardware floor is above it, the GPU keeps drawing up to
// that floor but only the offer is accounted for.
func (a *PowerActor) SetMaxPowerConsumption(_ context.Context, offered thermal.Watts) (thermal.Watts, error) {
	errFactory := errors.New()

	if math.IsNaN(float64(offered)) || math.IsInf(float64(offered), 0) {
		return 0, errFactory.WithData(ErrInvalidOffer, a.device.Index())
	}

	limit := max(a.limits.Min, min(offered, a.limits.Max))
	if err := a.setLimit(limit); err != nil {
		return 0, errFactory.Wrap(ErrSetPowerLimit, err).WithData(float64(limit))
	}

	return max(0, min(limit, offered)), nil
}

// ResetToDefault restores the driver's default power limit.
func (a *PowerActor) ResetToDefault() error {
	return a.setLimit(a.limits.Default)
}

func (a *PowerActor) setLimit(limit thermal.Watts) error {
	a.device.mu.Lock()
	defer a.device.mu.Unlock()

	if limit == a.currentLimit {
		return nil
	}

	if ret := a.device.dev.SetPowerManagementLimit(wattsToMilliWatts(limit)); !IsNVMLSuccess(ret) {
		return newNVMLError(ret)
	}

	a.logger.Debug().Float64("powerLimit", float64(limit)).Msg("GPU power limit set")
	a.currentLimit = limit

	return nil
}

func milliWattsToWatts(mw uint32) thermal.Watts {
	return thermal.Watts(mw) / milliWattsPerWatt
}

func wattsToMilliWatts(watts thermal.Watts) uint32 {
	if watts <= 0 {
		return 0
	}

	const maxWatts = thermal.Watts(math.MaxUint32 / milliWattsPerWatt)
	if watts > maxWatts {
		return math.MaxUint32
	}

	//nolint:gosec // G115: Safe - bounds checked above
	return uint32(math.Round(float64(watts * milliWattsPerWatt)))
}
