package powercap

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
)

const (
	ErrReadConstraint  = errors.ErrorCode("powercap_read_constraint_failed")
	ErrWriteConstraint = errors.ErrorCode("powercap_write_constraint_failed")
	ErrInvalidOffer    = errors.ErrorCode("powercap_invalid_offer")

	powerLimitFile = "constraint_0_power_limit_uw"
	maxPowerFile   = "constraint_0_max_power_uw"

	microWattsPerWatt = 1e6
)

// RaplActor limits a Linux powercap zone, for example
// /sys/class/powercap/intel-rapl:0, through its long term constraint.
type RaplActor struct {
	name   string
	dir    string
	logger logger.Logger
}

func NewRaplActor(name, dir string, log logger.Logger) *RaplActor {
	return &RaplActor{name: name, dir: dir, logger: log}
}

func (a *RaplActor) Name() string {
	return a.name
}

// SetMaxPowerConsumption writes the offer, clamped to the zone maximum, as the
// power limit and reports the written value as used.
func (a *RaplActor) SetMaxPowerConsumption(_ context.Context, offered thermal.Watts) (thermal.Watts, error) {
	errFactory := errors.New()

	if math.IsNaN(float64(offered)) || math.IsInf(float64(offered), 0) {
		return 0, errFactory.WithData(ErrInvalidOffer, a.name)
	}

	limit := math.Max(0, float64(offered))
	if maxPower, err := a.maxPower(); err != nil {
		return 0, errFactory.Wrap(ErrReadConstraint, err).WithData(a.name)
	} else if maxPower > 0 && limit > maxPower {
		limit = maxPower
	}

	uw := uint64(math.Round(limit * microWattsPerWatt))
	path := filepath.Join(a.dir, powerLimitFile)
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uw, 10)), 0o644); err != nil {
		return 0, errFactory.Wrap(ErrWriteConstraint, err).WithData(a.name)
	}

	used := min(thermal.Watts(float64(uw)/microWattsPerWatt), max(offered, 0))
	a.logger.Debug().
		Str("zone", a.name).
		Float64("offered", float64(offered)).
		Float64("limit", float64(used)).
		Msg("Power limit applied")

	return used, nil
}

// CurrentLimit reads back the configured power limit.
func (a *RaplActor) CurrentLimit() (thermal.Watts, error) {
	uw, err := readMicroWatts(filepath.Join(a.dir, powerLimitFile))
	if err != nil {
		return 0, errors.New().Wrap(ErrReadConstraint, err).WithData(a.name)
	}

	return thermal.Watts(uw / microWattsPerWatt), nil
}

// maxPower returns the zone maximum in watts, or 0 when the zone does not
// publish one.
func (a *RaplActor) maxPower() (float64, error) {
	uw, err := readMicroWatts(filepath.Join(a.dir, maxPowerFile))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return uw / microWattsPerWatt, nil
}

func readMicroWatts(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	uw, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}

	return float64(uw), nil
}
