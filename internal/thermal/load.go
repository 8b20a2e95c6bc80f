package thermal

import (
	"fmt"
	"math"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
)

// CalculateThermalLoad maps the integral error onto [0, MaxLoad]. An integral
// at integralMax is no load, one at integralMin is MaxLoad.
//
// Out of range input is a PI engine bug. It is logged and clamped, and panics
// in builds tagged thermaldebug.
func CalculateThermalLoad(errorIntegral, integralMin, integralMax float64) ThermalLoad {
	return calculateThermalLoad(logger.Default(), errorIntegral, integralMin, integralMax)
}

func calculateThermalLoad(log logger.Logger, errorIntegral, integralMin, integralMax float64) ThermalLoad {
	switch {
	case errorIntegral < integralMin:
		contractViolation(log, fmt.Sprintf("error integral %g below minimum %g", errorIntegral, integralMin))
		return MaxLoad
	case errorIntegral > integralMax:
		contractViolation(log, fmt.Sprintf("error integral %g above maximum %g", errorIntegral, integralMax))
		return 0
	}

	if integralMin == integralMax {
		return 0
	}

	ratio := (errorIntegral - integralMax) / (integralMin - integralMax)
	return ThermalLoad(math.Round(ratio * float64(MaxLoad)))
}

func contractViolation(log logger.Logger, msg string) {
	if strictContracts {
		panic(msg)
	}

	log.ErrorWithCode(errors.New().WithMessage(ErrLoadOutOfRange, msg)).Msg("Thermal load clamped")
}
