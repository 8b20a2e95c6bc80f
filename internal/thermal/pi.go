package thermal

import (
	"math"
	"time"
)

// PIEngine holds the PI loop state: the previous timestamp, the largest
// observed time delta and the clamped error integral.
type PIEngine struct {
	params        ControllerParams
	prevTimestamp time.Duration
	maxTimeDelta  time.Duration
	errorIntegral float64
}

func NewPIEngine(params ControllerParams) *PIEngine {
	return &PIEngine{params: params}
}

// TimeDelta returns the time elapsed since the previous call. The first call
// measures from zero.
func (e *PIEngine) TimeDelta(now time.Duration) time.Duration {
	dt := now - e.prevTimestamp
	e.prevTimestamp = now
	if dt > e.maxTimeDelta {
		e.maxTimeDelta = dt
	}

	return dt
}

func (e *PIEngine) MaxTimeDelta() time.Duration {
	return e.maxTimeDelta
}

func (e *PIEngine) ErrorIntegral() float64 {
	return e.errorIntegral
}

// TemperatureError returns the proportional and integral errors for the
// filtered temperature and stores the new integral. The integral stays within
// [IntegralMin, IntegralMax].
func (e *PIEngine) TemperatureError(filtered Celsius, dt time.Duration) (float64, float64) {
	errP := float64(e.params.TargetTemperature - filtered)
	errI := clamp(e.errorIntegral+errP*dt.Seconds(), e.params.IntegralMin, e.params.IntegralMax)
	e.errorIntegral = errI

	return errP, errI
}

// AvailablePower is the PI output. It is never negative, and NaN maps to 0.
func (e *PIEngine) AvailablePower(errP, errI float64) Watts {
	power := float64(e.params.SustainablePower) +
		errP*e.params.ProportionalGain +
		errI*e.params.IntegralGain

	if math.IsNaN(power) || power < 0 {
		return 0
	}

	return Watts(power)
}
