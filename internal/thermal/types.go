package thermal

import (
	"math"
	"time"
)

// MaxLoad is the thermal load reported at the most negative integral error.
const MaxLoad ThermalLoad = 100

// CrashSignature is the crash-report signature filed at the end of every
// throttling episode.
const CrashSignature = "thermal-throttle"

// Domain types for type safety
type (
	Celsius     float64
	Watts       float64
	ThermalLoad uint32

	// Reading is one sample from a temperature source. Filtered drives the
	// controller; Raw is only used for the critical-shutdown check.
	Reading struct {
		Raw      Celsius
		Filtered Celsius
	}
)

// ShutdownReason is passed to the shutdown service.
type ShutdownReason string

const ReasonHighTemperature ShutdownReason = "high_temperature"

// ShutdownRequest asks the platform to reboot or power off.
type ShutdownRequest struct {
	Reboot bool
	Reason ShutdownReason
}

// ThrottleEndReason tells recorders how a throttling episode finished.
type ThrottleEndReason string

const (
	ThrottleEndMitigated ThrottleEndReason = "mitigated"
	ThrottleEndShutdown  ThrottleEndReason = "shutdown"
)

// ControllerParams are the PI loop parameters.
type ControllerParams struct {
	SampleInterval     time.Duration
	FilterTimeConstant time.Duration
	TargetTemperature  Celsius
	IntegralMin        float64
	IntegralMax        float64
	SustainablePower   Watts
	ProportionalGain   float64
	IntegralGain       float64
}

// PolicyParams wrap the controller parameters with the safety and
// throttling policy.
type PolicyParams struct {
	Controller          ControllerParams
	ShutdownTemperature Celsius
	ThrottleEndDelay    time.Duration
	// MonitorOnly keeps measuring and still requests the critical shutdown,
	// but never touches power limits or the thermal load consumer.
	MonitorOnly bool
}

// Clock returns the time elapsed on a monotonic timeline.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a Clock whose zero is the moment of the call.
func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
