package thermal

import "time"

// IterationSnapshot is the state of the controller after the throttling
// state machine ran in one iteration.
type IterationSnapshot struct {
	Timestamp           time.Duration
	TimeDelta           time.Duration
	MaxTimeDelta        time.Duration
	RawTemperature      Celsius
	FilteredTemperature Celsius
	ErrorProportional   float64
	ErrorIntegral       float64
	ThermalLoad         ThermalLoad
	ThrottlingState     ThrottlingState
}

// Recorder receives diagnostics from the controller. Calls are made from the
// controller goroutine and must not block.
type Recorder interface {
	RecordIteration(s IterationSnapshot)
	ThrottleStarted(ts time.Duration)
	ThrottleEnded(ts time.Duration, reason ThrottleEndReason)
	RecordAvailablePower(power Watts)
	RecordActorPower(index int, used Watts)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordIteration(IterationSnapshot)              {}
func (NopRecorder) ThrottleStarted(time.Duration)                  {}
func (NopRecorder) ThrottleEnded(time.Duration, ThrottleEndReason) {}
func (NopRecorder) RecordAvailablePower(Watts)                     {}
func (NopRecorder) RecordActorPower(int, Watts)                    {}

// MultiRecorder forwards every call to each recorder in order.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordIteration(s IterationSnapshot) {
	for _, r := range m {
		r.RecordIteration(s)
	}
}

func (m MultiRecorder) ThrottleStarted(ts time.Duration) {
	for _, r := range m {
		r.ThrottleStarted(ts)
	}
}

func (m MultiRecorder) ThrottleEnded(ts time.Duration, reason ThrottleEndReason) {
	for _, r := range m {
		r.ThrottleEnded(ts, reason)
	}
}

func (m MultiRecorder) RecordAvailablePower(power Watts) {
	for _, r := range m {
		r.RecordAvailablePower(power)
	}
}

func (m MultiRecorder) RecordActorPower(index int, used Watts) {
	for _, r := range m {
		r.RecordActorPower(index, used)
	}
}
