package thermal

import (
	"context"
	"sync/atomic"
	"time"
)

type fakeClock struct {
	now   time.Duration
	reads atomic.Int32
}

func (c *fakeClock) Now() time.Duration {
	c.reads.Add(1)
	return c.now
}

type fakeSource struct {
	reading Reading
	err     error
	calls   int
}

func (s *fakeSource) ReadTemperature(context.Context) (Reading, error) {
	s.calls++
	return s.reading, s.err
}

type fakeActor struct {
	offers []Watts
	// use decides how much of the offer is consumed; nil consumes everything.
	use func(offered Watts) Watts
	err error
}

func (a *fakeActor) SetMaxPowerConsumption(_ context.Context, offered Watts) (Watts, error) {
	a.offers = append(a.offers, offered)
	if a.err != nil {
		return 0, a.err
	}
	if a.use == nil {
		return offered, nil
	}
	return a.use(offered), nil
}

type fakeShutdown struct {
	requests []ShutdownRequest
	err      error
}

func (s *fakeShutdown) Shutdown(_ context.Context, req ShutdownRequest) error {
	s.requests = append(s.requests, req)
	return s.err
}

type fakeConsumer struct {
	loads []ThermalLoad
	err   error
}

func (c *fakeConsumer) UpdateThermalLoad(_ context.Context, load ThermalLoad) error {
	c.loads = append(c.loads, load)
	return c.err
}

type fakeReporter struct {
	signatures []string
	err        error
}

func (r *fakeReporter) FileCrashReport(_ context.Context, signature string) error {
	r.signatures = append(r.signatures, signature)
	return r.err
}

type throttleEnd struct {
	ts     time.Duration
	reason ThrottleEndReason
}

type fakeRecorder struct {
	iterations []IterationSnapshot
	starts     []time.Duration
	ends       []throttleEnd
	power      []Watts
	actorPower map[int][]Watts
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{actorPower: make(map[int][]Watts)}
}

func (r *fakeRecorder) RecordIteration(s IterationSnapshot) {
	r.iterations = append(r.iterations, s)
}

func (r *fakeRecorder) ThrottleStarted(ts time.Duration) {
	r.starts = append(r.starts, ts)
}

func (r *fakeRecorder) ThrottleEnded(ts time.Duration, reason ThrottleEndReason) {
	r.ends = append(r.ends, throttleEnd{ts: ts, reason: reason})
}

func (r *fakeRecorder) RecordAvailablePower(power Watts) {
	r.power = append(r.power, power)
}

func (r *fakeRecorder) RecordActorPower(index int, used Watts) {
	r.actorPower[index] = append(r.actorPower[index], used)
}

func defaultParams() ControllerParams {
	return ControllerParams{
		SampleInterval:     time.Second,
		FilterTimeConstant: 10 * time.Second,
		TargetTemperature:  85,
		IntegralMin:        -20,
		IntegralMax:        0,
		SustainablePower:   1.1,
		ProportionalGain:   0,
		IntegralGain:       0.2,
	}
}

func defaultPolicy() PolicyParams {
	return PolicyParams{
		Controller:          defaultParams(),
		ShutdownTemperature: 95,
		ThrottleEndDelay:    0,
	}
}
