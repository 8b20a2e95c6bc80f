package thermal

import (
	"context"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"github.com/looplab/fsm"
)

// ThrottlingState is the state of the throttling episode tracker.
type ThrottlingState string

const (
	ThrottlingInactive ThrottlingState = "inactive"
	ThrottlingActive   ThrottlingState = "active"
	CooldownActive     ThrottlingState = "cooldown_active"
)

const (
	eventThrottle = "throttle"
	eventCooldown = "cooldown"
	eventResume   = "resume"
	eventEnd      = "end"
)

// ThrottleMachine tracks throttling episodes. An episode starts when the load
// becomes non-zero and ends once the load has been zero for the cooldown
// delay. Each finished episode files a crash report.
type ThrottleMachine struct {
	fsm      *fsm.FSM
	delay    time.Duration
	deadline time.Duration
	reporter CrashReporter
	recorder Recorder
	logger   logger.Logger
}

func NewThrottleMachine(delay time.Duration, reporter CrashReporter, recorder Recorder, log logger.Logger) *ThrottleMachine {
	m := &ThrottleMachine{
		delay:    delay,
		reporter: reporter,
		recorder: recorder,
		logger:   log,
	}

	m.fsm = fsm.NewFSM(
		string(ThrottlingInactive),
		fsm.Events{
			{Name: eventThrottle, Src: []string{string(ThrottlingInactive)}, Dst: string(ThrottlingActive)},
			{Name: eventCooldown, Src: []string{string(ThrottlingActive)}, Dst: string(CooldownActive)},
			{Name: eventResume, Src: []string{string(CooldownActive)}, Dst: string(ThrottlingActive)},
			{Name: eventEnd, Src: []string{string(ThrottlingActive), string(CooldownActive)}, Dst: string(ThrottlingInactive)},
		},
		fsm.Callbacks{
			"after_" + eventThrottle: m.onThrottle,
			"after_" + eventCooldown: m.onCooldown,
			"after_" + eventResume:   m.onResume,
			"after_" + eventEnd:      m.onEnd,
		},
	)

	return m
}

func (m *ThrottleMachine) State() ThrottlingState {
	return ThrottlingState(m.fsm.Current())
}

// Deadline returns the end of the cooldown. It is only set while the machine
// is in CooldownActive.
func (m *ThrottleMachine) Deadline() (time.Duration, bool) {
	if m.State() != CooldownActive {
		return 0, false
	}

	return m.deadline, true
}

// Update advances the machine with the load computed at now and returns the
// resulting state.
func (m *ThrottleMachine) Update(ctx context.Context, now time.Duration, load ThermalLoad) ThrottlingState {
	event := m.nextEvent(now, load)
	if event == "" {
		return m.State()
	}

	if err := m.fsm.Event(ctx, event, now); err != nil {
		m.logger.ErrorWithCode(errors.New().Wrap(ErrThrottleTransition, err).WithData(event)).
			Str("state", m.fsm.Current()).
			Msg("Throttling state transition failed")
	}

	return m.State()
}

func (m *ThrottleMachine) nextEvent(now time.Duration, load ThermalLoad) string {
	switch m.State() {
	case ThrottlingInactive:
		if load > 0 {
			return eventThrottle
		}
	case ThrottlingActive:
		if load == 0 {
			if m.delay > 0 {
				return eventCooldown
			}
			return eventEnd
		}
	case CooldownActive:
		if load > 0 {
			return eventResume
		}
		if now >= m.deadline {
			return eventEnd
		}
	}

	return ""
}

func eventTime(e *fsm.Event) time.Duration {
	if len(e.Args) > 0 {
		if ts, ok := e.Args[0].(time.Duration); ok {
			return ts
		}
	}

	return 0
}

func (m *ThrottleMachine) onThrottle(_ context.Context, e *fsm.Event) {
	m.logger.Info().Msg("Begin thermal mitigation")
	m.recorder.ThrottleStarted(eventTime(e))
}

func (m *ThrottleMachine) onCooldown(_ context.Context, e *fsm.Event) {
	m.deadline = eventTime(e) + m.delay
	m.logger.Info().Dur("delay", m.delay).Msg("End thermal mitigation")
}

func (m *ThrottleMachine) onResume(_ context.Context, _ *fsm.Event) {
	m.deadline = 0
	m.logger.Info().Msg("Begin thermal mitigation")
}

func (m *ThrottleMachine) onEnd(ctx context.Context, e *fsm.Event) {
	m.deadline = 0
	// Leaving cooldown was already logged when the cooldown began.
	if e.Src == string(ThrottlingActive) {
		m.logger.Info().Msg("End thermal mitigation")
	}
	m.recorder.ThrottleEnded(eventTime(e), ThrottleEndMitigated)

	if err := m.reporter.FileCrashReport(ctx, CrashSignature); err != nil {
		m.logger.ErrorWithCode(errors.New().Wrap(ErrCrashReport, err)).
			Str("signature", CrashSignature).
			Msg("Failed to file crash report")
	}
}
