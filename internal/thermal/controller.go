package thermal

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
)

// Config wires the controller to its collaborators.
type Config struct {
	Policy PolicyParams

	Temperature   TemperatureSource
	Actors        []PowerActor
	Shutdown      ShutdownService
	LoadConsumer  LoadConsumer
	CrashReporter CrashReporter

	// Optional
	Recorder Recorder
	Clock    Clock
	Logger   logger.Logger
}

// Controller runs the thermal control loop. Its state is only touched from
// the goroutine calling Iterate or Run.
type Controller struct {
	policy      PolicyParams
	temperature TemperatureSource
	consumer    LoadConsumer
	recorder    Recorder
	clock       Clock
	logger      logger.Logger

	pi          *PIEngine
	throttle    *ThrottleMachine
	safety      *SafetyMonitor
	distributor *Distributor

	thermalLoad ThermalLoad
}

func New(cfg Config) (*Controller, error) {
	errFactory := errors.New()

	switch {
	case cfg.Temperature == nil:
		return nil, errFactory.WithData(ErrMissingCollaborator, "temperature source")
	case len(cfg.Actors) == 0:
		return nil, errFactory.WithData(ErrMissingCollaborator, "power actors")
	case cfg.Shutdown == nil:
		return nil, errFactory.WithData(ErrMissingCollaborator, "shutdown service")
	case cfg.LoadConsumer == nil:
		return nil, errFactory.WithData(ErrMissingCollaborator, "thermal load consumer")
	case cfg.CrashReporter == nil:
		return nil, errFactory.WithData(ErrMissingCollaborator, "crash reporter")
	}

	if cfg.Policy.Controller.IntegralMin >= cfg.Policy.Controller.IntegralMax {
		return nil, errFactory.WithData(ErrInvalidParams, "integral min must be below integral max")
	}

	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = NewMonotonicClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	log := cfg.Logger.With("controller")

	return &Controller{
		policy:      cfg.Policy,
		temperature: cfg.Temperature,
		consumer:    cfg.LoadConsumer,
		recorder:    cfg.Recorder,
		clock:       cfg.Clock,
		logger:      log,
		pi:          NewPIEngine(cfg.Policy.Controller),
		throttle:    NewThrottleMachine(cfg.Policy.ThrottleEndDelay, cfg.CrashReporter, cfg.Recorder, log),
		safety:      NewSafetyMonitor(cfg.Policy.ShutdownTemperature, cfg.Shutdown, cfg.Recorder),
		distributor: NewDistributor(cfg.Actors, cfg.Recorder),
	}, nil
}

// Run calls Iterate every sample interval until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	interval := c.policy.Controller.SampleInterval
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info().
		Dur("interval", interval).
		Bool("loop_enabled", !c.loopDisabled()).
		Bool("monitor_only", c.policy.MonitorOnly).
		Msg("Thermal control loop started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug().Msg("Thermal control loop stopped")
			return nil
		case <-ticker.C:
			if err := c.Iterate(ctx); err != nil {
				c.logError(err, "Iteration aborted")
			}
		}
	}
}

// Iterate runs one control step. Only a failed temperature read is returned;
// every other collaborator failure is logged and the step carries on.
func (c *Controller) Iterate(ctx context.Context) error {
	now := c.clock.Now()
	dt := c.pi.TimeDelta(now)

	reading, err := c.temperature.ReadTemperature(ctx)
	if err != nil {
		return errors.New().Wrap(ErrTemperatureRead, err)
	}
	if !isFinite(float64(reading.Raw)) || !isFinite(float64(reading.Filtered)) {
		return errors.New().WithData(ErrTemperatureRead, reading)
	}

	errP, errI := c.pi.TemperatureError(reading.Filtered, dt)
	load := calculateThermalLoad(c.logger, errI, c.policy.Controller.IntegralMin, c.policy.Controller.IntegralMax)
	state := c.throttle.Update(ctx, now, load)

	c.recorder.RecordIteration(IterationSnapshot{
		Timestamp:           now,
		TimeDelta:           dt,
		MaxTimeDelta:        c.pi.MaxTimeDelta(),
		RawTemperature:      reading.Raw,
		FilteredTemperature: reading.Filtered,
		ErrorProportional:   errP,
		ErrorIntegral:       errI,
		ThermalLoad:         load,
		ThrottlingState:     state,
	})

	if c.loopDisabled() {
		return nil
	}

	if triggered, err := c.safety.CheckCritical(ctx, now, reading.Raw); err != nil {
		c.logError(err, "Failed to request shutdown")
	} else if triggered {
		c.logger.Warn().
			Float64("temperature", float64(reading.Raw)).
			Float64("threshold", float64(c.policy.ShutdownTemperature)).
			Msg("Critical temperature reached, shutdown requested")
	}

	if c.policy.MonitorOnly {
		return nil
	}

	c.updateThermalLoad(ctx, load)

	power := c.pi.AvailablePower(errP, errI)
	c.recorder.RecordAvailablePower(power)
	if err := c.distributor.Distribute(ctx, power); err != nil {
		c.logError(err, "Power distribution incomplete")
	}

	return nil
}

// ThermalLoad returns the load last delivered to the consumer.
func (c *Controller) ThermalLoad() ThermalLoad {
	return c.thermalLoad
}

func (c *Controller) ThrottlingState() ThrottlingState {
	return c.throttle.State()
}

func (c *Controller) ErrorIntegral() float64 {
	return c.pi.ErrorIntegral()
}

// loopDisabled reports whether the loop is dormant: both gains at zero skip
// the safety check and all actuation. MonitorOnly keeps the safety check and
// only skips load updates and power distribution.
func (c *Controller) loopDisabled() bool {
	params := c.policy.Controller
	return params.ProportionalGain == 0 && params.IntegralGain == 0
}

func (c *Controller) updateThermalLoad(ctx context.Context, load ThermalLoad) {
	if load == c.thermalLoad {
		return
	}

	c.thermalLoad = load
	if err := c.consumer.UpdateThermalLoad(ctx, load); err != nil {
		c.logError(errors.New().Wrap(ErrLoadUpdate, err), "Failed to update thermal load")
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Controller) logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		c.logger.ErrorWithCode(appErr).Msg(msg)
		return
	}

	c.logger.Error().Err(err).Msg(msg)
}
