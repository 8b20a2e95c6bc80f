package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/thermald/internal/config"
	"codeberg.org/mutker/thermald/internal/crashreport"
	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/gpu"
	"codeberg.org/mutker/thermald/internal/history"
	"codeberg.org/mutker/thermald/internal/limiter"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/metrics"
	"codeberg.org/mutker/thermald/internal/pid"
	"codeberg.org/mutker/thermald/internal/powercap"
	"codeberg.org/mutker/thermald/internal/sensor"
	"codeberg.org/mutker/thermald/internal/shutdown"
	"codeberg.org/mutker/thermald/internal/telemetry"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/spf13/pflag"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Str("config_file", cfg.ConfigFile).Msg("Config loaded")

	if err := run(cfg); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("thermald stopped")
		}
		logger.Fatal().Err(err).Msg("thermald stopped")
	}
}

// app holds the adapters built from the configuration, closed in reverse
// order of construction.
type app struct {
	log     logger.Logger
	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func run(cfg *config.Config) error {
	errFactory := errors.New()

	if err := pid.Write(cfg.PIDFile); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	a := &app{log: logger.Default()}
	defer a.close()

	policy := cfg.PolicyParams()
	logPolicy(cfg, policy)

	clock := thermal.NewMonotonicClock()
	gpus := gpu.NewManager(a.log.With("gpu"))
	a.onClose(func() {
		if err := gpus.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down NVML")
		}
	})

	raw, err := buildSensor(cfg.Sensor, gpus, a.log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err).WithData("sensor")
	}

	actors, err := a.buildActors(cfg.Actors, gpus, !cfg.Monitor)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err).WithData("actors")
	}

	consumer, err := a.buildLimiter(ctx, cfg.Limiter)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err).WithData("limiter")
	}

	reporter, err := a.buildCrashReporter(cfg.CrashReport)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err).WithData("crash reporter")
	}

	hist := history.New(policy.Controller.SampleInterval)
	exporter := telemetry.NewExporter()
	exporter.SetParams(policy)

	collector, err := metrics.NewService(metrics.Config{
		DBPath:          cfg.Metrics.DBPath,
		BatchSize:       cfg.Metrics.BatchSize,
		BatchTimeout:    config.Seconds(cfg.Metrics.BatchTimeout),
		BackupOnMigrate: cfg.Metrics.BackupOnMigrate,
		Enabled:         cfg.Metrics.Enabled,
	}, a.log.With("metrics"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}
	a.onClose(func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close metrics")
		}
	})

	if cfg.Telemetry.Listen != "" {
		tcfg := telemetry.DefaultConfig()
		tcfg.Listen = cfg.Telemetry.Listen
		server, err := telemetry.NewServer(tcfg, exporter.Registry(), hist, a.log.With("telemetry"))
		if err != nil {
			return errFactory.Wrap(errors.ErrInitTelemetry, err)
		}
		server.Start()
		a.onClose(func() {
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to stop telemetry server")
			}
		})
	}

	ctrl, err := thermal.New(thermal.Config{
		Policy:        policy,
		Temperature:   sensor.NewFilteredSource(raw, policy.Controller.FilterTimeConstant, clock),
		Actors:        actors,
		Shutdown:      shutdown.NewCommandService(cfg.Shutdown.Command, cfg.Shutdown.PowerOffCommand, a.log.With("shutdown")),
		LoadConsumer:  consumer,
		CrashReporter: reporter,
		Recorder:      thermal.MultiRecorder{hist, exporter, collector, reporter},
		Clock:         clock,
		Logger:        a.log,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Power limits will not be changed, critical shutdown stays armed.")
	}
	logger.Info().Str("version", version).Msg("Thermal controller started")

	if err := ctrl.Run(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	logger.Info().Msg("Exiting...")
	return nil
}

func buildSensor(cfg config.SensorConfig, gpus *gpu.Manager, log logger.Logger) (sensor.RawSource, error) {
	switch cfg.Kind {
	case config.SensorNVML:
		return gpus.Open(cfg.Device)
	default:
		return sensor.NewHwmonSource(cfg.Key, log.With("sensor")), nil
	}
}

// buildActors creates the power actors in configuration order. With restore
// set, each actor's original limit is put back on exit.
func (a *app) buildActors(cfgs []config.ActorConfig, gpus *gpu.Manager, restore bool) ([]thermal.PowerActor, error) {
	actors := make([]thermal.PowerActor, 0, len(cfgs))

	for _, c := range cfgs {
		switch c.Kind {
		case config.ActorNVML:
			dev, err := gpus.Open(c.Device)
			if err != nil {
				return nil, err
			}
			actor, err := gpu.NewPowerActor(dev, a.log.With("gpu"))
			if err != nil {
				return nil, err
			}
			if restore {
				a.onClose(func() {
					if err := actor.ResetToDefault(); err != nil {
						logger.Error().Err(err).Int("device", c.Device).Msg("Failed to reset GPU power limit")
					}
				})
			}
			actors = append(actors, actor)

		default:
			actor := powercap.NewRaplActor(c.Name, c.Path, a.log.With("powercap"))
			initial, err := actor.CurrentLimit()
			if err != nil {
				return nil, err
			}
			if restore {
				a.onClose(func() {
					if _, err := actor.SetMaxPowerConsumption(context.Background(), initial); err != nil {
						logger.Error().Err(err).Str("zone", c.Name).Msg("Failed to restore power limit")
					}
				})
			}
			actors = append(actors, actor)
		}
	}

	return actors, nil
}

func (a *app) buildLimiter(ctx context.Context, cfg config.LimiterConfig) (thermal.LoadConsumer, error) {
	if cfg.Broker == "" {
		return limiter.NewLogConsumer(a.log.With("limiter")), nil
	}

	c := limiter.NewMQTT(limiter.Options{
		Broker:   cfg.Broker,
		Topic:    cfg.Topic,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		QoS:      cfg.QoS,
		Timeout:  config.Seconds(cfg.Timeout),
	}, a.log.With("limiter"))
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	a.onClose(c.Close)

	return c, nil
}

func (a *app) buildCrashReporter(cfg config.CrashReportConfig) (crashreport.Reporter, error) {
	if cfg.DSN == "" {
		return crashreport.NewLogReporter(a.log.With("crashreport")), nil
	}

	r, err := crashreport.NewSentry(crashreport.Options{
		DSN:          cfg.DSN,
		Environment:  cfg.Environment,
		Release:      "thermald@" + version,
		FlushTimeout: config.Seconds(cfg.FlushTimeout),
	}, a.log.With("crashreport"))
	if err != nil {
		return nil, err
	}
	a.onClose(r.Close)

	return r, nil
}

func logPolicy(cfg *config.Config, p thermal.PolicyParams) {
	c := p.Controller
	logger.Info().
		Dur("sample_interval", c.SampleInterval).
		Dur("filter_time_constant", c.FilterTimeConstant).
		Float64("target_temperature", float64(c.TargetTemperature)).
		Float64("e_integral_min", c.IntegralMin).
		Float64("e_integral_max", c.IntegralMax).
		Float64("sustainable_power", float64(c.SustainablePower)).
		Float64("proportional_gain", c.ProportionalGain).
		Float64("integral_gain", c.IntegralGain).
		Float64("thermal_shutdown_temperature", float64(p.ShutdownTemperature)).
		Dur("throttle_end_delay", p.ThrottleEndDelay).
		Str("sensor", cfg.Sensor.Kind).
		Int("actors", len(cfg.Actors)).
		Bool("monitor", p.MonitorOnly).
		Msg("Thermal policy")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
