// Package telemetry exposes controller state as Prometheus metrics.
package telemetry

import (
	"strconv"
	"time"

	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var throttlingStates = []thermal.ThrottlingState{
	thermal.ThrottlingInactive,
	thermal.ThrottlingActive,
	thermal.CooldownActive,
}

// Exporter implements thermal.Recorder on a private registry.
type Exporter struct {
	registry *prometheus.Registry

	iterations          prometheus.Counter
	temperatureRaw      prometheus.Gauge
	temperatureFiltered prometheus.Gauge
	errorProportional   prometheus.Gauge
	errorIntegral       prometheus.Gauge
	thermalLoad         prometheus.Gauge
	throttlingState     *prometheus.GaugeVec
	maxTimeDelta        prometheus.Gauge
	availablePower      prometheus.Gauge
	actorPower          *prometheus.GaugeVec
	throttleStarted     prometheus.Counter
	throttleEnded       *prometheus.CounterVec
	params              *prometheus.GaugeVec
}

var _ thermal.Recorder = (*Exporter)(nil)

func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Exporter{
		registry: reg,
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "iterations_total",
			Help:      "Total number of completed controller iterations",
		}),
		temperatureRaw:      gauge("temperature_raw_celsius", "Unfiltered temperature"),
		temperatureFiltered: gauge("temperature_filtered_celsius", "Filtered temperature driving the controller"),
		errorProportional:   gauge("error_proportional", "Target minus filtered temperature"),
		errorIntegral:       gauge("error_integral", "Clamped integral of the temperature error"),
		thermalLoad:         gauge("thermal_load", "Thermal load reported to rate limiters (0-100)"),
		throttlingState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "throttling_state",
			Help:      "1 for the current throttling state, 0 otherwise",
		}, []string{"state"}),
		maxTimeDelta:   gauge("max_time_delta_seconds", "Largest time between two iterations"),
		availablePower: gauge("available_power_watts", "Power budget computed by the controller"),
		actorPower: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "actor_power_watts",
			Help:      "Power used by each actor in the last distribution",
		}, []string{"actor"}),
		throttleStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "throttle_started_total",
			Help:      "Total number of throttling episodes started",
		}),
		throttleEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "throttle_ended_total",
			Help:      "Total number of throttling episodes ended, by reason",
		}, []string{"reason"}),
		params: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "param",
			Help:      "Configured controller and policy parameters",
		}, []string{"name"}),
	}
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// SetParams publishes the configuration so dashboards can show it next to
// the readings.
func (e *Exporter) SetParams(p thermal.PolicyParams) {
	c := p.Controller
	for name, v := range map[string]float64{
		"sample_interval_seconds":              c.SampleInterval.Seconds(),
		"filter_time_constant_seconds":         c.FilterTimeConstant.Seconds(),
		"target_temperature_celsius":           float64(c.TargetTemperature),
		"e_integral_min":                       c.IntegralMin,
		"e_integral_max":                       c.IntegralMax,
		"sustainable_power_watts":              float64(c.SustainablePower),
		"proportional_gain":                    c.ProportionalGain,
		"integral_gain":                        c.IntegralGain,
		"thermal_shutdown_temperature_celsius": float64(p.ShutdownTemperature),
		"throttle_end_delay_seconds":           p.ThrottleEndDelay.Seconds(),
	} {
		e.params.WithLabelValues(name).Set(v)
	}
}

func (e *Exporter) RecordIteration(s thermal.IterationSnapshot) {
	e.iterations.Inc()
	e.temperatureRaw.Set(float64(s.RawTemperature))
	e.temperatureFiltered.Set(float64(s.FilteredTemperature))
	e.errorProportional.Set(s.ErrorProportional)
	e.errorIntegral.Set(s.ErrorIntegral)
	e.thermalLoad.Set(float64(s.ThermalLoad))
	e.maxTimeDelta.Set(s.MaxTimeDelta.Seconds())

	for _, state := range throttlingStates {
		v := 0.0
		if state == s.ThrottlingState {
			v = 1
		}
		e.throttlingState.WithLabelValues(string(state)).Set(v)
	}
}

func (e *Exporter) ThrottleStarted(time.Duration) {
	e.throttleStarted.Inc()
}

func (e *Exporter) ThrottleEnded(_ time.Duration, reason thermal.ThrottleEndReason) {
	e.throttleEnded.WithLabelValues(string(reason)).Inc()
}

func (e *Exporter) RecordAvailablePower(power thermal.Watts) {
	e.availablePower.Set(float64(power))
}

func (e *Exporter) RecordActorPower(index int, used thermal.Watts) {
	e.actorPower.WithLabelValues(strconv.Itoa(index)).Set(float64(used))
}
