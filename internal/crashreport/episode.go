package crashreport

import (
	"strconv"
	"time"

	"codeberg.org/mutker/thermald/internal/thermal"
)

// Reporter files crash reports and follows the controller's diagnostics to
// describe the episode being reported.
type Reporter interface {
	thermal.CrashReporter
	thermal.Recorder
}

// episodeTracker keeps the context of the current throttling episode. It is
// only used from the controller goroutine.
type episodeTracker struct {
	started  bool
	active   bool
	start    time.Duration
	end      time.Duration
	peakLoad thermal.ThermalLoad
	peakTemp thermal.Celsius
}

func (t *episodeTracker) RecordIteration(s thermal.IterationSnapshot) {
	if !t.active {
		return
	}
	t.peakLoad = max(t.peakLoad, s.ThermalLoad)
	t.peakTemp = max(t.peakTemp, s.RawTemperature)
}

func (t *episodeTracker) ThrottleStarted(ts time.Duration) {
	*t = episodeTracker{started: true, active: true, start: ts}
}

func (t *episodeTracker) ThrottleEnded(ts time.Duration, _ thermal.ThrottleEndReason) {
	if !t.active {
		return
	}
	t.active = false
	t.end = ts
}

func (t *episodeTracker) RecordAvailablePower(thermal.Watts)  {}
func (t *episodeTracker) RecordActorPower(int, thermal.Watts) {}

// tags describes the latest episode. It is empty before the first one.
func (t *episodeTracker) tags() map[string]string {
	if !t.started {
		return map[string]string{}
	}

	tags := map[string]string{
		"episode_start":      t.start.String(),
		"peak_thermal_load":  strconv.FormatUint(uint64(t.peakLoad), 10),
		"peak_temperature_c": strconv.FormatFloat(float64(t.peakTemp), 'f', 1, 64),
	}
	if !t.active {
		tags["episode_duration"] = (t.end - t.start).String()
	}

	return tags
}
