// Package history keeps an in-memory record of recent throttling episodes
// and controller state for diagnostics.
package history

import (
	"sync"
	"time"

	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of episodes retained.
const DefaultCapacity = 10

const (
	loadBuckets  = 100
	powerBuckets = 100
	powerStep    = 0.1
)

// Episode is one throttling episode.
type Episode struct {
	ID             uuid.UUID                 `json:"id"`
	Sequence       int                       `json:"sequence"`
	Start          time.Duration             `json:"start_ns"`
	End            time.Duration             `json:"end_ns,omitempty"`
	EndReason      thermal.ThrottleEndReason `json:"end_reason,omitempty"`
	ThermalLoad    *LinearHistogram          `json:"thermal_load_hist"`
	AvailablePower *LinearHistogram          `json:"available_power_hist"`
	ActorPower     []*LinearHistogram        `json:"actor_power_hist"`
}

func newEpisode(seq int, start time.Duration) *Episode {
	return &Episode{
		ID:             uuid.New(),
		Sequence:       seq,
		Start:          start,
		ThermalLoad:    NewLinearHistogram(0, 1, loadBuckets),
		AvailablePower: NewLinearHistogram(0, powerStep, powerBuckets),
	}
}

func (e *Episode) actorPower(index int) *LinearHistogram {
	for len(e.ActorPower) <= index {
		e.ActorPower = append(e.ActorPower, NewLinearHistogram(0, powerStep, powerBuckets))
	}
	return e.ActorPower[index]
}

func (e *Episode) clone() Episode {
	c := *e
	c.ThermalLoad = e.ThermalLoad.clone()
	c.AvailablePower = e.AvailablePower.clone()
	c.ActorPower = make([]*LinearHistogram, len(e.ActorPower))
	for i, h := range e.ActorPower {
		c.ActorPower[i] = h.clone()
	}
	return c
}

// State is the controller state after the latest iteration.
type State struct {
	Timestamp           time.Duration           `json:"timestamp_ns"`
	TimeDelta           time.Duration           `json:"time_delta_ns"`
	MaxTimeDelta        time.Duration           `json:"max_time_delta_ns"`
	RawTemperature      thermal.Celsius         `json:"temperature_raw_c"`
	FilteredTemperature thermal.Celsius         `json:"temperature_filtered_c"`
	ErrorIntegral       float64                 `json:"error_integral"`
	ThermalLoad         thermal.ThermalLoad     `json:"thermal_load"`
	ThrottlingState     thermal.ThrottlingState `json:"throttling_state"`
}

// Snapshot is a point-in-time copy of the history.
type Snapshot struct {
	State           State                  `json:"state"`
	EpisodeCount    int                    `json:"episode_count"`
	Throttling      bool                   `json:"throttling"`
	Episodes        []Episode              `json:"throttle_history"`
	MaxTemperatures []MaxTemperatureRecord `json:"historical_max_temperature"`
}

// History implements thermal.Recorder. Readings are only attributed to an
// episode while throttling is active.
type History struct {
	mu       sync.Mutex
	capacity int
	count    int
	active   bool
	episodes []*Episode
	maxTemp  *maxTemperature
	state    State
}

var _ thermal.Recorder = (*History)(nil)

// New returns a history keeping DefaultCapacity episodes and one maximum
// temperature record per minute of samples.
func New(sampleInterval time.Duration) *History {
	samples := 1
	if sampleInterval > 0 {
		samples = int(maxTemperatureWindow / sampleInterval)
	}
	return newHistory(DefaultCapacity, samples)
}

func newHistory(capacity, samplesPerWindow int) *History {
	return &History{
		capacity: capacity,
		episodes: make([]*Episode, 0, capacity),
		maxTemp:  newMaxTemperature(samplesPerWindow),
	}
}

func (h *History) RecordIteration(s thermal.IterationSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = State{
		Timestamp:           s.Timestamp,
		TimeDelta:           s.TimeDelta,
		MaxTimeDelta:        s.MaxTimeDelta,
		RawTemperature:      s.RawTemperature,
		FilteredTemperature: s.FilteredTemperature,
		ErrorIntegral:       s.ErrorIntegral,
		ThermalLoad:         s.ThermalLoad,
		ThrottlingState:     s.ThrottlingState,
	}
	h.maxTemp.log(s.Timestamp, s.RawTemperature)

	if e := h.current(); e != nil {
		e.ThermalLoad.Insert(float64(s.ThermalLoad))
	}
}

// ThrottleStarted opens a new episode, evicting the oldest one when full.
// It is ignored while an episode is already open.
func (h *History) ThrottleStarted(ts time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		return
	}

	if len(h.episodes) >= h.capacity {
		h.episodes = h.episodes[1:]
	}
	h.episodes = append(h.episodes, newEpisode(h.count, ts))
	h.count++
	h.active = true
}

// ThrottleEnded closes the open episode, if any.
func (h *History) ThrottleEnded(ts time.Duration, reason thermal.ThrottleEndReason) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.current()
	if e == nil {
		return
	}
	e.End = ts
	e.EndReason = reason
	h.active = false
}

func (h *History) RecordAvailablePower(power thermal.Watts) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e := h.current(); e != nil {
		e.AvailablePower.Insert(float64(power))
	}
}

func (h *History) RecordActorPower(index int, used thermal.Watts) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e := h.current(); e != nil {
		e.actorPower(index).Insert(float64(used))
	}
}

func (h *History) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Snapshot{
		State:           h.state,
		EpisodeCount:    h.count,
		Throttling:      h.active,
		Episodes:        make([]Episode, len(h.episodes)),
		MaxTemperatures: append([]MaxTemperatureRecord(nil), h.maxTemp.records...),
	}
	for i, e := range h.episodes {
		s.Episodes[i] = e.clone()
	}

	return s
}

func (h *History) current() *Episode {
	if !h.active {
		return nil
	}
	return h.episodes[len(h.episodes)-1]
}
