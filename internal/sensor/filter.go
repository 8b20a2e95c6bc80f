package sensor

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/thermal"
)

// FilteredSource smooths a raw source with a first order low-pass filter.
// The first sample seeds the filter.
type FilteredSource struct {
	raw   RawSource
	tau   time.Duration
	clock thermal.Clock

	filtered    thermal.Celsius
	lastSample  time.Duration
	initialized bool
}

func NewFilteredSource(raw RawSource, timeConstant time.Duration, clock thermal.Clock) *FilteredSource {
	return &FilteredSource{
		raw:   raw,
		tau:   timeConstant,
		clock: clock,
	}
}

// ReadTemperature implements thermal.TemperatureSource. A non-finite raw
// sample is rejected and leaves the filter untouched.
func (s *FilteredSource) ReadTemperature(ctx context.Context) (thermal.Reading, error) {
	raw, err := s.raw.ReadRaw(ctx)
	if err != nil {
		return thermal.Reading{}, err
	}
	if math.IsNaN(float64(raw)) || math.IsInf(float64(raw), 0) {
		return thermal.Reading{}, errors.New().WithData(ErrInvalidReading, float64(raw))
	}

	now := s.clock.Now()
	if !s.initialized {
		s.filtered = raw
		s.initialized = true
	} else {
		s.filtered += thermal.Celsius(s.alpha(now-s.lastSample)) * (raw - s.filtered)
	}
	s.lastSample = now

	return thermal.Reading{Raw: raw, Filtered: s.filtered}, nil
}

func (s *FilteredSource) alpha(dt time.Duration) float64 {
	if s.tau <= 0 {
		return 1
	}

	a := dt.Seconds() / s.tau.Seconds()
	if a > 1 {
		return 1
	}
	if a < 0 {
		return 0
	}

	return a
}
