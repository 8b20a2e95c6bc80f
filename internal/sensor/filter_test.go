package sensor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	apperrors "codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClock struct{ now time.Duration }

func (c *stubClock) Now() time.Duration { return c.now }

type stubRaw struct {
	temps []thermal.Celsius
	err   error
}

func (s *stubRaw) ReadRaw(context.Context) (thermal.Celsius, error) {
	if s.err != nil {
		return 0, s.err
	}
	t := s.temps[0]
	s.temps = s.temps[1:]
	return t, nil
}

func TestFilteredSource(t *testing.T) {
	clock := &stubClock{}
	raw := &stubRaw{temps: []thermal.Celsius{50, 60, 60, 80}}
	src := NewFilteredSource(raw, 4*time.Second, clock)
	ctx := context.Background()

	clock.now = time.Second
	r, err := src.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, thermal.Reading{Raw: 50, Filtered: 50}, r, "first sample seeds the filter")

	// dt/tau = 0.25: 50 + 0.25*(60-50)
	clock.now = 2 * time.Second
	r, err = src.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, thermal.Celsius(60), r.Raw)
	assert.InDelta(t, 52.5, float64(r.Filtered), 1e-9)

	// dt/tau = 0.5: 52.5 + 0.5*(60-52.5)
	clock.now = 4 * time.Second
	r, err = src.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 56.25, float64(r.Filtered), 1e-9)

	// A gap longer than tau jumps straight to the raw value.
	clock.now = 20 * time.Second
	r, err = src.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 80, float64(r.Filtered), 1e-9)
}

func TestFilteredSourceWithoutTimeConstant(t *testing.T) {
	clock := &stubClock{}
	src := NewFilteredSource(&stubRaw{temps: []thermal.Celsius{50, 70}}, 0, clock)

	_, err := src.ReadTemperature(context.Background())
	require.NoError(t, err)
	clock.now = time.Second
	r, err := src.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, thermal.Reading{Raw: 70, Filtered: 70}, r)
}

func TestFilteredSourceRejectsNonFiniteSamples(t *testing.T) {
	clock := &stubClock{}
	temps := []thermal.Celsius{50, thermal.Celsius(math.NaN()), thermal.Celsius(math.Inf(1)), 60}
	src := NewFilteredSource(&stubRaw{temps: temps}, 10*time.Second, clock)

	_, err := src.ReadTemperature(context.Background())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		clock.now += time.Second
		_, err = src.ReadTemperature(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, ErrInvalidReading))
	}

	// The filter still holds 50 and measures dt from the last good sample.
	clock.now += time.Second
	r, err := src.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 53, float64(r.Filtered), 1e-9)
}

func TestFilteredSourcePropagatesErrors(t *testing.T) {
	boom := errors.New("sensor gone")
	src := NewFilteredSource(&stubRaw{err: boom}, time.Second, &stubClock{})

	_, err := src.ReadTemperature(context.Background())
	assert.ErrorIs(t, err, boom)
}
