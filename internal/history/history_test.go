package history

import (
	"testing"
	"time"

	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iteration(ts time.Duration, raw thermal.Celsius, load thermal.ThermalLoad) thermal.IterationSnapshot {
	return thermal.IterationSnapshot{
		Timestamp:           ts,
		TimeDelta:           time.Second,
		MaxTimeDelta:        time.Second,
		RawTemperature:      raw,
		FilteredTemperature: raw,
		ThermalLoad:         load,
		ThrottlingState:     thermal.ThrottlingActive,
	}
}

func TestReadingsIgnoredWhileInactive(t *testing.T) {
	h := newHistory(DefaultCapacity, 60)

	h.RecordIteration(iteration(time.Second, 70, 0))
	h.RecordAvailablePower(5)
	h.RecordActorPower(0, 5)
	h.ThrottleEnded(2*time.Second, thermal.ThrottleEndMitigated)

	s := h.Snapshot()
	assert.Empty(t, s.Episodes)
	assert.Equal(t, 0, s.EpisodeCount)
	assert.Equal(t, thermal.Celsius(70), s.State.RawTemperature)
}

func TestEpisodeLifecycle(t *testing.T) {
	h := newHistory(DefaultCapacity, 60)

	h.ThrottleStarted(10 * time.Second)
	h.ThrottleStarted(11 * time.Second)
	h.RecordIteration(iteration(10*time.Second, 90, 25))
	h.RecordIteration(iteration(11*time.Second, 91, 25))
	h.RecordAvailablePower(0.55)
	h.RecordActorPower(0, 0.35)
	h.RecordActorPower(1, 0.25)
	h.ThrottleEnded(20*time.Second, thermal.ThrottleEndMitigated)
	h.RecordIteration(iteration(21*time.Second, 80, 0))

	s := h.Snapshot()
	require.Len(t, s.Episodes, 1)
	assert.False(t, s.Throttling)

	e := s.Episodes[0]
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, 10*time.Second, e.Start, "a second start while active is ignored")
	assert.Equal(t, 20*time.Second, e.End)
	assert.Equal(t, thermal.ThrottleEndMitigated, e.EndReason)

	assert.Equal(t, uint64(2), e.ThermalLoad.Total())
	assert.Equal(t, uint64(2), e.ThermalLoad.Counts[26])
	assert.Equal(t, uint64(1), e.AvailablePower.Counts[6])
	require.Len(t, e.ActorPower, 2)
	assert.Equal(t, uint64(1), e.ActorPower[0].Counts[4])
	assert.Equal(t, uint64(1), e.ActorPower[1].Counts[3])
}

func TestShutdownEndsEpisode(t *testing.T) {
	h := newHistory(DefaultCapacity, 60)

	h.ThrottleStarted(time.Second)
	h.ThrottleEnded(5*time.Second, thermal.ThrottleEndShutdown)

	s := h.Snapshot()
	require.Len(t, s.Episodes, 1)
	assert.Equal(t, thermal.ThrottleEndShutdown, s.Episodes[0].EndReason)
}

func TestCapacity(t *testing.T) {
	h := newHistory(3, 60)

	for i := 0; i < 5; i++ {
		ts := time.Duration(i) * time.Minute
		h.ThrottleStarted(ts)
		h.ThrottleEnded(ts+time.Second, thermal.ThrottleEndMitigated)
	}

	s := h.Snapshot()
	assert.Equal(t, 5, s.EpisodeCount)
	require.Len(t, s.Episodes, 3)
	assert.Equal(t, 2, s.Episodes[0].Sequence)
	assert.Equal(t, 4, s.Episodes[2].Sequence)
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHistory(DefaultCapacity, 60)
	h.ThrottleStarted(0)
	h.RecordIteration(iteration(0, 90, 10))

	s := h.Snapshot()
	h.RecordIteration(iteration(time.Second, 90, 10))

	assert.Equal(t, uint64(1), s.Episodes[0].ThermalLoad.Total())
	assert.Equal(t, uint64(2), h.Snapshot().Episodes[0].ThermalLoad.Total())
}

func TestMaxTemperature(t *testing.T) {
	t.Run("recorded after a full window", func(t *testing.T) {
		h := newHistory(DefaultCapacity, 10)
		for i := 0; i < 9; i++ {
			h.RecordIteration(iteration(time.Duration(i)*time.Second, 50, 0))
		}
		assert.Empty(t, h.Snapshot().MaxTemperatures)

		h.RecordIteration(iteration(9*time.Second, 50, 0))
		assert.Equal(t, []MaxTemperatureRecord{{At: 9 * time.Second, Temperature: 50}}, h.Snapshot().MaxTemperatures)
	})

	t.Run("max resets each window", func(t *testing.T) {
		h := newHistory(DefaultCapacity, 2)
		for _, temp := range []thermal.Celsius{50, 50, 40, 40} {
			h.RecordIteration(iteration(0, temp, 0))
		}
		records := h.Snapshot().MaxTemperatures
		require.Len(t, records, 2)
		assert.Equal(t, thermal.Celsius(50), records[0].Temperature)
		assert.Equal(t, thermal.Celsius(40), records[1].Temperature)
	})

	t.Run("picks the maximum", func(t *testing.T) {
		h := newHistory(DefaultCapacity, 3)
		for _, temp := range []thermal.Celsius{10, 30, 20} {
			h.RecordIteration(iteration(0, temp, 0))
		}
		assert.Equal(t, thermal.Celsius(30), h.Snapshot().MaxTemperatures[0].Temperature)
	})

	t.Run("keeps the last two records", func(t *testing.T) {
		h := newHistory(DefaultCapacity, 1)
		for i := 1; i <= 3; i++ {
			h.RecordIteration(iteration(time.Duration(i)*time.Second, thermal.Celsius(i), 0))
		}
		records := h.Snapshot().MaxTemperatures
		require.Len(t, records, 2)
		assert.Equal(t, 2*time.Second, records[0].At)
		assert.Equal(t, 3*time.Second, records[1].At)
	})
}

func TestNewWindowFromInterval(t *testing.T) {
	assert.Equal(t, 60, New(time.Second).maxTemp.samplesPerWindow)
	assert.Equal(t, 30, New(2*time.Second).maxTemp.samplesPerWindow)
	assert.Equal(t, 1, New(0).maxTemp.samplesPerWindow)
}

func TestLinearHistogram(t *testing.T) {
	h := NewLinearHistogram(0, 0.1, 100)
	require.Len(t, h.Counts, 102)

	h.Insert(-1)
	h.Insert(0)
	h.Insert(0.15)
	h.Insert(9.99)
	h.Insert(10)
	h.Insert(250)

	assert.Equal(t, uint64(1), h.Counts[0], "underflow")
	assert.Equal(t, uint64(1), h.Counts[1])
	assert.Equal(t, uint64(1), h.Counts[2])
	assert.Equal(t, uint64(1), h.Counts[100])
	assert.Equal(t, uint64(2), h.Counts[101], "overflow")
	assert.Equal(t, uint64(6), h.Total())
}
