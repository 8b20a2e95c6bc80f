package metrics

import (
	"time"

	"codeberg.org/mutker/thermald/internal/thermal"
)

// Collector records controller iterations.
type Collector interface {
	thermal.Recorder
	Close() error
}

// Repository defines the interface for iteration log storage
type Repository interface {
	Record(rec *IterationRecord) error
	Close() error
}

// IterationRecord is one row of the iteration log.
type IterationRecord struct {
	RecordedAt          time.Time
	Timestamp           time.Duration
	TimeDelta           time.Duration
	RawTemperature      float64
	FilteredTemperature float64
	ErrorProportional   float64
	ErrorIntegral       float64
	ThermalLoad         uint32
	ThrottlingState     string
	// AvailablePower is nil when the loop did not distribute power.
	AvailablePower *float64
}
