package history

import (
	"math"
	"time"

	"codeberg.org/mutker/thermald/internal/thermal"
)

const (
	maxTemperatureWindow  = 60 * time.Second
	maxTemperatureRecords = 2
)

// MaxTemperatureRecord is the highest raw temperature seen in one window.
type MaxTemperatureRecord struct {
	At          time.Duration   `json:"at_ns"`
	Temperature thermal.Celsius `json:"temperature_c"`
}

// maxTemperature keeps the maximum raw temperature of each window of
// samplesPerWindow readings, retaining the most recent records.
type maxTemperature struct {
	samplesPerWindow int
	samples          int
	max              thermal.Celsius
	records          []MaxTemperatureRecord
}

func newMaxTemperature(samplesPerWindow int) *maxTemperature {
	return &maxTemperature{
		samplesPerWindow: max(1, samplesPerWindow),
		max:              thermal.Celsius(math.Inf(-1)),
	}
}

func (m *maxTemperature) log(at time.Duration, temp thermal.Celsius) {
	if temp > m.max {
		m.max = temp
	}

	m.samples++
	if m.samples < m.samplesPerWindow {
		return
	}

	if len(m.records) >= maxTemperatureRecords {
		m.records = m.records[1:]
	}
	m.records = append(m.records, MaxTemperatureRecord{At: at, Temperature: m.max})

	m.samples = 0
	m.max = thermal.Celsius(math.Inf(-1))
}
