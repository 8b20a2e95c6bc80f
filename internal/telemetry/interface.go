package telemetry

import "codeberg.org/mutker/thermald/internal/history"

// HistorySource provides the throttle history served on the debug endpoint.
type HistorySource interface {
	Snapshot() history.Snapshot
}
