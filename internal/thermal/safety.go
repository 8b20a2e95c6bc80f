package thermal

import (
	"context"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
)

// SafetyMonitor requests a reboot once the raw temperature reaches the
// shutdown threshold.
type SafetyMonitor struct {
	threshold Celsius
	shutdown  ShutdownService
	recorder  Recorder
}

func NewSafetyMonitor(threshold Celsius, shutdown ShutdownService, recorder Recorder) *SafetyMonitor {
	return &SafetyMonitor{
		threshold: threshold,
		shutdown:  shutdown,
		recorder:  recorder,
	}
}

// CheckCritical sends one shutdown request when raw is at or above the
// threshold and reports whether it did. Delivery failures are returned and
// never retried.
func (s *SafetyMonitor) CheckCritical(ctx context.Context, now time.Duration, raw Celsius) (bool, error) {
	if raw < s.threshold {
		return false, nil
	}

	s.recorder.ThrottleEnded(now, ThrottleEndShutdown)

	req := ShutdownRequest{Reboot: true, Reason: ReasonHighTemperature}
	if err := s.shutdown.Shutdown(ctx, req); err != nil {
		return true, errors.New().Wrap(ErrShutdownFailed, err).WithData(raw)
	}

	return true, nil
}
