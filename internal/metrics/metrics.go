// Package metrics keeps an sqlite log of controller iterations for offline
// tuning of the PI parameters.
package metrics

import (
	"sync"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
)

// service turns recorder callbacks into iteration rows. The available power
// of an iteration arrives after its snapshot, so each row is held back until
// the next snapshot or Close.
type service struct {
	repo    Repository
	now     func() time.Time
	mu      sync.Mutex
	pending *IterationRecord
	logger  logger.Logger
}

// No-op implementation
type noopCollector struct {
	thermal.NopRecorder
}

func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create metrics repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("Metrics service initialized successfully")

	return newService(repo, log), nil
}

func newService(repo Repository, log logger.Logger) *service {
	return &service{repo: repo, now: time.Now, logger: log}
}

func (s *service) RecordIteration(snap thermal.IterationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commit()
	s.pending = &IterationRecord{
		RecordedAt:          s.now(),
		Timestamp:           snap.Timestamp,
		TimeDelta:           snap.TimeDelta,
		RawTemperature:      float64(snap.RawTemperature),
		FilteredTemperature: float64(snap.FilteredTemperature),
		ErrorProportional:   snap.ErrorProportional,
		ErrorIntegral:       snap.ErrorIntegral,
		ThermalLoad:         uint32(snap.ThermalLoad),
		ThrottlingState:     string(snap.ThrottlingState),
	}
}

func (s *service) RecordAvailablePower(power thermal.Watts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		p := float64(power)
		s.pending.AvailablePower = &p
	}
}

// Throttle events are not persisted; the iteration rows carry the state.
func (*service) ThrottleStarted(time.Duration)                          {}
func (*service) ThrottleEnded(time.Duration, thermal.ThrottleEndReason) {}
func (*service) RecordActorPower(int, thermal.Watts)                    {}

func (s *service) Close() error {
	errFactory := errors.New()

	s.mu.Lock()
	s.commit()
	s.mu.Unlock()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}

func (s *service) commit() {
	if s.pending == nil {
		return
	}
	if err := s.repo.Record(s.pending); err != nil {
		s.logger.ErrorWithCode(errors.New().Wrap(ErrMetricsCollection, err)).Msg("Failed to record iteration")
	}
	s.pending = nil
}

func (*noopCollector) Close() error {
	return nil
}
