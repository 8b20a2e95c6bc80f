// Package crashreport files crash-style reports at the end of thermal
// throttling episodes so fleets of machines can be compared.
package crashreport

import (
	"context"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"github.com/getsentry/sentry-go"
)

const (
	ErrInit    = errors.ErrorCode("crashreport_init_failed")
	ErrCapture = errors.ErrorCode("crashreport_capture_failed")
)

const defaultFlushTimeout = 2 * time.Second

type Options struct {
	DSN          string
	Environment  string
	Release      string
	FlushTimeout time.Duration
}

// SentryReporter sends one event per report. Events sharing a signature are
// grouped by fingerprint.
type SentryReporter struct {
	episodeTracker

	hub          *sentry.Hub
	flushTimeout time.Duration
	logger       logger.Logger
}

func NewSentry(opts Options, log logger.Logger) (*SentryReporter, error) {
	return newSentry(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
	}, opts.FlushTimeout, log)
}

func newSentry(clientOpts sentry.ClientOptions, flushTimeout time.Duration, log logger.Logger) (*SentryReporter, error) {
	errFactory := errors.New()

	client, err := sentry.NewClient(clientOpts)
	if err != nil {
		return nil, errFactory.Wrap(ErrInit, err)
	}

	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}

	return &SentryReporter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: flushTimeout,
		logger:       log,
	}, nil
}

// FileCrashReport queues a report. Delivery happens in the background and is
// completed by Close.
func (r *SentryReporter) FileCrashReport(_ context.Context, signature string) error {
	errFactory := errors.New()

	event := sentry.NewEvent()
	event.Level = sentry.LevelWarning
	event.Message = "Thermal throttling episode: " + signature
	event.Fingerprint = []string{signature}
	event.Tags = r.tags()
	event.Tags["signature"] = signature

	id := r.hub.CaptureEvent(event)
	if id == nil {
		return errFactory.WithData(ErrCapture, signature)
	}

	r.logger.Debug().Str("signature", signature).Str("event_id", string(*id)).Msg("Crash report filed")

	return nil
}

// Close flushes pending reports.
func (r *SentryReporter) Close() {
	if !r.hub.Flush(r.flushTimeout) {
		r.logger.Warn().Dur("timeout", r.flushTimeout).Msg("Timed out flushing crash reports")
	}
}

var (
	_ Reporter = (*SentryReporter)(nil)
	_ Reporter = (*LogReporter)(nil)
)

// LogReporter writes reports to the log when no DSN is configured.
type LogReporter struct {
	episodeTracker

	logger logger.Logger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{logger: log}
}

func (r *LogReporter) FileCrashReport(_ context.Context, signature string) error {
	event := r.logger.Warn().Str("signature", signature)
	for k, v := range r.tags() {
		event = event.Str(k, v)
	}
	event.Msg("Crash report filed")
	return nil
}
