package thermal

import "context"

// TemperatureSource produces the raw and filtered temperature.
type TemperatureSource interface {
	ReadTemperature(ctx context.Context) (Reading, error)
}

// PowerActor is a CPU power domain. It is offered a budget and replies with
// what it actually used, which must not exceed the offer.
type PowerActor interface {
	SetMaxPowerConsumption(ctx context.Context, offered Watts) (Watts, error)
}

// ShutdownService takes the system down.
type ShutdownService interface {
	Shutdown(ctx context.Context, req ShutdownRequest) error
}

// LoadConsumer receives thermal load updates, typically a rate limiter.
type LoadConsumer interface {
	UpdateThermalLoad(ctx context.Context, load ThermalLoad) error
}

// CrashReporter files a crash report under a signature.
type CrashReporter interface {
	FileCrashReport(ctx context.Context, signature string) error
}
