package telemetry

// Config controls OpenTelemetry tracing for store and pipeline operations.
type Config struct {
	// Enabled turns tracing on. When false, Tracer() returns a no-op tracer.
	Enabled bool

	// ServiceName is reported on the trace resource.
	ServiceName string

	// ServiceVersion is reported on the trace resource.
	ServiceVersion string

	// SampleRate is the trace sampling rate, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns the default telemetry configuration (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "linegrid",
		ServiceVersion: "dev",
		SampleRate:     1.0,
	}
}
