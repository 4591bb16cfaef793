package telemetry

import "context"

// CoreLogger adapts a TelemetryLogger to core.Logger (the interface every
// component in this module accepts), by discarding the context on the
// *WithContext variants the same way core.NoOpLogger does: TelemetryLogger
// has no span/trace correlation to add from it today.
type CoreLogger struct {
	*TelemetryLogger
}

// NewCoreLogger wraps a TelemetryLogger so it satisfies core.Logger.
func NewCoreLogger(serviceName string) *CoreLogger {
	return &CoreLogger{TelemetryLogger: NewTelemetryLogger(serviceName)}
}

func (l *CoreLogger) InfoWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.Info(msg, fields)
}

func (l *CoreLogger) ErrorWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.Error(msg, fields)
}

func (l *CoreLogger) WarnWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.Warn(msg, fields)
}

func (l *CoreLogger) DebugWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.Debug(msg, fields)
}
