package telemetry

import (
	"context"
	"github.com/workflowai/gateway/core"
)

// GatewayMetricsRegistry implements core.MetricsRegistry
// This enables all gateway components to emit metrics through telemetry
type GatewayMetricsRegistry struct {
	logger *TelemetryLogger
}

// NewGatewayMetricsRegistry creates a new gateway-wide metrics registry
func NewGatewayMetricsRegistry(logger *TelemetryLogger) *GatewayMetricsRegistry {
	return &GatewayMetricsRegistry{
		logger: logger,
	}
}

// Counter implements core.MetricsRegistry
func (f *GatewayMetricsRegistry) Counter(name string, labels ...string) {
	// Debug log gateway metric emissions
	if f.logger != nil && f.logger.debug {
		f.logger.Debug("Gateway metric emission", map[string]interface{}{
			"metric_name": name,
			"type":        "counter",
			"label_count": len(labels) / 2,
			"source":      "gateway",
		})
	}

	// Delegate to telemetry's global emission
	Emit(name, 1.0, labels...)
}

// EmitWithContext implements core.MetricsRegistry
func (f *GatewayMetricsRegistry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	// Extract context for correlation
	baggage := GetBaggage(ctx)

	if f.logger != nil && f.logger.debug {
		// Log with context awareness
		requestID := ""
		if baggage != nil {
			if id, ok := baggage["request_id"]; ok {
				requestID = id
			}
		}

		f.logger.Debug("Gateway context-aware emission", map[string]interface{}{
			"metric_name":  name,
			"value":        value,
			"has_baggage":  len(baggage) > 0,
			"request_id":   requestID,
			"label_count":  len(labels) / 2,
			"source":       "gateway",
		})
	}

	// Use telemetry's context-aware emission
	EmitWithContext(ctx, name, value, labels...)
}

// GetBaggage implements core.MetricsRegistry
func (f *GatewayMetricsRegistry) GetBaggage(ctx context.Context) map[string]string {
	// GetBaggage returns Baggage type (map[string]string), so direct conversion works
	return GetBaggage(ctx)
}

// Gauge implements core.MetricsRegistry
func (f *GatewayMetricsRegistry) Gauge(name string, value float64, labels ...string) {
	if f.logger != nil && f.logger.debug {
		f.logger.Debug("Gateway metric emission", map[string]interface{}{
			"metric_name": name,
			"type":        "gauge",
			"value":       value,
			"label_count": len(labels) / 2,
			"source":      "gateway",
		})
	}

	Emit(name, value, labels...)
}

// Histogram implements core.MetricsRegistry
func (f *GatewayMetricsRegistry) Histogram(name string, value float64, labels ...string) {
	if f.logger != nil && f.logger.debug {
		f.logger.Debug("Gateway metric emission", map[string]interface{}{
			"metric_name": name,
			"type":        "histogram",
			"value":       value,
			"label_count": len(labels) / 2,
			"source":      "gateway",
		})
	}

	Emit(name, value, labels...)
}

// EnableGatewayIntegration registers the telemetry module with core
// This must be called after telemetry initialization to enable gateway-wide metrics
func EnableGatewayIntegration(logger *TelemetryLogger) {
	registry := NewGatewayMetricsRegistry(logger)

	// Register with core to enable gateway-wide metrics
	core.SetMetricsRegistry(registry)

	if logger != nil {
		logger.Info("Gateway telemetry integration enabled", map[string]interface{}{
			"integration": "core.MetricsRegistry",
			"impact":      "All gateway components can now emit metrics",
			"methods":     []string{"Counter", "EmitWithContext", "GetBaggage"},
		})
	}
}