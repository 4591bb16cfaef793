package telemetry

// This file contains metric declarations for all gateway modules
// It's in the telemetry package to avoid import cycles

func init() {
	// Run engine metrics (C4 runner/fallback orchestrator)
	DeclareMetrics("run", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:    "run.duration_ms",
				Type:    "histogram",
				Help:    "Total run duration in milliseconds",
				Labels:  []string{"agent_uid", "status"},
				Unit:    "ms",
				Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000},
			},
			{
				Name:   "run.completed",
				Type:   "counter",
				Help:   "Completed runs",
				Labels: []string{"agent_uid", "status"},
			},
			{
				Name:   "run.fallback_attempts",
				Type:   "counter",
				Help:   "Fallback attempts made while executing a run",
				Labels: []string{"agent_uid", "provider", "model"},
			},
			{
				Name:   "run.tool_loop_iterations",
				Type:   "histogram",
				Help:   "Number of tool-call loop iterations per run",
				Labels: []string{"agent_uid"},
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		},
	})

	// Provider adapter metrics (C3)
	DeclareMetrics("provider", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "provider.requests",
				Type:   "counter",
				Help:   "Provider HTTP requests issued",
				Labels: []string{"provider", "model"},
			},
			{
				Name:    "provider.request.duration_ms",
				Type:    "histogram",
				Help:    "Provider HTTP request duration",
				Labels:  []string{"provider", "model", "status"},
				Unit:    "ms",
				Buckets: []float64{50, 100, 500, 1000, 5000, 30000},
			},
			{
				Name:   "provider.errors",
				Type:   "counter",
				Help:   "Provider request errors by canonical error kind",
				Labels: []string{"provider", "model", "error_kind"},
			},
			{
				Name:   "provider.tokens",
				Type:   "counter",
				Help:   "Tokens consumed per provider response",
				Labels: []string{"provider", "model", "token_type"},
			},
		},
	})

	// Run cache metrics (C7)
	DeclareMetrics("runcache", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "runcache.lookups",
				Type:   "counter",
				Help:   "Run cache lookups",
				Labels: []string{"agent_uid", "result"},
			},
			{
				Name:    "runcache.lookup.duration_ms",
				Type:    "histogram",
				Help:    "Run cache lookup duration",
				Labels:  []string{"result"},
				Unit:    "ms",
				Buckets: []float64{0.1, 1, 10, 50, 100},
			},
			{
				Name:   "runcache.entries",
				Type:   "gauge",
				Help:   "Cached run fingerprint entries tracked",
				Labels: []string{"agent_uid"},
			},
		},
	})

	// Tool execution metrics (C6)
	DeclareMetrics("tool", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "tool.executions",
				Type:   "counter",
				Help:   "Tool executions",
				Labels: []string{"tool_name", "hosted", "status"},
			},
			{
				Name:    "tool.execution.duration_ms",
				Type:    "histogram",
				Help:    "Tool execution duration",
				Labels:  []string{"tool_name", "hosted"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 1000, 10000, 30000},
			},
		},
	})
}
