package core

import "time"

// Environment variable names recognized by the gateway's configuration layer.
const (
	EnvPort    = "GATEWAY_PORT"
	EnvDevMode = "GATEWAY_DEV_MODE"
)

// Cache key conventions for the run cache (C7).
const (
	// RunCacheKeyPrefix namespaces fingerprint -> run-id mappings in the cache store.
	// Format: <prefix><agent_uid>:<schema_id>:<version_hash>:<task_input_hash>
	RunCacheKeyPrefix = "gateway:runcache:"

	// DefaultRunCacheTTL bounds how long a cache fingerprint remains valid.
	DefaultRunCacheTTL = 30 * 24 * time.Hour
)

// Tool naming convention (§4.6, GLOSSARY "Hosted tool").
const (
	// HostedToolPrefix marks a tool name as internal/hosted, e.g. "@web-search".
	HostedToolPrefix = "@"
)
