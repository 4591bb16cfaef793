package store

import (
	"time"

	"github.com/workflowai/gateway/adapter"
)

// Status is the terminal state of a persisted run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Run is a finalized run record, ready to persist. TaskInput/TaskOutput are
// already stripped of any private subpaths (§4.8) by the time a Run reaches
// Finalize.
type Run struct {
	ID          string
	AgentUID    int64
	SchemaID    int
	VersionID   string
	Status      Status
	Provider    string
	Model       string
	TaskInput   interface{}
	TaskOutput  interface{}
	ErrorCode   string
	ErrorMsg    string
	Usage       adapter.Usage
	CostUSD     *float64
	Duration    time.Duration
	Cached      bool
	CreatedAt   time.Time
}

// RunCreatedEvent is emitted once a run has been durably persisted, for
// downstream consumers: analytics, deployment tracking, credit decrement
// (§4.8 step 4).
type RunCreatedEvent struct {
	RunID     string
	AgentUID  int64
	SchemaID  int
	TenantUID int64
	CostUSD   float64
	Status    Status
}

// Publisher delivers a RunCreatedEvent to whatever downstream consumer the
// deployment wires up (a message queue, an in-process fan-out, a no-op in
// tests). Kept minimal and synchronous: the run's own persistence does not
// depend on delivery succeeding.
type Publisher interface {
	PublishRunCreated(event RunCreatedEvent) error
}

// NoOpPublisher discards every event. Useful as a default and in tests that
// don't assert on event delivery.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishRunCreated(RunCreatedEvent) error { return nil }
