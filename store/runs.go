package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workflowai/gateway/adapter"
)

// FinalizeInput bundles everything Finalize needs: a completed (or failed)
// run's shape, plus the tenant whose credits it draws against.
type FinalizeInput struct {
	AgentUID  int64
	SchemaID  int
	TenantUID int64
	VersionID string
	Provider  string
	Model     string
	Status    Status
	TaskInput map[string]interface{}
	TaskOutput map[string]interface{}
	ErrorCode  string
	ErrorMsg   string
	Usage      adapter.Usage
	Duration   time.Duration
	Cached     bool
	PrivateInputPaths  []string
	PrivateOutputPaths []string
}

// Finalize runs the persist-then-decrement sequence (§4.8 steps 1-5): strip
// private fields, price the run, write it atomically, emit a
// RunCreatedEvent, then decrement the tenant's credit balance. A run that
// cannot be priced is still persisted (cost_usd left nil) so the record
// isn't lost, and is surfaced to the caller as adapter.KindUnpriceableRun.
func (s *Store) Finalize(ctx context.Context, in FinalizeInput, pub Publisher) (*Run, error) {
	if pub == nil {
		pub = NoOpPublisher{}
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("store: generate run id: %w", err)
	}

	run := &Run{
		ID:         runID.String(),
		AgentUID:   in.AgentUID,
		SchemaID:   in.SchemaID,
		VersionID:  in.VersionID,
		Status:     in.Status,
		Provider:   in.Provider,
		Model:      in.Model,
		TaskInput:  StripPrivateFields(in.TaskInput, in.PrivateInputPaths),
		TaskOutput: StripPrivateFields(in.TaskOutput, in.PrivateOutputPaths),
		ErrorCode:  in.ErrorCode,
		ErrorMsg:   in.ErrorMsg,
		Usage:      in.Usage,
		Duration:   in.Duration,
		Cached:     in.Cached,
		CreatedAt:  time.Now(),
	}

	var priceErr error
	if in.Status == StatusSuccess {
		cost, err := ComputeCost(in.Provider, in.Model, in.Usage)
		if err != nil {
			priceErr = err
		} else {
			run.CostUSD = &cost
		}
	}

	if err := s.insertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("store: persist run: %w", err)
	}

	event := RunCreatedEvent{
		RunID:     run.ID,
		AgentUID:  run.AgentUID,
		SchemaID:  run.SchemaID,
		TenantUID: in.TenantUID,
		Status:    run.Status,
	}
	if run.CostUSD != nil {
		event.CostUSD = *run.CostUSD
	}
	if err := pub.PublishRunCreated(event); err != nil {
		s.logger.Error("publish run created event failed", map[string]interface{}{"run_id": run.ID, "error": err.Error()})
	}

	if run.CostUSD != nil && *run.CostUSD > 0 {
		if _, err := s.DecrementCredits(ctx, in.TenantUID, *run.CostUSD); err != nil {
			s.logger.Error("credit decrement failed", map[string]interface{}{"tenant_uid": in.TenantUID, "run_id": run.ID, "error": err.Error()})
		}
	}

	if priceErr != nil {
		return run, &adapter.Error{Kind: adapter.KindUnpriceableRun, Message: priceErr.Error(), Err: priceErr}
	}
	return run, nil
}

func (s *Store) insertRun(ctx context.Context, r *Run) error {
	taskInput, err := json.Marshal(r.TaskInput)
	if err != nil {
		return fmt.Errorf("marshal task_input: %w", err)
	}
	taskOutput, err := json.Marshal(r.TaskOutput)
	if err != nil {
		return fmt.Errorf("marshal task_output: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (
			run_id, agent_uid, schema_id, version_id, status, provider, model,
			task_input, task_output, error_code, error_message,
			prompt_tokens, completion_tokens, cached_tokens, reasoning_tokens, audio_tokens,
			cost_usd, duration_seconds, cached, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		r.ID, r.AgentUID, r.SchemaID, r.VersionID, string(r.Status), r.Provider, r.Model,
		taskInput, taskOutput, r.ErrorCode, r.ErrorMsg,
		r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.CachedTokens, r.Usage.ReasoningTokens, r.Usage.AudioTokens,
		r.CostUSD, r.Duration.Seconds(), r.Cached, r.CreatedAt,
	)
	return err
}
