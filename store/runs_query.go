package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/workflowai/gateway/core"
)

// GetRun fetches a single run by id, used both by the native run-fetch
// endpoint and by the use_cache "auto"/"always" cache-hit path that returns
// a previously cached run verbatim instead of re-executing.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, agent_uid, schema_id, version_id, status, provider, model,
		       task_input, task_output, error_code, error_message,
		       prompt_tokens, completion_tokens, cached_tokens, reasoning_tokens, audio_tokens,
		       cost_usd, duration_seconds, cached, created_at
		FROM runs WHERE run_id = $1
	`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: get run %q: %w", runID, core.ErrRunNotFound)
		}
		return nil, fmt.Errorf("store: get run %q: %w", runID, err)
	}
	return run, nil
}

// SearchRuns lists the most recent runs for (agentUID, schemaID), newest
// first, bounded by limit (spec §6 "Search runs"). A limit <= 0 defaults to
// 50.
func (s *Store) SearchRuns(ctx context.Context, agentUID int64, schemaID int, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, agent_uid, schema_id, version_id, status, provider, model,
		       task_input, task_output, error_code, error_message,
		       prompt_tokens, completion_tokens, cached_tokens, reasoning_tokens, audio_tokens,
		       cost_usd, duration_seconds, cached, created_at
		FROM runs WHERE agent_uid = $1 AND schema_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, agentUID, schemaID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows, letting scanRun back
// both GetRun (single row) and SearchRuns (row set).
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var status, version string
	var taskInput, taskOutput []byte
	var durationSeconds float64

	err := row.Scan(
		&r.ID, &r.AgentUID, &r.SchemaID, &version, &status, &r.Provider, &r.Model,
		&taskInput, &taskOutput, &r.ErrorCode, &r.ErrorMsg,
		&r.Usage.PromptTokens, &r.Usage.CompletionTokens, &r.Usage.CachedTokens, &r.Usage.ReasoningTokens, &r.Usage.AudioTokens,
		&r.CostUSD, &durationSeconds, &r.Cached, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.VersionID = version
	r.Status = Status(status)
	r.Duration = time.Duration(durationSeconds * float64(time.Second))

	if len(taskInput) > 0 {
		var v interface{}
		if err := json.Unmarshal(taskInput, &v); err != nil {
			return nil, fmt.Errorf("unmarshal task_input: %w", err)
		}
		r.TaskInput = v
	}
	if len(taskOutput) > 0 {
		var v interface{}
		if err := json.Unmarshal(taskOutput, &v); err != nil {
			return nil, fmt.Errorf("unmarshal task_output: %w", err)
		}
		r.TaskOutput = v
	}

	return &r, nil
}
