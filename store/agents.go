package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/workflowai/gateway/version"
)

// Agent is a tenant-scoped, lazily-created entity (spec §3 "Agent"). AgentUID
// is the process-wide unique numeric id; AgentID is the URL-safe string the
// caller names it by within its tenant.
type Agent struct {
	AgentUID  int64
	TenantUID int64
	AgentID   string
}

// Schema is an agent's input/output JSON-schema pair, assigned a stable
// numeric id the first time a given streamlined pair is seen (spec §3
// "Schema's schema_id is stable: identical streamlined schemas ⇒ same id").
type Schema struct {
	SchemaID    int
	AgentUID    int64
	InputSchema map[string]interface{}
	OutputSchema map[string]interface{}
}

// GetOrCreateAgent looks up (tenantUID, agentID), creating it on first use
// (spec §3 "Created lazily on first use"). The insert races safely under
// concurrent callers via ON CONFLICT DO UPDATE ... RETURNING, so two
// simultaneous first-POSTs for the same agent_id both observe the same
// agent_uid.
func (s *Store) GetOrCreateAgent(ctx context.Context, tenantUID int64, agentID string) (*Agent, error) {
	var a Agent
	err := s.pool.QueryRow(ctx, `
		INSERT INTO agents (tenant_uid, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (tenant_uid, agent_id) DO UPDATE SET agent_id = EXCLUDED.agent_id
		RETURNING agent_uid, tenant_uid, agent_id
	`, tenantUID, agentID).Scan(&a.AgentUID, &a.TenantUID, &a.AgentID)
	if err != nil {
		return nil, fmt.Errorf("store: get or create agent %q: %w", agentID, err)
	}
	return &a, nil
}

// GetOrCreateSchema resolves (agentUID, streamlined input/output schema) to
// a stable Schema, creating one on first sight of this exact pair. The
// content hash is computed the same way version.Hash canonicalizes
// Properties, so two structurally-identical schemas always collide on the
// same row regardless of source key order.
func (s *Store) GetOrCreateSchema(ctx context.Context, agentUID int64, input, output map[string]interface{}) (*Schema, error) {
	hash, err := schemaContentHash(input, output)
	if err != nil {
		return nil, fmt.Errorf("store: hash schema: %w", err)
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("store: marshal input schema: %w", err)
	}
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("store: marshal output schema: %w", err)
	}

	var sc Schema
	var inJSON, outJSON []byte
	err = s.pool.QueryRow(ctx, `
		INSERT INTO schemas (agent_uid, content_hash, input_json, output_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_uid, content_hash) DO UPDATE SET content_hash = EXCLUDED.content_hash
		RETURNING schema_id, agent_uid, input_json, output_json
	`, agentUID, hash, inputJSON, outputJSON).Scan(&sc.SchemaID, &sc.AgentUID, &inJSON, &outJSON)
	if err != nil {
		return nil, fmt.Errorf("store: get or create schema: %w", err)
	}
	if err := json.Unmarshal(inJSON, &sc.InputSchema); err != nil {
		return nil, fmt.Errorf("store: unmarshal input schema: %w", err)
	}
	if len(outJSON) > 0 {
		if err := json.Unmarshal(outJSON, &sc.OutputSchema); err != nil {
			return nil, fmt.Errorf("store: unmarshal output schema: %w", err)
		}
	}
	return &sc, nil
}

// schemaContentHash produces the same kind of stable, key-order-independent
// digest version.Hash computes for Properties, but over an (input, output)
// schema pair instead: sha256 of version.CanonicalJSON's sorted-key encoding.
func schemaContentHash(input, output map[string]interface{}) (string, error) {
	pair := struct {
		Input  map[string]interface{} `json:"input"`
		Output map[string]interface{} `json:"output"`
	}{Input: input, Output: output}
	raw, err := version.CanonicalJSON(pair)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

