package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/pipeline"
	"github.com/workflowai/gateway/runcache"
	"github.com/workflowai/gateway/runner"
	"github.com/workflowai/gateway/store"
	"github.com/workflowai/gateway/version"
)

// handleListModels serves GET /v1/models: every model id the routing
// catalog knows how to dispatch to (§6).
func (a *App) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := runner.Models()
	out := ModelList{Object: "list", Data: make([]ModelEntry, 0, len(models))}
	for _, m := range models {
		out.Data = append(out.Data, ModelEntry{ID: m, Object: "model"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleCreateAgent serves POST /v1/{tenant}/agents: creates the agent (if
// unseen) and registers its input/output schema pair, returning the stable
// schema_id the caller uses on the native run endpoint (§3 "Agent created
// lazily"; §6).
func (a *App) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}
	if req.AgentID == "" {
		writeError(w, fmt.Errorf("%w: agent_id is required", core.ErrInvalidConfiguration))
		return
	}

	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	schema, err := a.Store.GetOrCreateSchema(r.Context(), agent.AgentUID, req.InputSchema, req.OutputSchema)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CreateAgentResponse{AgentID: agent.AgentID, SchemaID: schema.SchemaID})
}

// handleSchemaRun serves POST /v1/{tenant}/agents/{agent_id}/schemas/{schema_id}/run,
// the native (non-OpenAI-shaped) run endpoint (§6).
func (a *App) handleSchemaRun(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	agentID := r.PathValue("agent_id")
	schemaID, err := strconv.Atoi(r.PathValue("schema_id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid schema_id", core.ErrInvalidConfiguration))
		return
	}

	var req NativeRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}

	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, agentID)
	if err != nil {
		writeError(w, err)
		return
	}

	conversation, aerr := toCanonicalMessages(req.Messages)
	if aerr != nil {
		writeError(w, aerr)
		return
	}

	a.runNative(r.Context(), w, tenant, agent.AgentUID, agentID, schemaID, nativeVersionRef(req), pipeline.Input{
		Variables:    req.Input,
		Conversation: conversation,
	}, req.UseCache, req.UseFallback)
}

// handleRunReply serves POST .../runs/{run_id}/reply: continues a prior
// run's conversation with one more turn, reusing the prior run's resolved
// version by hash (§2 "Run... linked to an optional parent run for
// multi-turn conversations").
func (a *App) handleRunReply(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	agentID := r.PathValue("agent_id")
	runID := r.PathValue("run_id")

	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	prior, err := a.Store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	if prior.AgentUID != agent.AgentUID {
		writeError(w, core.ErrRunNotFound)
		return
	}

	var req NativeRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}

	conversation := priorConversation(prior)
	newTurn, aerr := toCanonicalMessages(req.Messages)
	if aerr != nil {
		writeError(w, aerr)
		return
	}
	conversation = append(conversation, newTurn...)

	a.runNative(r.Context(), w, tenant, agent.AgentUID, agentID, prior.SchemaID, version.Reference{Hash: prior.VersionID}, pipeline.Input{
		Variables:    req.Input,
		Conversation: conversation,
	}, req.UseCache, req.UseFallback)
}

// priorConversation reconstructs the message list a run was built from out
// of its persisted task_input plus its own output, so a reply can continue
// the same conversation without the gateway keeping any session state of
// its own (§2's "foreign-key linkage" is the prior run_id, not a stored
// transcript).
func priorConversation(run *store.Run) []adapter.Message {
	var out []adapter.Message
	if m, ok := run.TaskInput.(map[string]interface{}); ok {
		if raw, ok := m["messages"]; ok {
			if encoded, err := json.Marshal(raw); err == nil {
				var wire []WireMessage
				if json.Unmarshal(encoded, &wire) == nil {
					if msgs, aerr := toCanonicalMessages(wire); aerr == nil {
						out = append(out, msgs...)
					}
				}
			}
		}
	}

	if m, ok := run.TaskOutput.(map[string]interface{}); ok {
		if content, ok := m["content"].(string); ok && content != "" {
			out = append(out, adapter.Message{
				Role:    adapter.RoleAssistant,
				Content: []adapter.ContentBlock{{Kind: adapter.BlockText, Text: content}},
			})
		}
	}
	return out
}

// runNative drives the shared resolve -> build -> cache -> dispatch ->
// persist sequence (§4 end-to-end) behind the native (non-streaming,
// non-OpenAI-shaped) response envelope.
func (a *App) runNative(ctx context.Context, w http.ResponseWriter, tenant *store.Tenant, agentUID int64, agentID string, schemaID int, ref version.Reference, in pipeline.Input, useCachePolicy, useFallback string) {
	resolved, err := a.Resolver.Resolve(agentUID, schemaID, ref)
	if err != nil {
		writeError(w, err)
		return
	}

	built, berr := pipeline.BuildMessages(resolved.Properties, nil, in)
	if berr != nil {
		writeError(w, berr)
		return
	}

	taskInputHash, err := pipeline.InputHash(built.CanonicalInput)
	if err != nil {
		writeError(w, fmt.Errorf("httpapi: hash input: %w", err))
		return
	}

	fp := runcache.Fingerprint{AgentUID: agentUID, SchemaID: schemaID, VersionHash: resolved.VersionID, TaskInputHash: taskInputHash}
	policy := runcache.Policy(useCachePolicy)
	if policy == "" {
		policy = runcache.PolicyAuto
	}

	if a.Cache != nil && runcache.ShouldLookup(policy) {
		if runID, err := a.Cache.Lookup(ctx, fp); err == nil {
			if cached, err := a.Store.GetRun(ctx, runID); err == nil {
				writeNativeRun(w, agentID, cached)
				return
			}
		}
	}

	candidates := runner.Plan(resolved.Properties, useFallback)
	result, err := a.Runner.Dispatch(ctx, runner.Request{
		Properties: resolved.Properties,
		Messages:   built.Messages,
		Candidates: candidates,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	run, perr := a.Store.Finalize(ctx, store.FinalizeInput{
		AgentUID:   agentUID,
		SchemaID:   schemaID,
		TenantUID:  tenant.TenantUID,
		VersionID:  resolved.VersionID,
		Provider:   result.Provider,
		Model:      result.Model,
		Status:     store.StatusSuccess,
		TaskInput:  asMap(built.CanonicalInput),
		TaskOutput: map[string]interface{}{"content": result.Final.Content},
		Usage:      result.Final.Usage,
		Duration:   time.Since(start),
	}, a.Publisher)
	if perr != nil && run == nil {
		writeError(w, perr)
		return
	}

	if a.Cache != nil && runcache.ShouldStore(policy) {
		_, _ = a.Cache.Store(ctx, fp, run.ID)
	}

	resp := NativeRunResponse{
		RunID:           run.ID,
		AgentID:         agentID,
		SchemaID:        schemaID,
		VersionID:       resolved.VersionID,
		Status:          string(run.Status),
		Output:          result.Final.Content,
		ToolCalls:       toolCallsFromAdapter(result.Final.ToolCalls),
		Usage:           toWireUsage(result.Final.Usage),
		CostUSD:         run.CostUSD,
		DurationSeconds: run.Duration.Seconds(),
	}
	if a.Feedback != nil {
		if tok, err := a.Feedback.Sign(run.ID, tenant.TenantUID, time.Now()); err == nil {
			resp.FeedbackToken = tok
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// writeNativeRun renders a previously-persisted run (the cache-hit path for
// use_cache "auto" or "always", and GET of a stored run) as a
// NativeRunResponse without a fresh provider call.
func writeNativeRun(w http.ResponseWriter, agentID string, run *store.Run) {
	content, toolCalls := splitCachedOutput(run.TaskOutput)
	resp := NativeRunResponse{
		RunID:           run.ID,
		AgentID:         agentID,
		SchemaID:        run.SchemaID,
		VersionID:       run.VersionID,
		Status:          string(run.Status),
		Output:          content,
		ToolCalls:       toolCalls,
		Usage:           toWireUsage(run.Usage),
		CostUSD:         run.CostUSD,
		DurationSeconds: run.Duration.Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleGetRun serves GET /v1/{tenant}/agents/{agent_id}/runs/{run_id}.
func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, r.PathValue("agent_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	run, err := a.Store.GetRun(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if run.AgentUID != agent.AgentUID {
		writeError(w, core.ErrRunNotFound)
		return
	}
	writeNativeRun(w, agent.AgentID, run)
}

// handleSearchRuns serves POST /v1/{tenant}/agents/{agent_id}/runs/search.
func (a *App) handleSearchRuns(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, r.PathValue("agent_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req SearchRunsRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	runs, err := a.Store.SearchRuns(r.Context(), agent.AgentUID, req.SchemaID, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := SearchRunsResponse{Runs: make([]RunSummary, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, RunSummary{
			RunID:     run.ID,
			SchemaID:  run.SchemaID,
			VersionID: run.VersionID,
			Status:    string(run.Status),
			Provider:  run.Provider,
			Model:     run.Model,
			CostUSD:   run.CostUSD,
			CreatedAt: run.CreatedAt.Unix(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleListVersions serves GET /v1/{tenant}/agents/{agent_id}/versions,
// grouped by semver major (§6). The schema to list is named by the
// ?schema_id= query parameter, since a version is always scoped to one
// schema and the path itself carries no schema segment.
func (a *App) handleListVersions(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, r.PathValue("agent_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	schemaID, err := strconv.Atoi(r.URL.Query().Get("schema_id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: schema_id query parameter is required", core.ErrInvalidConfiguration))
		return
	}

	versions, err := a.Store.Versions().ListVersions(r.Context(), agent.AgentUID, schemaID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := ListVersionsResponse{Majors: map[string][]VersionSummary{}}
	for _, v := range versions {
		if !v.Saved {
			continue
		}
		summary := VersionSummary{ID: v.ID, Saved: v.Saved, Model: v.Properties.Model, Provider: v.Properties.Provider}
		key := "unversioned"
		if v.Semver != nil {
			summary.Major, summary.Minor = &v.Semver.Major, &v.Semver.Minor
			key = strconv.Itoa(v.Semver.Major)
		}
		out.Majors[key] = append(out.Majors[key], summary)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleDeployVersion serves POST .../versions/{version_id}/deploy (§3
// "Re-deploying replaces the mapping atomically").
func (a *App) handleDeployVersion(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.tenantFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, r.PathValue("agent_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	versionID := r.PathValue("version_id")

	var req DeployVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}
	if req.Environment == "" {
		writeError(w, fmt.Errorf("%w: environment is required", core.ErrInvalidConfiguration))
		return
	}

	if err := a.Store.Versions().Deploy(r.Context(), agent.AgentUID, req.SchemaID, req.Environment, versionID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// tenantFromPath resolves the {tenant} path segment used by every native
// endpoint, independent of the bearer token authenticate() checks; both
// must agree on the same tenant.
func (a *App) tenantFromPath(r *http.Request) (*store.Tenant, error) {
	authed, err := a.authenticate(r)
	if err != nil {
		return nil, err
	}
	named, err := a.Store.GetTenantByName(r.Context(), r.PathValue("tenant"))
	if err != nil {
		return nil, err
	}
	if named.TenantUID != authed.TenantUID {
		return nil, store.ErrUnauthenticated
	}
	return named, nil
}

// nativeVersionRef converts a NativeRunRequest's version selector into a
// version.Reference; exactly one of Version/Environment/Semver/VersionHash
// is expected to be set.
func nativeVersionRef(req NativeRunRequest) version.Reference {
	switch {
	case req.Version != nil:
		return version.Reference{Inline: &version.Properties{
			Provider:         req.Version.Provider,
			Model:            req.Version.Model,
			Temperature:      req.Version.Temperature,
			TopP:             req.Version.TopP,
			PresencePenalty:  req.Version.PresencePenalty,
			FrequencyPenalty: req.Version.FrequencyPenalty,
			MaxTokens:        req.Version.MaxTokens,
			ReasoningEffort:  req.Version.ReasoningEffort,
			Instructions:     req.Version.Instructions,
			StructuredOutput: req.Version.StructuredOutput,
		}}
	case req.Environment != "":
		return version.Reference{Environment: req.Environment}
	case req.Semver != nil:
		return version.Reference{Semver: &version.Semver{Major: req.Semver.Major, Minor: req.Semver.Minor}}
	case req.VersionHash != "":
		return version.Reference{Hash: req.VersionHash}
	}
	return version.Reference{}
}
