package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/pipeline"
	"github.com/workflowai/gateway/runcache"
	"github.com/workflowai/gateway/runner"
	"github.com/workflowai/gateway/store"
	"github.com/workflowai/gateway/stream"
	"github.com/workflowai/gateway/version"
)

// handleChatCompletions is the C9 entry point: POST /v1/chat/completions.
// It drives the full pipeline (§4 end-to-end): resolve the version (C1),
// build the message list (C2), consult the run cache (C7), dispatch through
// the runner (C4), persist and price the result (C8), and render either a
// buffered JSON response or an SSE stream back to the caller.
func (a *App) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("httpapi: decode request: %w", err))
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = "default"
	}
	agent, err := a.Store.GetOrCreateAgent(r.Context(), tenant.TenantUID, agentID)
	if err != nil {
		writeError(w, err)
		return
	}

	ref, err := version.ParseModelString(req.Model)
	if err != nil {
		writeError(w, err)
		return
	}

	inputSchema, outputSchema := deriveAutoProvisionedSchemas(req)
	schemaRow, err := a.Store.GetOrCreateSchema(r.Context(), agent.AgentUID, inputSchema, outputSchema)
	if err != nil {
		writeError(w, err)
		return
	}
	schemaID := schemaRow.SchemaID
	if ref.SchemaID != 0 {
		schemaID = ref.SchemaID
	}

	versionRef := version.Reference{}
	switch {
	case ref.Environment != "":
		versionRef.Environment = ref.Environment
	default:
		versionRef.Inline = &version.Properties{
			Provider:         req.Provider,
			Model:            ref.Model,
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			PresencePenalty:  req.PresencePenalty,
			FrequencyPenalty: req.FrequencyPenalty,
			MaxTokens:        req.MaxTokens,
			ReasoningEffort:  req.ReasoningEffort,
			StructuredOutput: req.WorkflowAIInternal != nil && req.WorkflowAIInternal.StructuredOutput,
		}
	}

	resolved, err := a.Resolver.Resolve(agent.AgentUID, schemaID, versionRef)
	if err != nil {
		writeError(w, err)
		return
	}

	messages, aerr := toCanonicalMessages(req.Messages)
	if aerr != nil {
		writeError(w, aerr)
		return
	}

	built, berr := pipeline.BuildMessages(resolved.Properties, nil, pipeline.Input{
		Variables:    req.Input,
		Conversation: messages,
	})
	if berr != nil {
		writeError(w, berr)
		return
	}

	taskInputHash, err := pipeline.InputHash(built.CanonicalInput)
	if err != nil {
		writeError(w, fmt.Errorf("httpapi: hash input: %w", err))
		return
	}

	fp := runcache.Fingerprint{
		AgentUID:      agent.AgentUID,
		SchemaID:      schemaID,
		VersionHash:   resolved.VersionID,
		TaskInputHash: taskInputHash,
	}
	policy := runcache.Policy(req.UseCache)
	if policy == "" {
		policy = runcache.PolicyAuto
	}

	if a.Cache != nil && runcache.ShouldLookup(policy) {
		if runID, err := a.Cache.Lookup(r.Context(), fp); err == nil {
			if cached, err := a.Store.GetRun(r.Context(), runID); err == nil {
				writeCachedResponse(w, agentID, cached)
				return
			}
		}
	}

	candidates := runner.Plan(resolved.Properties, req.UseFallback)
	externalTools := externalToolDefs(req.Tools)

	if req.Stream {
		a.streamChatCompletion(w, r, tenant, agent.AgentUID, schemaID, resolved, built, messages, externalTools, candidates, req, fp, policy)
		return
	}

	result, err := a.Runner.Dispatch(r.Context(), runner.Request{
		Properties:    resolved.Properties,
		Messages:      built.Messages,
		ExternalTools: externalTools,
		Candidates:    candidates,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	run, perr := a.Store.Finalize(r.Context(), store.FinalizeInput{
		AgentUID:  agent.AgentUID,
		SchemaID:  schemaID,
		TenantUID: tenant.TenantUID,
		VersionID: resolved.VersionID,
		Provider:  result.Provider,
		Model:     result.Model,
		Status:    store.StatusSuccess,
		TaskInput: asMap(built.CanonicalInput),
		TaskOutput: map[string]interface{}{"content": result.Final.Content},
		Usage:    result.Final.Usage,
		Duration: time.Since(start),
	}, a.Publisher)
	if perr != nil && run == nil {
		writeError(w, perr)
		return
	}

	if a.Cache != nil && runcache.ShouldStore(policy) {
		_, _ = a.Cache.Store(r.Context(), fp, run.ID)
	}

	resp := ChatCompletionResponse{
		ID:              agentID + "/" + run.ID,
		Object:          "chat.completion",
		Created:         run.CreatedAt.Unix(),
		Model:           result.Model,
		Choices:         []Choice{{Index: 0, Message: fromCanonicalMessage(result.Final), FinishReason: result.Final.FinishReason}},
		Usage:           toWireUsage(result.Final.Usage),
		DurationSeconds: run.Duration.Seconds(),
	}
	if run.CostUSD != nil {
		resp.CostUSD = run.CostUSD
	}
	if a.Feedback != nil {
		if tok, err := a.Feedback.Sign(run.ID, tenant.TenantUID, time.Now()); err == nil {
			resp.FeedbackToken = tok
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// streamChatCompletion drives the single best candidate through the
// streaming aggregator (C5) and frames each chunk as an SSE event. Unlike
// the non-streaming path, fallback across candidates is not attempted mid-
// stream: once bytes have been written to the client, switching providers
// would require discarding a partial response the caller may have already
// rendered, so the first candidate's failure ends the stream with an error
// chunk instead of retrying a later one.
func (a *App) streamChatCompletion(
	w http.ResponseWriter,
	r *http.Request,
	tenant *store.Tenant,
	agentUID int64,
	schemaID int,
	resolved *version.Resolved,
	built *pipeline.Result,
	messages []adapter.Message,
	externalTools []adapter.ToolDef,
	candidates []runner.Candidate,
	req ChatCompletionRequest,
	fp runcache.Fingerprint,
	policy runcache.Policy,
) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("httpapi: streaming unsupported by response writer"))
		return
	}
	if len(candidates) == 0 {
		writeError(w, fmt.Errorf("httpapi: no candidate provider available"))
		return
	}
	cand := candidates[0]

	ad, ok := a.Runner.Adapter(cand.Provider)
	if !ok {
		writeError(w, fmt.Errorf("httpapi: unknown provider %q", cand.Provider))
		return
	}

	toolDefs := append(append([]adapter.ToolDef{}, a.Runner.ToolRegistry().Defs()...), externalTools...)
	wire, err := ad.Build(adapter.BuildRequest{
		Messages:         built.Messages,
		Properties:       resolved.Properties,
		StructuredOutput: resolved.Properties.StructuredOutput,
		Tools:            toolDefs,
		Stream:           true,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	url, err := ad.RequestURL(cand.Model, true)
	if err != nil {
		writeError(w, err)
		return
	}
	headers, err := ad.RequestHeaders(wire, cand.Model)
	if err != nil {
		writeError(w, err)
		return
	}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(wire.Body))
	if err != nil {
		writeError(w, err)
		return
	}
	httpReq.Header = headers

	httpResp, err := a.Runner.HTTPClient().Do(httpReq)
	if err != nil {
		writeError(w, fmt.Errorf("httpapi: provider request: %w", err))
		return
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(httpResp.Body)
		writeError(w, ad.ClassifyError(httpResp, body))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var validator stream.Validator
	if resolved.Properties.StructuredOutput {
		if s, err := pipeline.Streamline(map[string]interface{}{}); err == nil {
			validator = s
		}
	}

	agg := stream.NewAggregator(a.Config.Run.StreamRawAccumulatorLimit, resolved.Properties.StructuredOutput, validator)
	out := make(chan stream.Chunk)
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- stream.Run(r.Context(), ad, httpResp.Body, agg, out) }()

	agentID := req.AgentID
	if agentID == "" {
		agentID = "default"
	}
	created := time.Now()
	runID := agentID + "/" + created.Format("20060102T150405")

	var final stream.Chunk
	var prevContent string
	sentToolCalls := map[string]bool{}
	for chunk := range out {
		final = chunk
		delta := chunk.Content
		if len(chunk.Content) >= len(prevContent) && chunk.Content[:len(prevContent)] == prevContent {
			delta = chunk.Content[len(prevContent):]
		}
		prevContent = chunk.Content

		var newToolCalls []adapter.ToolCallRequest
		for _, tc := range chunk.ToolCalls {
			if !sentToolCalls[tc.ID] {
				sentToolCalls[tc.ID] = true
				newToolCalls = append(newToolCalls, tc)
			}
		}

		writeSSEChunk(w, runID, cand.Model, chunk, delta, newToolCalls, req.StreamOptions)
		flusher.Flush()
	}

	if err := <-runErrCh; err != nil {
		writeSSEError(w, err)
		flusher.Flush()
		return
	}

	start := created
	status := store.StatusSuccess
	var errCode, errMsg string
	if final.Err != nil {
		status = store.StatusFailure
		errCode = string(final.Err.Kind)
		errMsg = final.Err.Message
	}

	run, perr := a.Store.Finalize(r.Context(), store.FinalizeInput{
		AgentUID:  agentUID,
		SchemaID:  schemaID,
		TenantUID: tenant.TenantUID,
		VersionID: resolved.VersionID,
		Provider:  cand.Provider,
		Model:     cand.Model,
		Status:    status,
		TaskInput: asMap(built.CanonicalInput),
		TaskOutput: map[string]interface{}{"content": final.Content},
		ErrorCode: errCode,
		ErrorMsg:  errMsg,
		Usage:     final.Usage,
		Duration:  time.Since(start),
	}, a.Publisher)

	if perr == nil && a.Cache != nil && runcache.ShouldStore(policy) && status == store.StatusSuccess {
		_, _ = a.Cache.Store(r.Context(), fp, run.ID)
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
