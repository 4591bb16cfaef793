// Package runner implements the Runner/Fallback Orchestrator (C4): given a
// resolved version and a built message list, it selects an ordered list of
// (provider, model) attempts, executes each with retry+circuit-breaker
// protection, runs the tool-call loop against internal tools, and returns
// the first successful completion along with the full attempt history.
//
// Built as a sequential-failover loop over the retriable/non-retriable
// error classification adapter.Kind carries, with resilience.Retry and
// CircuitBreaker wrapping each attempt.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/resilience"
	"github.com/workflowai/gateway/tools"
	"github.com/workflowai/gateway/version"
)

// ProviderBucket groups an Adapter with the circuit breaker guarding calls
// to it. One ProviderBucket exists per configured provider.
type ProviderBucket struct {
	Adapter adapter.Adapter
	Breaker *resilience.CircuitBreaker
}

// Runner dispatches runs across providers and drives the tool-call loop.
type Runner struct {
	providers  map[string]*ProviderBucket
	tools      *tools.Registry
	httpClient *http.Client
	cfg        core.RunConfig
	logger     core.Logger
}

// New builds a Runner. providers maps a provider name ("openai",
// "anthropic", ...) to its adapter; a CircuitBreaker is created per provider
// using cfg.Resilience-equivalent defaults supplied by the caller through
// cbConfig (nil uses resilience's own defaults for every provider).
func New(providers map[string]adapter.Adapter, toolRegistry *tools.Registry, httpClient *http.Client, cfg core.RunConfig, logger core.Logger, cbConfig func(provider string) *resilience.CircuitBreakerConfig) (*Runner, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	buckets := make(map[string]*ProviderBucket, len(providers))
	for name, a := range providers {
		var bcfg *resilience.CircuitBreakerConfig
		if cbConfig != nil {
			bcfg = cbConfig(name)
		}
		if bcfg == nil {
			bcfg = resilience.DefaultConfig()
			bcfg.Name = "provider/" + name
		}
		cb, err := resilience.NewCircuitBreaker(bcfg)
		if err != nil {
			return nil, fmt.Errorf("runner: circuit breaker for %s: %w", name, err)
		}
		buckets[name] = &ProviderBucket{Adapter: a, Breaker: cb}
	}

	return &Runner{providers: buckets, tools: toolRegistry, httpClient: httpClient, cfg: cfg, logger: logger}, nil
}

// Request bundles everything a single run needs.
type Request struct {
	Properties  version.Properties
	Messages    []adapter.Message
	ExternalTools []adapter.ToolDef // tools enabled but not in the internal registry
	Candidates  []Candidate        // precomputed attempt order; see Plan
}

// Candidate is one (provider, model) attempt in the fallback chain.
type Candidate struct {
	Provider string
	Model    string
}

// CompletionAttempt records one (provider, model) attempt's outcome,
// successful or not, for the run's persisted llm_completions[] (§4.4: "the
// final run record contains one completion per attempt... only the
// successful one has response populated").
type CompletionAttempt struct {
	Provider     string
	Model        string
	Response     *adapter.ParsedResponse
	Err          *adapter.Error
	DurationMS   int64
}

// Result is the outcome of Dispatch: the final message list (including any
// tool-call rounds), the winning completion, and the full attempt history.
type Result struct {
	Messages    []adapter.Message
	Final       *adapter.ParsedResponse
	Provider    string
	Model       string
	Attempts    []CompletionAttempt
	ToolCalls   []tools.Call
}

// ErrAllAttemptsFailed is returned when every candidate in the fallback
// chain failed.
type ErrAllAttemptsFailed struct {
	Attempts []CompletionAttempt
}

func (e *ErrAllAttemptsFailed) Error() string {
	if len(e.Attempts) == 0 {
		return "runner: no candidates attempted"
	}
	last := e.Attempts[len(e.Attempts)-1]
	if last.Err != nil {
		return fmt.Sprintf("runner: all %d attempt(s) failed, last error: %s", len(e.Attempts), last.Err.Error())
	}
	return fmt.Sprintf("runner: all %d attempt(s) failed", len(e.Attempts))
}

// Dispatch runs req.Candidates in order (§4.4 steps 1-4), retrying
// transient errors within an attempt and falling through to the next
// candidate on a non-retriable or exhausted-retry failure, then drives the
// tool-call loop (§4.4 tool-call loop) once a candidate succeeds.
func (r *Runner) Dispatch(ctx context.Context, req Request) (*Result, error) {
	var attempts []CompletionAttempt

	for _, cand := range req.Candidates {
		bucket, ok := r.providers[cand.Provider]
		if !ok {
			attempts = append(attempts, CompletionAttempt{
				Provider: cand.Provider, Model: cand.Model,
				Err: &adapter.Error{Kind: adapter.KindBadRequest, Message: fmt.Sprintf("unknown provider %q", cand.Provider)},
			})
			continue
		}

		resp, aerr, durationMS := r.attemptWithRetry(ctx, bucket, cand, req)
		attempts = append(attempts, CompletionAttempt{Provider: cand.Provider, Model: cand.Model, Response: resp, Err: aerr, DurationMS: durationMS})

		if aerr == nil {
			toolResult, err := r.runToolLoop(ctx, bucket, cand, req, resp)
			if err != nil {
				return nil, err
			}
			toolResult.Attempts = attempts
			return toolResult, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ErrAllAttemptsFailed{Attempts: attempts}
}

// attemptWithRetry runs one (provider, model) candidate, retrying
// RetriableOnce/Retriable errors up to cfg.MaxRetriesPerAttempt times with
// exponential backoff+jitter via resilience.Retry, gated by the provider's
// circuit breaker.
func (r *Runner) attemptWithRetry(ctx context.Context, bucket *ProviderBucket, cand Candidate, req Request) (*adapter.ParsedResponse, *adapter.Error, int64) {
	start := time.Now()
	var resp *adapter.ParsedResponse
	var aerr *adapter.Error
	usedSingleRetry := false

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:   r.cfg.MaxRetriesPerAttempt,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
	if retryCfg.MaxAttempts < 1 {
		retryCfg.MaxAttempts = 1
	}

	_ = resilience.RetryWithCircuitBreaker(ctx, retryCfg, bucket.Breaker, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.DefaultProviderTimeout)
		defer cancel()

		resp, aerr = r.callOnce(attemptCtx, bucket.Adapter, cand.Model, req)
		if aerr == nil {
			return nil
		}
		if aerr.Retriable() {
			return aerr
		}
		// RetriableOnce errors get exactly one extra attempt within this
		// candidate, independent of cfg.MaxRetriesPerAttempt, then fall
		// through to the next fallback candidate.
		if aerr.RetriableOnce() && !usedSingleRetry {
			usedSingleRetry = true
			return aerr
		}
		return nil // non-retriable (or single retry already spent): stop, let the caller move to the next candidate
	})

	return resp, aerr, time.Since(start).Milliseconds()
}

// directCaller lets an Adapter skip net/http entirely and hand back its next
// scripted completion directly; the mock adapter (ai/providers/mock)
// implements this so runner tests never need an httptest.Server.
type directCaller interface {
	NextCompletion() (*adapter.ParsedResponse, *adapter.Error)
}

// callOnce builds, sends, and parses a single non-streaming provider call.
func (r *Runner) callOnce(ctx context.Context, a adapter.Adapter, model string, req Request) (*adapter.ParsedResponse, *adapter.Error) {
	toolDefs := append(append([]adapter.ToolDef{}, r.internalToolDefs()...), req.ExternalTools...)

	wire, err := a.Build(adapter.BuildRequest{
		Messages:         req.Messages,
		Properties:       req.Properties,
		StructuredOutput: req.Properties.StructuredOutput,
		Tools:            toolDefs,
		Stream:           false,
	})
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindBadRequest, Message: err.Error(), Err: err}
	}

	if dc, ok := a.(directCaller); ok {
		return dc.NextCompletion()
	}

	url, err := a.RequestURL(model, false)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindBadRequest, Message: err.Error(), Err: err}
	}
	headers, err := a.RequestHeaders(wire, model)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindBadRequest, Message: err.Error(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, newBodyReader(wire.Body))
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindInternal, Message: err.Error(), Err: err}
	}
	httpReq.Header = headers

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &adapter.Error{Kind: adapter.KindClientDisconnect, Message: err.Error(), Err: err}
		}
		return nil, &adapter.Error{Kind: adapter.KindReadTimeout, Message: err.Error(), Err: err}
	}

	if httpResp.StatusCode >= 300 {
		body, _ := readAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, a.ClassifyError(httpResp, body)
	}

	parsed, err := a.ParseResponse(httpResp)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindProviderInternal, Message: err.Error(), Err: err}
	}
	return parsed, nil
}

// Adapter exposes the configured adapter.Adapter for provider, letting the
// streaming surface (C9) build and send a streamed request through the same
// provider wiring Dispatch uses for non-streaming calls.
func (r *Runner) Adapter(provider string) (adapter.Adapter, bool) {
	bucket, ok := r.providers[provider]
	if !ok {
		return nil, false
	}
	return bucket.Adapter, true
}

// HTTPClient exposes the shared HTTP client Dispatch uses, so the streaming
// surface issues requests through the same client (timeouts, transport,
// connection pooling) rather than constructing a second one.
func (r *Runner) HTTPClient() *http.Client {
	return r.httpClient
}

// ToolRegistry exposes the internal tool registry so callers building a
// streamed request can include the same internal tool defs Dispatch does.
func (r *Runner) ToolRegistry() *tools.Registry {
	return r.tools
}

func (r *Runner) internalToolDefs() []adapter.ToolDef {
	if r.tools == nil {
		return nil
	}
	return r.tools.Defs()
}
