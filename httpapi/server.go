package httpapi

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/runcache"
	"github.com/workflowai/gateway/runner"
	"github.com/workflowai/gateway/store"
	"github.com/workflowai/gateway/tools"
	"github.com/workflowai/gateway/version"
)

// App wires every component the HTTP surface calls into: version resolution
// (C1), the input pipeline (C2), the run cache (C7), the runner (C4), and
// run persistence (C8). One App serves the whole process; it carries no
// per-request state.
type App struct {
	Store      *store.Store
	Resolver   *version.Resolver
	Runner     *runner.Runner
	Tools      *tools.Registry
	Cache      *runcache.Cache
	CachePolicyDefault runcache.Policy
	Uploader   store.Uploader
	Feedback   *FeedbackSigner
	Publisher  store.Publisher
	Logger     core.Logger
	Config     *core.Config
}

// Handler builds the top-level http.Handler: CORS and request logging wrap
// the mux, and otelhttp wraps the whole chain for span creation per request
// (grounded on core.LoggingMiddleware/core.CORSMiddleware, the teacher's own
// middleware chain, generalized with an outer otelhttp layer for tracing).
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes(mux)

	var h http.Handler = mux
	h = core.CORSMiddleware(a.Config.ToCORSConfig())(h)
	h = core.LoggingMiddleware(a.Logger, a.Config.Development.Mode)(h)
	h = otelhttp.NewHandler(h, "gateway")
	return h
}

func (a *App) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/models", a.handleListModels)
	mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletions)

	mux.HandleFunc("POST /v1/{tenant}/agents", a.handleCreateAgent)
	mux.HandleFunc("POST /v1/{tenant}/agents/{agent_id}/schemas/{schema_id}/run", a.handleSchemaRun)
	mux.HandleFunc("POST /v1/{tenant}/agents/{agent_id}/runs/{run_id}/reply", a.handleRunReply)
	mux.HandleFunc("GET /v1/{tenant}/agents/{agent_id}/runs/{run_id}", a.handleGetRun)
	mux.HandleFunc("POST /v1/{tenant}/agents/{agent_id}/runs/search", a.handleSearchRuns)
	mux.HandleFunc("GET /v1/{tenant}/agents/{agent_id}/versions", a.handleListVersions)
	mux.HandleFunc("POST /v1/{tenant}/agents/{agent_id}/versions/{version_id}/deploy", a.handleDeployVersion)
}
