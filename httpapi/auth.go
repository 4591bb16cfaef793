package httpapi

import (
	"net/http"
	"strings"

	"github.com/workflowai/gateway/store"
)

// authenticate resolves the Authorization bearer token to a tenant (§6
// "bearer token in Authorization header; token is resolved to a tenant").
// Anonymous requests fail with store.ErrUnauthenticated, rendered as 401 by
// writeError.
func (a *App) authenticate(r *http.Request) (*store.Tenant, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, store.ErrUnauthenticated
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return nil, store.ErrUnauthenticated
	}
	return a.Store.GetTenantByAPIKey(r.Context(), token)
}
