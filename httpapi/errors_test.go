package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/store"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError_AdapterErrorUsesKindStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &adapter.Error{Kind: adapter.KindRateLimit, Message: "slow down"})

	assert.Equal(t, adapter.KindRateLimit.HTTPStatus(), rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "rate_limit", body.Error.Type)
	assert.Equal(t, "slow down", body.Error.Message)
}

func TestWriteError_UnauthenticatedIs401(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, store.ErrUnauthenticated)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteError_NotFoundSentinels(t *testing.T) {
	for _, err := range []error{core.ErrAgentNotFound, core.ErrVersionNotFound, core.ErrDeploymentNotFound, core.ErrRunNotFound} {
		rec := httptest.NewRecorder()
		writeError(rec, err)
		assert.Equal(t, http.StatusNotFound, rec.Code, err.Error())
	}
}

func TestWriteError_InsufficientCreditsIs402(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, core.ErrInsufficientCredits)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestWriteError_UnknownFallsBackTo500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal_error", body.Error.Type)
}
