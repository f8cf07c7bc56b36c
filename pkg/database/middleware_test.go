package database

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithTenantContext_InvalidWorkspaceID(t *testing.T) {
	called := false
	// The path is rejected before the pool is touched, so a nil DB is fine.
	handler := WithTenantContext(nil, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/not-a-uuid/suggestions", nil)
	req.SetPathValue("wid", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_workspace_id", body["error"])
}
