package demo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_IsDemoAdminDgDisabled(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"unset", "", true},
		{"exact false", "false", false},
		{"capitalised false", "False", true},
		{"padded false", " false", true},
		{"zero", "0", true},
		{"true", "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewGate(tt.raw).IsDemoAdminDgDisabled())
		})
	}
}

func TestIsDemoAdminOrDgEmail(t *testing.T) {
	assert.True(t, IsDemoAdminOrDgEmail("demo@anef.ma"))
	assert.True(t, IsDemoAdminOrDgEmail("  Demo.DG@ANEF.ma "))
	assert.False(t, IsDemoAdminOrDgEmail("agent@anef.ma"))
	assert.True(t, IsDemoAdminOrDgAccount("demo-dg"))
	assert.False(t, IsDemoAdminOrDgAccount("demo-agent"))
}

func TestGate_IsBlocked(t *testing.T) {
	t.Run("should block demo identities when disabled", func(t *testing.T) {
		gate := NewGate("")
		assert.True(t, gate.IsBlocked("demo-admin", ""))
		assert.True(t, gate.IsBlocked("", "demo.dg@anef.ma"))
		assert.False(t, gate.IsBlocked("42", "agent@anef.ma"))
	})

	t.Run("should let demo identities through when enabled", func(t *testing.T) {
		gate := NewGate("false")
		assert.False(t, gate.IsBlocked("demo-admin", "demo@anef.ma"))
	})
}

func TestHandler_Status(t *testing.T) {
	// given
	handler := NewHandler(NewGate("false"))
	req := httptest.NewRequest(http.MethodGet, "/api/demo/status", nil)
	w := httptest.NewRecorder()

	// when
	handler.Status(w, req)

	// then
	assert.Equal(t, http.StatusOK, w.Code)
	var status StatusDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.False(t, status.AdminDgDisabled)
	assert.Equal(t, []string{"demo@anef.ma", "demo.dg@anef.ma"}, status.Accounts)
}
