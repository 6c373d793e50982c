package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.activations, env.metrics, false)
	key := env.issue(t, 1)

	rec, out := doJSON(t, h.Activate, http.MethodPost, "/activate", map[string]string{"key": key, "deviceId": "dev-a"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, false, out["reused"])

	rec, out = doJSON(t, h.Activate, http.MethodPost, "/activate", map[string]string{"key": key, "deviceId": "dev-a"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["reused"])

	rec, out = doJSON(t, h.Activate, http.MethodPost, "/activate", map[string]string{"key": key, "deviceId": "dev-b"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "device_limit_reached", out["reason"])
	assert.Equal(t, float64(1), out["max_devices"])
}

func TestActivateEndpointErrors(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.activations, env.metrics, false)

	revoked := env.issue(t, 1)
	_, err := env.licenses.Revoke(context.Background(), revoked)
	assert.NoError(t, err)

	tests := []struct {
		name   string
		body   interface{}
		status int
		reason string
	}{
		{"missing device", map[string]string{"key": "LIC-X"}, http.StatusBadRequest, "missing_params"},
		{"empty body", "", http.StatusBadRequest, "missing_params"},
		{"not json", "key=LIC-X", http.StatusBadRequest, "invalid_payload"},
		{"unknown key", map[string]string{"key": "LIC-NOPE", "deviceId": "d"}, http.StatusNotFound, "not_found"},
		{"revoked", map[string]string{"key": revoked, "deviceId": "d"}, http.StatusForbidden, "revoked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := doJSON(t, h.Activate, http.MethodPost, "/activate", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, out["ok"])
			assert.Equal(t, tt.reason, out["reason"])
		})
	}

	rec, out := doJSON(t, h.Activate, http.MethodGet, "/activate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", out["reason"])
}

func TestDeactivateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.activations, env.metrics, false)
	key := env.issue(t, 1)

	_, err := env.activations.Activate(context.Background(), key, "dev-a")
	assert.NoError(t, err)

	rec, out := doJSON(t, h.Deactivate, http.MethodPost, "/deactivate", map[string]string{"key": key, "deviceId": "dev-a"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	// Unknown devices are fine too.
	rec, out = doJSON(t, h.Deactivate, http.MethodPost, "/deactivate", map[string]string{"key": key, "deviceId": "ghost"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])

	rec, out = doJSON(t, h.Deactivate, http.MethodPost, "/deactivate", map[string]string{"deviceId": "dev-a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_params", out["reason"])
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.activations, env.metrics, false)
	key := env.issue(t, 2)
	_, err := env.activations.Activate(context.Background(), key, "dev-a")
	assert.NoError(t, err)

	rec, out := doJSON(t, h.Verify, http.MethodGet, "/verify?key="+key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "standard", out["plan"])
	assert.Equal(t, "active", out["status"])
	assert.Equal(t, float64(2), out["max_devices"])
	assert.Equal(t, float64(1), out["devices_used"])

	rec, out = doJSON(t, h.Verify, http.MethodPost, "/verify", map[string]string{"key": key})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["valid"])

	rec, _ = doJSON(t, h.Verify, http.MethodGet, "/verify?key=LIC-NOPE", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":false,"valid":false,"reason":"not_found"}`, rec.Body.String())

	_, err = env.licenses.Revoke(context.Background(), key)
	assert.NoError(t, err)
	rec, _ = doJSON(t, h.Verify, http.MethodGet, "/verify?key="+key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":false,"valid":false,"reason":"revoked"}`, rec.Body.String())

	rec, out = doJSON(t, h.Verify, http.MethodGet, "/verify", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_params", out["reason"])
	assert.Equal(t, false, out["valid"])
}

func TestProductionHidesStorageErrors(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.activations, env.metrics, true)
	key := env.issue(t, 1)

	// A closed pool turns every query into a storage failure.
	env.store.Close()

	rec, out := doJSON(t, h.Activate, http.MethodPost, "/activate", map[string]string{"key": key, "deviceId": "d"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), out["error"])
	assert.NotContains(t, rec.Body.String(), "sql")
}
