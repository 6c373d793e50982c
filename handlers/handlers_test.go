package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"licensegate/database"
	"licensegate/metrics"
	"licensegate/services"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store       *database.Store
	licenses    services.LicenseService
	activations services.ActivationService
	activity    services.ActivityLog
	admins      services.AdminService
	metrics     *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := database.Open(context.Background(), database.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "license.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db := services.NewSQLExecutor(store)
	licenses := services.NewLicenseService(db, "LIC")
	activity := services.NewActivityLog(db)
	return &testEnv{
		store:       store,
		licenses:    licenses,
		activations: services.NewActivationService(db, licenses, activity),
		activity:    activity,
		admins:      services.NewAdminService(db),
		metrics:     metrics.New(),
	}
}

func (e *testEnv) issue(t *testing.T, maxDevices int) string {
	t.Helper()
	license, _, err := e.licenses.Issue(context.Background(), services.IssueRequest{Plan: "standard", MaxDevices: maxDevices})
	require.NoError(t, err)
	return license.Key
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}
