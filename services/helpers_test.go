package services

import (
	"context"
	"path/filepath"
	"testing"

	"licensegate/database"

	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) SQLExecutor {
	t.Helper()

	store, err := database.Open(context.Background(), database.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "license.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewSQLExecutor(store)
}

type testServices struct {
	db          SQLExecutor
	licenses    LicenseService
	activations ActivationService
	activity    ActivityLog
}

func newTestServices(t *testing.T) testServices {
	t.Helper()

	db := newTestExecutor(t)
	licenses := NewLicenseService(db, "LIC")
	activity := NewActivityLog(db)
	return testServices{
		db:          db,
		licenses:    licenses,
		activations: NewActivationService(db, licenses, activity),
		activity:    activity,
	}
}

func (s testServices) issue(t *testing.T, maxDevices int) string {
	t.Helper()

	license, created, err := s.licenses.Issue(context.Background(), IssueRequest{
		Plan:       "standard",
		MaxDevices: maxDevices,
	})
	require.NoError(t, err)
	require.True(t, created)
	return license.Key
}
