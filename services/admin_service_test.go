package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdminAndAuthenticate(t *testing.T) {
	db := newTestExecutor(t)
	admins := NewAdminService(db)
	ctx := context.Background()

	created, err := admins.EnsureAdmin(ctx, "root", "first-pass")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, created.Role)
	assert.NotEqual(t, "first-pass", created.Password)

	admin, err := admins.Authenticate(ctx, "root", "first-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, admin.ID)

	_, err = admins.Authenticate(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = admins.Authenticate(ctx, "nobody", "first-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Re-seeding rotates the password but keeps the account.
	again, err := admins.EnsureAdmin(ctx, "root", "second-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = admins.Authenticate(ctx, "root", "first-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = admins.Authenticate(ctx, "root", "second-pass")
	assert.NoError(t, err)
}

func TestEnsureAdminRequiresCredentials(t *testing.T) {
	admins := NewAdminService(newTestExecutor(t))

	_, err := admins.EnsureAdmin(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrMissingParams)
	_, err = admins.EnsureAdmin(context.Background(), "root", "")
	assert.ErrorIs(t, err, ErrMissingParams)
}

func TestRoleOfReadsStoredRole(t *testing.T) {
	db := newTestExecutor(t)
	admins := NewAdminService(db)
	ctx := context.Background()

	admin, err := admins.EnsureAdmin(ctx, "root", "pass")
	require.NoError(t, err)

	role, err := admins.RoleOf(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, role)

	_, err = db.ExecContext(ctx, `UPDATE admins SET role = ? WHERE id = ?`, "viewer", admin.ID)
	require.NoError(t, err)
	role, err = admins.RoleOf(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "viewer", role)

	_, err = admins.RoleOf(ctx, "admin-missing")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
