package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"licensegate/logger"
	"licensegate/models"
	"licensegate/utils"
)

// Admin roles.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
)

// AdminService authenticates operators of the admin API.
type AdminService interface {
	EnsureAdmin(ctx context.Context, username, password string) (models.Admin, error)
	Authenticate(ctx context.Context, username, password string) (models.Admin, error)
	// RoleOf returns the stored role, so a demoted admin loses access before
	// the token expires.
	RoleOf(ctx context.Context, adminID string) (string, error)
}

type adminService struct {
	db SQLExecutor
}

func NewAdminService(db SQLExecutor) AdminService {
	return &adminService{db: db}
}

// EnsureAdmin creates the seeded super admin or resets its password to the
// configured one.
func (s *adminService) EnsureAdmin(ctx context.Context, username, password string) (models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Admin{}, fmt.Errorf("%w: admin username and password are required", ErrMissingParams)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return models.Admin{}, fmt.Errorf("hash password: %w", err)
	}

	admin, err := s.findByUsername(ctx, username)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `UPDATE admins SET password = ? WHERE id = ?`, hash, admin.ID); err != nil {
			return models.Admin{}, storageErr("update", err)
		}
		admin.Password = hash
		logger.Info("Admin account %s already exists, password synchronized", username)
		return admin, nil
	case !errors.Is(err, ErrInvalidCredentials):
		return models.Admin{}, err
	}

	id, err := utils.GenerateID("admin")
	if err != nil {
		return models.Admin{}, err
	}
	admin = models.Admin{
		ID:        id,
		Username:  username,
		Password:  hash,
		Role:      RoleSuperAdmin,
		CreatedAt: utils.FormatDateTimeForDB(utils.NowUTC()),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (id, username, password, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		admin.ID, admin.Username, admin.Password, admin.Role, admin.CreatedAt,
	); err != nil {
		return models.Admin{}, storageErr("insert", err)
	}

	logger.Info("Admin account %s created", username)
	return admin, nil
}

func (s *adminService) Authenticate(ctx context.Context, username, password string) (models.Admin, error) {
	admin, err := s.findByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return models.Admin{}, err
	}
	if !utils.CheckPassword(admin.Password, password) {
		return models.Admin{}, ErrInvalidCredentials
	}
	return admin, nil
}

func (s *adminService) RoleOf(ctx context.Context, adminID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM admins WHERE id = ?`, adminID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", storageErr("lookup", err)
	}
	return role, nil
}

func (s *adminService) findByUsername(ctx context.Context, username string) (models.Admin, error) {
	var admin models.Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, role, created_at FROM admins WHERE username = ?`, username,
	).Scan(&admin.ID, &admin.Username, &admin.Password, &admin.Role, &admin.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Admin{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Admin{}, storageErr("lookup", err)
	}
	return admin, nil
}
