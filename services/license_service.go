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

// IssueRequest describes a license to issue. OrderID is optional; when set,
// issuance is idempotent per order.
type IssueRequest struct {
	OrderID    string
	Email      string
	Plan       string
	MaxDevices int
}

// LicenseStats is a snapshot used by the metrics job.
type LicenseStats struct {
	ByStatus     map[string]int
	DevicesBound int
}

// LicenseService owns the licenses table.
type LicenseService interface {
	Issue(ctx context.Context, req IssueRequest) (models.License, bool, error)
	GetByKey(ctx context.Context, key string) (models.License, error)
	GetByOrder(ctx context.Context, orderID string) (models.License, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	Revoke(ctx context.Context, key string) (models.License, error)
	Stats(ctx context.Context) (LicenseStats, error)
}

type licenseService struct {
	db   SQLExecutor
	keys *KeyGenerator
}

// NewLicenseService wires a registry whose keys carry the given prefix.
func NewLicenseService(db SQLExecutor, keyPrefix string) LicenseService {
	s := &licenseService{db: db}
	s.keys = NewKeyGenerator(keyPrefix, s.KeyExists)
	return s
}

const licenseColumns = `license_key, status, plan, max_devices, order_id, email, created_at`

func (s *licenseService) Issue(ctx context.Context, req IssueRequest) (models.License, bool, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Email = strings.TrimSpace(req.Email)
	if req.MaxDevices <= 0 {
		return models.License{}, false, fmt.Errorf("%w: max_devices must be positive", ErrMissingParams)
	}

	if req.OrderID != "" {
		existing, err := s.GetByOrder(ctx, req.OrderID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrLicenseNotFound) {
			return models.License{}, false, err
		}
	}

	key, err := s.keys.Generate(ctx)
	if err != nil {
		return models.License{}, false, err
	}

	now := utils.NowUTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO licenses (`+licenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key, models.LicenseStatusActive, req.Plan, req.MaxDevices,
		nullString(req.OrderID), nullString(req.Email), utils.FormatDateTimeForDB(now),
	)
	if err != nil {
		if isDuplicateKeyError(err) && req.OrderID != "" {
			// A concurrent delivery of the same order won the insert.
			winner, lookupErr := s.GetByOrder(ctx, req.OrderID)
			if lookupErr == nil {
				logger.WithFields(map[string]interface{}{
					"order_id": req.OrderID,
					"key":      winner.Key,
				}).Info("Order already issued by a concurrent delivery")
				return winner, false, nil
			}
			if !errors.Is(lookupErr, ErrLicenseNotFound) {
				return models.License{}, false, lookupErr
			}
		}
		return models.License{}, false, storageErr("insert", err)
	}

	license := models.License{
		Key:        key,
		Status:     models.LicenseStatusActive,
		Plan:       req.Plan,
		MaxDevices: req.MaxDevices,
		OrderID:    optionalString(req.OrderID),
		Email:      optionalString(req.Email),
		CreatedAt:  now,
	}
	logger.WithFields(map[string]interface{}{
		"key":         key,
		"order_id":    req.OrderID,
		"plan":        req.Plan,
		"max_devices": req.MaxDevices,
	}).Info("License issued")
	return license, true, nil
}

func (s *licenseService) GetByKey(ctx context.Context, key string) (models.License, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE license_key = ?`, key)
	return scanLicense(row)
}

func (s *licenseService) GetByOrder(ctx context.Context, orderID string) (models.License, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE order_id = ?`, orderID)
	return scanLicense(row)
}

func (s *licenseService) KeyExists(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM licenses WHERE license_key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke flips an active license to revoked. Revoking twice is a no-op.
func (s *licenseService) Revoke(ctx context.Context, key string) (models.License, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE licenses SET status = ? WHERE license_key = ?`,
		models.LicenseStatusRevoked, key)
	if err != nil {
		return models.License{}, storageErr("update", err)
	}

	// MySQL reports zero affected rows for an unchanged row, so existence is
	// decided by the read.
	license, err := s.GetByKey(ctx, key)
	if err != nil {
		return models.License{}, err
	}
	logger.WithFields(map[string]interface{}{"key": key}).Warn("License revoked")
	return license, nil
}

func (s *licenseService) Stats(ctx context.Context) (LicenseStats, error) {
	stats := LicenseStats{ByStatus: map[string]int{
		models.LicenseStatusActive:  0,
		models.LicenseStatusRevoked: 0,
	}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM licenses GROUP BY status`)
	if err != nil {
		return stats, storageErr("count", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, storageErr("count", err)
		}
		stats.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return stats, storageErr("count", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activations`).Scan(&stats.DevicesBound); err != nil {
		return stats, storageErr("count", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (models.License, error) {
	var (
		license   models.License
		orderID   sql.NullString
		email     sql.NullString
		createdAt string
	)
	err := row.Scan(&license.Key, &license.Status, &license.Plan, &license.MaxDevices, &orderID, &email, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.License{}, ErrLicenseNotFound
		}
		return models.License{}, storageErr("lookup", err)
	}

	if orderID.Valid {
		license.OrderID = &orderID.String
	}
	if email.Valid {
		license.Email = &email.String
	}
	if ts, err := utils.ParseDBDate(createdAt); err == nil {
		license.CreatedAt = ts
	}
	return license, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
