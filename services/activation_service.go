package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"licensegate/database"
	"licensegate/logger"
	"licensegate/models"
	"licensegate/utils"
)

// ActivationResult is returned by Activate.
type ActivationResult struct {
	Reused      bool `json:"reused"`
	MaxDevices  int  `json:"max_devices"`
	DevicesUsed int  `json:"devices_used"`
}

// VerifyResult is the read-only view of a license for clients.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	Plan        string `json:"plan"`
	Status      string `json:"status"`
	MaxDevices  int    `json:"max_devices"`
	DevicesUsed int    `json:"devices_used"`
}

// ActivationService owns the activations table. Every device that was ever
// activated keeps its slot; deactivation only flips the active flag.
type ActivationService interface {
	Activate(ctx context.Context, key, deviceID string) (ActivationResult, error)
	Deactivate(ctx context.Context, key, deviceID string) error
	Verify(ctx context.Context, key string) (VerifyResult, error)
	ListActivations(ctx context.Context, key string) ([]models.Activation, error)
}

type activationService struct {
	db       SQLExecutor
	licenses LicenseService
	activity ActivityLog
}

func NewActivationService(db SQLExecutor, licenses LicenseService, activity ActivityLog) ActivationService {
	return &activationService{db: db, licenses: licenses, activity: activity}
}

func (s *activationService) Activate(ctx context.Context, key, deviceID string) (ActivationResult, error) {
	key = strings.TrimSpace(key)
	deviceID = strings.TrimSpace(deviceID)
	if key == "" || deviceID == "" {
		return ActivationResult{}, ErrMissingParams
	}

	var result ActivationResult
	err := s.db.WithTx(ctx, func(q Querier) error {
		var status string
		err := q.QueryRowContext(ctx,
			`SELECT status, max_devices FROM licenses WHERE license_key = ?`+database.LockClause(s.db.Dialect()),
			key,
		).Scan(&status, &result.MaxDevices)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLicenseNotFound
		}
		if err != nil {
			return storageErr("lookup", err)
		}
		if status != models.LicenseStatusActive {
			return ErrLicenseRevoked
		}

		now := utils.FormatDateTimeForDB(utils.NowUTC())

		var existing int
		err = q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM activations WHERE license_key = ? AND device_id = ?`,
			key, deviceID,
		).Scan(&existing)
		if err != nil {
			return storageErr("lookup", err)
		}

		if existing > 0 {
			if _, err := q.ExecContext(ctx,
				`UPDATE activations SET active = TRUE, last_seen = ? WHERE license_key = ? AND device_id = ?`,
				now, key, deviceID,
			); err != nil {
				return storageErr("update", err)
			}
			result.Reused = true
		} else {
			// The row count is the number of distinct devices because
			// (license_key, device_id) is the primary key.
			res, err := q.ExecContext(ctx, `
				INSERT INTO activations (license_key, device_id, active, first_activated, last_seen)
				SELECT ?, ?, TRUE, ?, ?`+database.FromDual(s.db.Dialect())+`
				WHERE (SELECT COUNT(*) FROM activations WHERE license_key = ?) < ?`,
				key, deviceID, now, now, key, result.MaxDevices,
			)
			if err != nil {
				return storageErr("insert", err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return storageErr("insert", err)
			}
			if inserted == 0 {
				return &DeviceLimitError{MaxDevices: result.MaxDevices}
			}
		}

		used, err := countDevices(ctx, q, key)
		if err != nil {
			return err
		}
		result.DevicesUsed = used
		return nil
	})

	var limitErr *DeviceLimitError
	switch {
	case err == nil:
		action := models.DeviceActionActivated
		if result.Reused {
			action = models.DeviceActionReactivated
		}
		s.activity.Record(ctx, key, deviceID, action, "")
		logger.WithFields(map[string]interface{}{
			"key":          key,
			"device_id":    deviceID,
			"reused":       result.Reused,
			"devices_used": result.DevicesUsed,
			"max_devices":  result.MaxDevices,
		}).Info("Device activated")
		return result, nil
	case errors.As(err, &limitErr):
		s.activity.Record(ctx, key, deviceID, models.DeviceActionRejected,
			fmt.Sprintf("device limit %d reached", limitErr.MaxDevices))
		return ActivationResult{MaxDevices: limitErr.MaxDevices}, err
	default:
		return ActivationResult{}, err
	}
}

// Deactivate is a no-op for unknown or already inactive devices.
func (s *activationService) Deactivate(ctx context.Context, key, deviceID string) error {
	key = strings.TrimSpace(key)
	deviceID = strings.TrimSpace(deviceID)
	if key == "" || deviceID == "" {
		return ErrMissingParams
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE activations SET active = FALSE, last_seen = ? WHERE license_key = ? AND device_id = ?`,
		utils.FormatDateTimeForDB(utils.NowUTC()), key, deviceID,
	)
	if err != nil {
		return storageErr("update", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.activity.Record(ctx, key, deviceID, models.DeviceActionDeactivated, "")
		logger.WithFields(map[string]interface{}{
			"key":       key,
			"device_id": deviceID,
		}).Info("Device deactivated")
	}
	return nil
}

func (s *activationService) Verify(ctx context.Context, key string) (VerifyResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return VerifyResult{}, ErrMissingParams
	}

	license, err := s.licenses.GetByKey(ctx, key)
	if err != nil {
		return VerifyResult{}, err
	}
	result := VerifyResult{
		Plan:       license.Plan,
		Status:     license.Status,
		MaxDevices: license.MaxDevices,
	}
	if !license.IsActive() {
		return result, ErrLicenseRevoked
	}

	used, err := countDevices(ctx, s.db, key)
	if err != nil {
		return result, err
	}
	result.DevicesUsed = used
	result.Valid = true
	return result, nil
}

func (s *activationService) ListActivations(ctx context.Context, key string) ([]models.Activation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT license_key, device_id, active, first_activated, last_seen
		FROM activations
		WHERE license_key = ?
		ORDER BY first_activated ASC, device_id ASC`, key)
	if err != nil {
		return nil, storageErr("lookup", err)
	}
	defer rows.Close()

	activations := make([]models.Activation, 0)
	for rows.Next() {
		var (
			a              models.Activation
			first, last string
		)
		if err := rows.Scan(&a.LicenseKey, &a.DeviceID, &a.Active, &first, &last); err != nil {
			return nil, storageErr("lookup", err)
		}
		a.FirstActivated, _ = utils.ParseDBDate(first)
		a.LastSeen, _ = utils.ParseDBDate(last)
		activations = append(activations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("lookup", err)
	}
	return activations, nil
}

func countDevices(ctx context.Context, q Querier, key string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT device_id) FROM activations WHERE license_key = ?`, key,
	).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}
