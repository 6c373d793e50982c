package services

import (
	"context"

	"licensegate/logger"
	"licensegate/models"
	"licensegate/utils"
)

// ActivityLog records device touches for support. Writes are best effort.
type ActivityLog interface {
	Record(ctx context.Context, key, deviceID, action, details string)
	List(ctx context.Context, key string, limit int) ([]models.DeviceActivityLog, error)
}

type activityLog struct {
	db SQLExecutor
}

func NewActivityLog(db SQLExecutor) ActivityLog {
	return &activityLog{db: db}
}

func (a *activityLog) Record(ctx context.Context, key, deviceID, action, details string) {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO device_activity_logs (license_key, device_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		key, deviceID, action, details, utils.FormatDateTimeForDB(utils.NowUTC()),
	)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"key":       key,
			"device_id": deviceID,
			"action":    action,
			"error":     err.Error(),
		}).Warn("Failed to record device activity")
	}
}

// List returns the newest entries first.
func (a *activityLog) List(ctx context.Context, key string, limit int) ([]models.DeviceActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, license_key, device_id, action, details, created_at
		FROM device_activity_logs
		WHERE license_key = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, key, limit)
	if err != nil {
		return nil, storageErr("lookup", err)
	}
	defer rows.Close()

	logs := make([]models.DeviceActivityLog, 0)
	for rows.Next() {
		var (
			entry     models.DeviceActivityLog
			details   *string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.LicenseKey, &entry.DeviceID, &entry.Action, &details, &createdAt); err != nil {
			return nil, storageErr("lookup", err)
		}
		if details != nil {
			entry.Details = *details
		}
		entry.CreatedAt, _ = utils.ParseDBDate(createdAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("lookup", err)
	}
	return logs, nil
}
