package models

import "time"

// DeviceActivityLog is one audit row for an activation touch.
type DeviceActivityLog struct {
	ID         int64     `json:"id" db:"id"`
	LicenseKey string    `json:"license_key" db:"license_key"`
	DeviceID   string    `json:"device_id" db:"device_id"`
	Action     string    `json:"action" db:"action"`
	Details    string    `json:"details" db:"details"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

const (
	DeviceActionActivated   = "activated"
	DeviceActionReactivated = "reactivated"
	DeviceActionDeactivated = "deactivated"
	DeviceActionRejected    = "rejected"
)
