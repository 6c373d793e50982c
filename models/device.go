package models

import "time"

// Activation binds one device to one license. Rows are never deleted, so a
// deactivated device keeps occupying its slot.
type Activation struct {
	LicenseKey     string    `json:"license_key" db:"license_key"`
	DeviceID       string    `json:"device_id" db:"device_id"`
	Active         bool      `json:"active" db:"active"`
	FirstActivated time.Time `json:"first_activated" db:"first_activated"`
	LastSeen       time.Time `json:"last_seen" db:"last_seen"`
}

// ActivateRequest is the client body for /activate.
type ActivateRequest struct {
	Key      string `json:"key" validate:"required,max=64"`
	DeviceID string `json:"deviceId" validate:"required,max=255"`
}

// DeactivateRequest is the client body for /deactivate.
type DeactivateRequest struct {
	Key      string `json:"key" validate:"required,max=64"`
	DeviceID string `json:"deviceId" validate:"required,max=255"`
}

// VerifyRequest is the client body (or query) for /verify.
type VerifyRequest struct {
	Key string `json:"key" validate:"required,max=64"`
}
