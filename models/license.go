package models

import "time"

// License is a purchased credential identified by its key.
type License struct {
	Key        string    `json:"key" db:"license_key"`
	Status     string    `json:"status" db:"status"` // active, revoked
	Plan       string    `json:"plan" db:"plan"`
	MaxDevices int       `json:"max_devices" db:"max_devices"`
	OrderID    *string   `json:"order_id,omitempty" db:"order_id"`
	Email      *string   `json:"email,omitempty" db:"email"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// License status values
const (
	LicenseStatusActive  = "active"
	LicenseStatusRevoked = "revoked"
)

// IsActive reports whether the license may be used.
func (l *License) IsActive() bool {
	return l.Status == LicenseStatusActive
}

// CreateLicenseRequest is the admin manual-issuance body.
type CreateLicenseRequest struct {
	OrderID    string `json:"order_id"`
	Email      string `json:"email" validate:"omitempty,email"`
	Plan       string `json:"plan" validate:"required"`
	MaxDevices int    `json:"max_devices" validate:"required,min=1"`
}

// RevokeLicenseRequest is the admin revoke body.
type RevokeLicenseRequest struct {
	Key string `json:"key" validate:"required"`
}

// LicenseDetail is a license together with every device ever bound to it.
type LicenseDetail struct {
	License     License      `json:"license"`
	Activations []Activation `json:"activations"`
	DevicesUsed int          `json:"devices_used"`
}
