package services

import (
	"errors"
	"fmt"

	"licensegate/database"
	"licensegate/models"
)

var (
	// ErrLicenseNotFound is returned when no license matches a key or order.
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseRevoked is returned when the license exists but is not active.
	ErrLicenseRevoked = errors.New("license revoked")
	// ErrDeviceLimitReached is wrapped by DeviceLimitError.
	ErrDeviceLimitReached = errors.New("device limit reached")
	// ErrKeyGenerationExhausted is returned when every candidate key collided.
	ErrKeyGenerationExhausted = errors.New("key generation exhausted")
	// ErrMissingParams marks caller input that is absent or out of range.
	ErrMissingParams = errors.New("missing params")
	// ErrInvalidCredentials is returned by admin authentication.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrder marks an order event whose content cannot be issued.
	ErrInvalidOrder = errors.New("invalid order")
)

// DeviceLimitError carries the cap so clients can show it.
type DeviceLimitError struct {
	MaxDevices int
}

func (e *DeviceLimitError) Error() string {
	return fmt.Sprintf("device limit reached (max %d)", e.MaxDevices)
}

func (e *DeviceLimitError) Unwrap() error {
	return ErrDeviceLimitReached
}

// StorageError wraps a datastore failure with the operation that failed.
type StorageError struct {
	Op  string // lookup, count, insert, update
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("db %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Kind maps the operation onto its reason code.
func (e *StorageError) Kind() models.ErrorKind {
	switch e.Op {
	case "lookup":
		return models.ReasonDBLookupFailed
	case "count":
		return models.ReasonDBCountFailed
	case "insert":
		return models.ReasonDBInsertFailed
	case "update":
		return models.ReasonDBUpdateFailed
	default:
		return models.ReasonServerError
	}
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// ErrorKindFor maps any service error onto a stable reason code.
func ErrorKindFor(err error) models.ErrorKind {
	var storage *StorageError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingParams):
		return models.ReasonMissingParams
	case errors.Is(err, ErrLicenseNotFound):
		return models.ReasonNotFound
	case errors.Is(err, ErrLicenseRevoked):
		return models.ReasonRevoked
	case errors.Is(err, ErrDeviceLimitReached):
		return models.ReasonDeviceLimitReached
	case errors.Is(err, ErrKeyGenerationExhausted):
		return models.ReasonKeyGenerationExhausted
	case errors.Is(err, ErrInvalidCredentials):
		return models.ReasonUnauthorized
	case errors.Is(err, ErrInvalidOrder):
		return models.ReasonInvalidPayload
	case errors.As(err, &storage):
		return storage.Kind()
	default:
		return models.ReasonServerError
	}
}

func isDuplicateKeyError(err error) bool {
	return database.IsUniqueViolation(err)
}
