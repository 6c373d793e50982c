package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultFlattensObjectData(t *testing.T) {
	out, err := json.Marshal(Success(map[string]interface{}{"reused": true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"reused":true}`, string(out))
}

func TestResultFailureWithExtraFields(t *testing.T) {
	out, err := json.Marshal(Failure(ReasonDeviceLimitReached, struct {
		MaxDevices int `json:"max_devices"`
	}{1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"reason":"device_limit_reached","max_devices":1}`, string(out))
}

func TestResultNestsNonObjectData(t *testing.T) {
	out, err := json.Marshal(Success([]string{"a", "b"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":["a","b"]}`, string(out))
}

func TestResultEnvelopeWinsOverDataKeys(t *testing.T) {
	out, err := json.Marshal(Failure(ReasonNotFound, map[string]interface{}{"ok": true, "valid": false}).WithError("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"valid":false,"reason":"not_found","error":"boom"}`, string(out))
}

func TestResultWithoutData(t *testing.T) {
	out, err := json.Marshal(Success(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestLicenseIsActive(t *testing.T) {
	l := License{Status: LicenseStatusActive}
	assert.True(t, l.IsActive())
	l.Status = LicenseStatusRevoked
	assert.False(t, l.IsActive())
}
