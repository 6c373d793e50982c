package models

import "encoding/json"

// ErrorKind is the stable, machine-readable reason code returned to callers.
type ErrorKind string

const (
	ReasonMissingParams          ErrorKind = "missing_params"
	ReasonInvalidPayload         ErrorKind = "invalid_payload"
	ReasonNotFound               ErrorKind = "not_found"
	ReasonRevoked                ErrorKind = "revoked"
	ReasonDeviceLimitReached     ErrorKind = "device_limit_reached"
	ReasonMissingSignature       ErrorKind = "missing_signature"
	ReasonBadSignature           ErrorKind = "bad_signature"
	ReasonKeyGenerationExhausted ErrorKind = "key_generation_exhausted"
	ReasonDBLookupFailed         ErrorKind = "db_lookup_failed"
	ReasonDBCountFailed          ErrorKind = "db_count_failed"
	ReasonDBInsertFailed         ErrorKind = "db_insert_failed"
	ReasonDBUpdateFailed         ErrorKind = "db_update_failed"
	ReasonServerMisconfigured    ErrorKind = "server_misconfigured"
	ReasonServerError            ErrorKind = "server_error"
	ReasonUnauthorized           ErrorKind = "unauthorized"
	ReasonRateLimited            ErrorKind = "rate_limited"
	ReasonMethodNotAllowed       ErrorKind = "method_not_allowed"
)

// Result is the single response envelope for every endpoint. Data, when it
// encodes to a JSON object, is flattened next to ok/reason so clients read
// e.g. {"ok":true,"reused":false} rather than a nested payload.
type Result struct {
	OK     bool
	Reason ErrorKind
	Error  string
	Data   interface{}
}

// Success builds an ok result.
func Success(data interface{}) Result {
	return Result{OK: true, Data: data}
}

// Failure builds a failed result with a reason and optional extra fields.
func Failure(reason ErrorKind, data interface{}) Result {
	return Result{OK: false, Reason: reason, Data: data}
}

// WithError attaches an error message. Callers decide whether the message is
// safe to show to the client.
func (r Result) WithError(msg string) Result {
	r.Error = msg
	return r
}

// MarshalJSON flattens Data into the envelope.
func (r Result) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)

	if r.Data != nil {
		raw, err := json.Marshal(r.Data)
		if err != nil {
			return nil, err
		}
		switch {
		case len(raw) > 0 && raw[0] == '{':
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, err
			}
		case string(raw) != "null":
			fields["data"] = raw
		}
	}

	fields["ok"] = json.RawMessage("false")
	if r.OK {
		fields["ok"] = json.RawMessage("true")
	}
	if r.Reason != "" {
		reason, _ := json.Marshal(r.Reason)
		fields["reason"] = reason
	}
	if r.Error != "" {
		msg, _ := json.Marshal(r.Error)
		fields["error"] = msg
	}

	return json.Marshal(fields)
}
