package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"licensegate/middleware"
	"licensegate/models"
	"licensegate/services"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds every request body, webhook deliveries included.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errInvalidPayload marks a body that is not the JSON we expect.
var errInvalidPayload = errors.New("invalid payload")

// decodeAndValidate decodes a JSON body into dst and runs its validate tags.
// Decode failures map to invalid_payload, validation failures to missing_params.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", services.ErrMissingParams)
		}
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", services.ErrMissingParams, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func errorKind(err error) models.ErrorKind {
	if errors.Is(err, errInvalidPayload) {
		return models.ReasonInvalidPayload
	}
	return services.ErrorKindFor(err)
}

// statusForKind is the default mapping; endpoints that fail soft override it.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ReasonMissingParams, models.ReasonInvalidPayload:
		return http.StatusBadRequest
	case models.ReasonMissingSignature, models.ReasonBadSignature, models.ReasonUnauthorized:
		return http.StatusUnauthorized
	case models.ReasonRevoked, models.ReasonDeviceLimitReached:
		return http.StatusForbidden
	case models.ReasonNotFound:
		return http.StatusNotFound
	case models.ReasonRateLimited:
		return http.StatusTooManyRequests
	case models.ReasonMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, status int, result models.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

// responder renders failures. In production the error text of server-side
// failures is replaced by the status text so datastore details never leak.
type responder struct {
	production bool
}

func (rs responder) failure(kind models.ErrorKind, status int, err error, data interface{}) models.Result {
	result := models.Failure(kind, data)
	if err == nil {
		return result
	}
	switch {
	case !rs.production:
		return result.WithError(err.Error())
	case status >= http.StatusInternalServerError:
		return result.WithError(http.StatusText(status))
	default:
		return result
	}
}

func (rs responder) fail(w http.ResponseWriter, err error, status int, data interface{}) {
	writeResult(w, status, rs.failure(errorKind(err), status, err, data))
}

func (rs responder) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeResult(w, http.StatusMethodNotAllowed, models.Failure(models.ReasonMethodNotAllowed, nil))
}

func requestFields(r *http.Request, fields map[string]interface{}) map[string]interface{} {
	fields["request_id"] = middleware.RequestIDFromContext(r.Context())
	return fields
}
