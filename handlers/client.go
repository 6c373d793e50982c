package handlers

import (
	"errors"
	"net/http"
	"strings"

	"licensegate/logger"
	"licensegate/metrics"
	"licensegate/models"
	"licensegate/services"
)

// ClientHandler serves the endpoints the client application calls with a
// license key.
type ClientHandler struct {
	responder
	activations services.ActivationService
	metrics     *metrics.Metrics
}

func NewClientHandler(activations services.ActivationService, m *metrics.Metrics, production bool) *ClientHandler {
	return &ClientHandler{
		responder:   responder{production: production},
		activations: activations,
		metrics:     m,
	}
}

// Activate binds a device to a license
// @Summary Activate a device
// @Description Binds deviceId to the license. A device already bound is reactivated and does not use another slot.
// @Tags client
// @Accept json
// @Produce json
// @Param request body models.ActivateRequest true "key and deviceId"
// @Success 200 {object} models.Result "ok, reused"
// @Failure 400 {object} models.Result "missing_params"
// @Failure 403 {object} models.Result "revoked or device_limit_reached"
// @Failure 404 {object} models.Result "not_found"
// @Failure 500 {object} models.Result "db_*_failed"
// @Router /activate [post]
func (h *ClientHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req models.ActivateRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.metrics.ObserveActivation(string(errorKind(err)))
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	result, err := h.activations.Activate(r.Context(), req.Key, req.DeviceID)
	if err != nil {
		kind := errorKind(err)
		h.metrics.ObserveActivation(string(kind))

		var limitErr *services.DeviceLimitError
		if errors.As(err, &limitErr) {
			logger.WithFields(requestFields(r, map[string]interface{}{
				"key":         req.Key,
				"device_id":   req.DeviceID,
				"max_devices": limitErr.MaxDevices,
			})).Warn("Activation rejected: device limit reached")
			writeResult(w, http.StatusForbidden, models.Failure(kind, map[string]int{"max_devices": limitErr.MaxDevices}))
			return
		}

		status := statusForKind(kind)
		fields := requestFields(r, map[string]interface{}{
			"key":       req.Key,
			"device_id": req.DeviceID,
			"reason":    kind,
		})
		if status >= http.StatusInternalServerError {
			fields["error"] = err.Error()
			logger.WithFields(fields).Error("Activation failed")
		} else {
			logger.WithFields(fields).Warn("Activation refused")
		}
		h.fail(w, err, status, nil)
		return
	}

	outcome := "activated"
	if result.Reused {
		outcome = "reused"
	}
	h.metrics.ObserveActivation(outcome)
	writeResult(w, http.StatusOK, models.Success(result))
}

// Deactivate marks a device inactive. Its slot stays consumed.
// @Summary Deactivate a device
// @Description Marks the device inactive. Unknown devices are a no-op. Deactivation never frees a slot.
// @Tags client
// @Accept json
// @Produce json
// @Param request body models.DeactivateRequest true "key and deviceId"
// @Success 200 {object} models.Result "ok"
// @Failure 400 {object} models.Result "missing_params"
// @Failure 500 {object} models.Result "db_update_failed"
// @Router /deactivate [post]
func (h *ClientHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req models.DeactivateRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	if err := h.activations.Deactivate(r.Context(), req.Key, req.DeviceID); err != nil {
		logger.WithFields(requestFields(r, map[string]interface{}{
			"key":       req.Key,
			"device_id": req.DeviceID,
			"error":     err.Error(),
		})).Error("Deactivation failed")
		h.fail(w, err, statusForKind(errorKind(err)), nil)
		return
	}

	h.metrics.ObserveDeactivation()
	writeResult(w, http.StatusOK, models.Success(nil))
}

// Verify reports whether a key is currently valid
// @Summary Verify a license key
// @Description Read-only check. Unknown and revoked keys answer 200 with valid=false.
// @Tags client
// @Accept json
// @Produce json
// @Param key query string false "license key (GET)"
// @Param request body models.VerifyRequest false "license key (POST)"
// @Success 200 {object} models.Result "ok, valid, plan, status, max_devices, devices_used"
// @Failure 400 {object} models.Result "missing_params"
// @Failure 500 {object} models.Result "db_*_failed"
// @Router /verify [get]
// @Router /verify [post]
func (h *ClientHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	switch r.Method {
	case http.MethodGet:
		req.Key = strings.TrimSpace(r.URL.Query().Get("key"))
		if err := validate.Struct(&req); err != nil {
			h.metrics.ObserveVerification(string(models.ReasonMissingParams))
			writeResult(w, http.StatusBadRequest, models.Failure(models.ReasonMissingParams, map[string]bool{"valid": false}))
			return
		}
	case http.MethodPost:
		if err := decodeAndValidate(w, r, &req); err != nil {
			kind := errorKind(err)
			h.metrics.ObserveVerification(string(kind))
			h.fail(w, err, statusForKind(kind), map[string]bool{"valid": false})
			return
		}
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	result, err := h.activations.Verify(r.Context(), req.Key)
	if err != nil {
		kind := errorKind(err)
		h.metrics.ObserveVerification(string(kind))

		switch kind {
		case models.ReasonNotFound, models.ReasonRevoked:
			writeResult(w, http.StatusOK, models.Failure(kind, map[string]bool{"valid": false}))
		default:
			logger.WithFields(requestFields(r, map[string]interface{}{
				"key":   req.Key,
				"error": err.Error(),
			})).Error("Verification failed")
			h.fail(w, err, statusForKind(kind), map[string]bool{"valid": false})
		}
		return
	}

	h.metrics.ObserveVerification("valid")
	writeResult(w, http.StatusOK, models.Success(result))
}
