package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"licensegate/logger"
	"licensegate/metrics"
	"licensegate/models"
	"licensegate/services"
)

// Webhook headers set by the shop on every delivery.
const (
	SignatureHeader = "X-WC-Webhook-Signature"
	TopicHeader     = "X-WC-Webhook-Topic"
)

// WebhookHandler issues licenses from signed order events.
type WebhookHandler struct {
	responder
	verifier *services.SignatureVerifier
	issuer   *services.OrderIssuer
	metrics  *metrics.Metrics
}

func NewWebhookHandler(verifier *services.SignatureVerifier, issuer *services.OrderIssuer, m *metrics.Metrics, production bool) *WebhookHandler {
	return &WebhookHandler{
		responder: responder{production: production},
		verifier:  verifier,
		issuer:    issuer,
		metrics:   m,
	}
}

type generateResponse struct {
	Key     string `json:"key"`
	Created bool   `json:"created"`
}

type skippedResponse struct {
	Skipped bool `json:"skipped"`
}

// Generate handles an order webhook
// @Summary Issue a license for an order
// @Description Verifies the HMAC signature over the raw body and issues one license per order. Redeliveries return the existing key. Any non-2xx answer makes the shop redeliver.
// @Tags webhook
// @Accept json
// @Produce json
// @Param X-WC-Webhook-Signature header string true "base64 HMAC-SHA256 of the body"
// @Param X-WC-Webhook-Topic header string false "order.created or order.updated"
// @Success 200 {object} models.Result "ok, key or ok, skipped, reason"
// @Failure 400 {object} models.Result "invalid_payload"
// @Failure 401 {object} models.Result "missing_signature or bad_signature"
// @Failure 500 {object} models.Result "server_misconfigured, key_generation_exhausted or db_*_failed"
// @Router /generate [post]
func (h *WebhookHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.ObserveWebhook(string(models.ReasonInvalidPayload))
		h.fail(w, fmt.Errorf("%w: %v", errInvalidPayload, err), http.StatusBadRequest, nil)
		return
	}

	if services.IsPingPayload(body) {
		logger.WithFields(requestFields(r, map[string]interface{}{
			"topic": r.Header.Get(TopicHeader),
		})).Info("Webhook ping acknowledged")
		h.metrics.ObserveWebhook(services.SkipReasonPing)
		h.skip(w, services.SkipReasonPing)
		return
	}

	if !h.verifier.Configured() {
		logger.WithFields(requestFields(r, map[string]interface{}{})).Error("Webhook secret is not configured, refusing order event")
		h.metrics.ObserveWebhook(string(models.ReasonServerMisconfigured))
		writeResult(w, http.StatusInternalServerError,
			h.failure(models.ReasonServerMisconfigured, http.StatusInternalServerError, errors.New("webhook secret not configured"), nil))
		return
	}

	signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if signature == "" {
		h.rejectSignature(w, r, models.ReasonMissingSignature)
		return
	}
	if !h.verifier.Verify(body, signature) {
		h.rejectSignature(w, r, models.ReasonBadSignature)
		return
	}

	topic := strings.ToLower(strings.TrimSpace(r.Header.Get(TopicHeader)))
	if !services.SupportsTopic(topic) {
		logger.WithFields(requestFields(r, map[string]interface{}{"topic": topic})).Info("Webhook topic ignored")
		h.metrics.ObserveWebhook(services.SkipReasonUnsupportedTopic)
		h.skip(w, services.SkipReasonUnsupportedTopic)
		return
	}

	order, err := services.ParseOrderEvent(body)
	if err != nil {
		logger.WithFields(requestFields(r, map[string]interface{}{"error": err.Error()})).Warn("Invalid order payload")
		h.metrics.ObserveWebhook(string(models.ReasonInvalidPayload))
		h.fail(w, fmt.Errorf("%w: %v", errInvalidPayload, err), http.StatusBadRequest, nil)
		return
	}

	outcome, err := h.issuer.HandleOrder(r.Context(), order)
	if err != nil {
		kind := errorKind(err)
		logger.WithFields(requestFields(r, map[string]interface{}{
			"order_id": string(order.ID),
			"reason":   kind,
			"error":    err.Error(),
		})).Error("License issuance failed")
		h.metrics.ObserveWebhook(string(kind))
		h.fail(w, err, statusForKind(kind), nil)
		return
	}

	if outcome.Skipped {
		logger.WithFields(requestFields(r, map[string]interface{}{
			"order_id": string(order.ID),
			"status":   order.Status,
			"reason":   outcome.SkipReason,
		})).Info("Order skipped")
		h.metrics.ObserveWebhook(outcome.SkipReason)
		h.skip(w, outcome.SkipReason)
		return
	}

	if outcome.Created {
		h.metrics.ObserveWebhook("issued")
		if h.issuer.WritesBack() {
			h.metrics.ObserveWriteBack(outcome.WriteBackErr == nil)
		}
	} else {
		h.metrics.ObserveWebhook("redelivered")
	}
	writeResult(w, http.StatusOK, models.Success(generateResponse{Key: outcome.Key, Created: outcome.Created}))
}

func (h *WebhookHandler) skip(w http.ResponseWriter, reason string) {
	result := models.Success(skippedResponse{Skipped: true})
	result.Reason = models.ErrorKind(reason)
	writeResult(w, http.StatusOK, result)
}

func (h *WebhookHandler) rejectSignature(w http.ResponseWriter, r *http.Request, kind models.ErrorKind) {
	logger.WithFields(requestFields(r, map[string]interface{}{
		"reason": kind,
		"ip":     r.RemoteAddr,
	})).Warn("Webhook signature rejected")
	h.metrics.ObserveWebhook(string(kind))
	writeResult(w, http.StatusUnauthorized, models.Failure(kind, nil))
}
