package services

import (
	"context"
	"errors"

	"licensegate/logger"
)

// Skip reasons reported for order events that do not issue.
const (
	SkipReasonPing             = "ping"
	SkipReasonOrderNotPaid     = "order_not_paid"
	SkipReasonUnsupportedTopic = "unsupported_topic"
)

// OrderOutcome describes what happened to one order event.
type OrderOutcome struct {
	Key        string
	Created    bool
	Skipped    bool
	SkipReason string
	// WriteBackErr is informational; issuance has already succeeded.
	WriteBackErr error
}

// OrderIssuer turns verified order events into licenses.
type OrderIssuer struct {
	licenses LicenseService
	writer   OrderWriter
	plans    PlanResolver
}

func NewOrderIssuer(licenses LicenseService, writer OrderWriter, plans PlanResolver) *OrderIssuer {
	return &OrderIssuer{licenses: licenses, writer: writer, plans: plans}
}

// WritesBack reports whether issued keys are pushed to the shop.
func (o *OrderIssuer) WritesBack() bool {
	return o.writer != nil && o.writer.Enabled()
}

// SupportsTopic reports whether a webhook topic can issue. An empty topic is
// accepted for shops that omit the header.
func SupportsTopic(topic string) bool {
	switch topic {
	case "", TopicOrderCreated, TopicOrderUpdated:
		return true
	}
	return false
}

// HandleOrder issues a license for a paid order. Redelivered orders return
// the existing key and never write back twice.
func (o *OrderIssuer) HandleOrder(ctx context.Context, order OrderEvent) (OrderOutcome, error) {
	if !o.plans.IsPaid(order.Status) {
		return OrderOutcome{Skipped: true, SkipReason: SkipReasonOrderNotPaid}, nil
	}

	plan, maxDevices, err := o.plans.Resolve(order)
	if err != nil {
		return OrderOutcome{}, err
	}
	license, created, err := o.licenses.Issue(ctx, IssueRequest{
		OrderID:    string(order.ID),
		Email:      order.Billing.Email,
		Plan:       plan,
		MaxDevices: maxDevices,
	})
	if err != nil {
		return OrderOutcome{}, err
	}

	outcome := OrderOutcome{Key: license.Key, Created: created}
	if !created || !o.WritesBack() {
		return outcome, nil
	}

	if err := o.writer.WriteLicense(ctx, string(order.ID), license); err != nil {
		outcome.WriteBackErr = err
		fields := map[string]interface{}{
			"order_id": string(order.ID),
			"key":      license.Key,
			"error":    err.Error(),
		}
		if errors.Is(err, context.Canceled) {
			logger.WithFields(fields).Warn("Order write-back cancelled")
		} else {
			logger.WithFields(fields).Error("Order write-back failed")
		}
	}
	return outcome, nil
}
