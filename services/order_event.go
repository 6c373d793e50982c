package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Order topics that may lead to issuance.
const (
	TopicOrderCreated = "order.created"
	TopicOrderUpdated = "order.updated"
)

// OrderID accepts the order id as either a JSON number or a string.
type OrderID string

func (id *OrderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OrderID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("order id %q is not an integer", n)
	}
	*id = OrderID(n.String())
	return nil
}

// OrderLineItem is the part of a line item that drives plan selection.
type OrderLineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// OrderEvent is the subset of a WooCommerce order payload the service reads.
type OrderEvent struct {
	ID      OrderID `json:"id"`
	Status  string  `json:"status"`
	Billing struct {
		Email string `json:"email"`
	} `json:"billing"`
	LineItems []OrderLineItem `json:"line_items"`
}

// ParseOrderEvent decodes a raw order body.
func ParseOrderEvent(body []byte) (OrderEvent, error) {
	var order OrderEvent
	if err := json.Unmarshal(body, &order); err != nil {
		return OrderEvent{}, fmt.Errorf("decode order: %w", err)
	}
	if order.ID == "" || order.ID == "0" {
		return OrderEvent{}, fmt.Errorf("order id missing")
	}
	order.Status = strings.ToLower(strings.TrimSpace(order.Status))
	order.Billing.Email = strings.TrimSpace(order.Billing.Email)
	return order, nil
}

// IsPingPayload reports whether the body is the shop's connectivity probe
// rather than an order: a form body carrying webhook_id, or JSON with no id.
func IsPingPayload(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}

	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return false
		}
		id, ok := probe["id"]
		if !ok {
			return true
		}
		s := strings.Trim(string(id), `" `)
		return s == "" || s == "0" || s == "null"
	}

	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return false
	}
	return values.Has("webhook_id")
}

// PlanResolver turns an order into a plan name and a device allowance.
type PlanResolver struct {
	DefaultPlan       string
	DefaultMaxDevices int
	PlanDevices       map[string]int
	PaidStatuses      []string
}

// IsPaid reports whether the order status qualifies for issuance. An empty
// status list accepts everything.
func (p PlanResolver) IsPaid(status string) bool {
	if len(p.PaidStatuses) == 0 {
		return true
	}
	for _, s := range p.PaidStatuses {
		if strings.EqualFold(strings.TrimSpace(s), status) {
			return true
		}
	}
	return false
}

// MaxDeviceAllowance is the largest cap a license can carry; max_devices is
// an INT column on every dialect.
const MaxDeviceAllowance = math.MaxInt32

// Resolve picks the first line item whose SKU has a device mapping. The
// allowance scales with its quantity; a product above MaxDeviceAllowance is
// rejected with ErrInvalidOrder.
func (p PlanResolver) Resolve(order OrderEvent) (string, int, error) {
	for _, item := range order.LineItems {
		sku := strings.TrimSpace(item.SKU)
		devices, ok := p.PlanDevices[sku]
		if !ok || devices <= 0 {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if devices > MaxDeviceAllowance || qty > MaxDeviceAllowance/devices {
			return "", 0, fmt.Errorf("%w: %d x %q exceeds %d devices", ErrInvalidOrder, qty, sku, MaxDeviceAllowance)
		}
		return sku, devices * qty, nil
	}

	devices := p.DefaultMaxDevices
	if devices < 1 {
		devices = 1
	}
	if devices > MaxDeviceAllowance {
		devices = MaxDeviceAllowance
	}
	return p.DefaultPlan, devices, nil
}
