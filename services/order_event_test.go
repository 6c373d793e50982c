package services

import (
	"testing"

	"licensegate/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderEvent(t *testing.T) {
	order, err := ParseOrderEvent([]byte(`{
		"id": 1001,
		"status": " Processing ",
		"billing": {"email": " buyer@example.com "},
		"line_items": [{"sku": "PRO", "quantity": 2}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, OrderID("1001"), order.ID)
	assert.Equal(t, "processing", order.Status)
	assert.Equal(t, "buyer@example.com", order.Billing.Email)
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, "PRO", order.LineItems[0].SKU)
}

func TestParseOrderEventStringID(t *testing.T) {
	order, err := ParseOrderEvent([]byte(`{"id":"A-77","status":"completed"}`))
	require.NoError(t, err)
	assert.Equal(t, OrderID("A-77"), order.ID)
}

func TestParseOrderEventRejects(t *testing.T) {
	tests := map[string]string{
		"not json":   `webhook_id=5`,
		"no id":      `{"status":"completed"}`,
		"zero id":    `{"id":0}`,
		"float id":   `{"id":1.5}`,
		"array body": `[1,2]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOrderEvent([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestIsPingPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"form probe", "webhook_id=42", true},
		{"json probe", `{"webhook_id":42}`, true},
		{"json without id", `{"status":"completed"}`, true},
		{"json zero id", `{"id":0}`, true},
		{"order", `{"id":1001,"status":"completed"}`, false},
		{"string order id", `{"id":"1001"}`, false},
		{"empty", "", false},
		{"other form", "foo=bar", false},
		{"broken json", `{"id":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPingPayload([]byte(tt.body)))
		})
	}
}

func TestPlanResolver(t *testing.T) {
	p := PlanResolver{
		DefaultPlan:       "standard",
		DefaultMaxDevices: 2,
		PlanDevices:       map[string]int{"PRO": 3, "TEAM": 10},
		PaidStatuses:      []string{"processing", "completed"},
	}

	plan, devices, err := p.Resolve(OrderEvent{LineItems: []OrderLineItem{{SKU: "MUG", Quantity: 1}, {SKU: "PRO", Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, "PRO", plan)
	assert.Equal(t, 6, devices)

	plan, devices, err = p.Resolve(OrderEvent{LineItems: []OrderLineItem{{SKU: "TEAM"}}})
	require.NoError(t, err)
	assert.Equal(t, "TEAM", plan)
	assert.Equal(t, 10, devices)

	plan, devices, err = p.Resolve(OrderEvent{})
	require.NoError(t, err)
	assert.Equal(t, "standard", plan)
	assert.Equal(t, 2, devices)

	assert.True(t, p.IsPaid("completed"))
	assert.False(t, p.IsPaid("pending"))
	assert.True(t, PlanResolver{}.IsPaid("anything"))
}

func TestPlanResolverDefaultIsAtLeastOne(t *testing.T) {
	_, devices, err := PlanResolver{DefaultPlan: "basic"}.Resolve(OrderEvent{})
	require.NoError(t, err)
	assert.Equal(t, 1, devices)
}

func TestPlanResolverRejectsOversizedAllowance(t *testing.T) {
	p := PlanResolver{DefaultPlan: "standard", PlanDevices: map[string]int{"TEAM": 10}}

	_, devices, err := p.Resolve(OrderEvent{LineItems: []OrderLineItem{{SKU: "TEAM", Quantity: MaxDeviceAllowance / 10}}})
	require.NoError(t, err)
	assert.Equal(t, MaxDeviceAllowance/10*10, devices)

	_, _, err = p.Resolve(OrderEvent{LineItems: []OrderLineItem{{SKU: "TEAM", Quantity: MaxDeviceAllowance/10 + 1}}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, models.ReasonInvalidPayload, ErrorKindFor(err))

	_, devices, err = p.Resolve(OrderEvent{LineItems: []OrderLineItem{{SKU: "TEAM", Quantity: -4}}})
	require.NoError(t, err)
	assert.Equal(t, 10, devices)
}

func TestParseOrderEventQuantityOverflowIsRejected(t *testing.T) {
	_, err := ParseOrderEvent([]byte(`{"id":7,"status":"completed","line_items":[{"sku":"TEAM","quantity":99999999999999999999}]}`))
	assert.Error(t, err)
}

func TestSupportsTopic(t *testing.T) {
	assert.True(t, SupportsTopic(""))
	assert.True(t, SupportsTopic(TopicOrderCreated))
	assert.True(t, SupportsTopic(TopicOrderUpdated))
	assert.False(t, SupportsTopic("product.created"))
}
