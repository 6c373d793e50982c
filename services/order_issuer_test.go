package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"licensegate/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	calls   []string
	err     error
	enabled bool
}

func (w *recordingWriter) Enabled() bool { return w.enabled }

func (w *recordingWriter) WriteLicense(_ context.Context, orderID string, license models.License) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, orderID+"="+license.Key)
	return w.err
}

var testPlans = PlanResolver{
	DefaultPlan:       "standard",
	DefaultMaxDevices: 2,
	PlanDevices:       map[string]int{"PRO": 5},
	PaidStatuses:      []string{"processing", "completed"},
}

func paidOrder(id string) OrderEvent {
	order := OrderEvent{ID: OrderID(id), Status: "completed"}
	order.Billing.Email = "buyer@example.com"
	order.LineItems = []OrderLineItem{{SKU: "PRO", Quantity: 1}}
	return order
}

func TestOrderIssuerIssuesAndWritesBackOnce(t *testing.T) {
	s := newTestServices(t)
	writer := &recordingWriter{enabled: true}
	issuer := NewOrderIssuer(s.licenses, writer, testPlans)
	ctx := context.Background()

	first, err := issuer.HandleOrder(ctx, paidOrder("1001"))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Regexp(t, keyPattern, first.Key)

	again, err := issuer.HandleOrder(ctx, paidOrder("1001"))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Key, again.Key)

	assert.Equal(t, []string{"1001=" + first.Key}, writer.calls)

	license, err := s.licenses.GetByKey(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, "PRO", license.Plan)
	assert.Equal(t, 5, license.MaxDevices)
}

func TestOrderIssuerSkipsUnpaid(t *testing.T) {
	s := newTestServices(t)
	writer := &recordingWriter{enabled: true}
	issuer := NewOrderIssuer(s.licenses, writer, testPlans)

	order := paidOrder("1002")
	order.Status = "pending"
	outcome, err := issuer.HandleOrder(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, SkipReasonOrderNotPaid, outcome.SkipReason)
	assert.Empty(t, writer.calls)

	_, err = s.licenses.GetByOrder(context.Background(), "1002")
	assert.ErrorIs(t, err, ErrLicenseNotFound)
}

func TestOrderIssuerWriteBackFailureDoesNotFailIssuance(t *testing.T) {
	s := newTestServices(t)
	writer := &recordingWriter{enabled: true, err: errors.New("shop down")}
	issuer := NewOrderIssuer(s.licenses, writer, testPlans)

	outcome, err := issuer.HandleOrder(context.Background(), paidOrder("1003"))
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.Error(t, outcome.WriteBackErr)

	_, err = s.licenses.GetByOrder(context.Background(), "1003")
	assert.NoError(t, err)
}

func TestOrderIssuerDisabledWriter(t *testing.T) {
	s := newTestServices(t)
	issuer := NewOrderIssuer(s.licenses, NewOrderWriter(StoreOptions{}), testPlans)

	outcome, err := issuer.HandleOrder(context.Background(), paidOrder("1004"))
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.NoError(t, outcome.WriteBackErr)
}

func TestWooCommerceWriter(t *testing.T) {
	type call struct {
		method, path, user, pass string
		body                     map[string]interface{}
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		json.Unmarshal(raw, &body)

		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path, user, pass, body})
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	writer := NewOrderWriter(StoreOptions{
		BaseURL:        srv.URL + "/",
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
		Timeout:        time.Second,
	})
	require.True(t, writer.Enabled())

	err := writer.WriteLicense(context.Background(), "1001", models.License{Key: "LIC-AAAA-BBBB-CCCC-DDDD", Plan: "pro", MaxDevices: 3})
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[0].method)
	assert.Equal(t, "/wp-json/wc/v3/orders/1001", calls[0].path)
	assert.Equal(t, "ck_test", calls[0].user)
	assert.Equal(t, "cs_test", calls[0].pass)
	meta := calls[0].body["meta_data"].([]interface{})
	first := meta[0].(map[string]interface{})
	assert.Equal(t, LicenseKeyMetaKey, first["key"])
	assert.Equal(t, "LIC-AAAA-BBBB-CCCC-DDDD", first["value"])

	assert.Equal(t, http.MethodPost, calls[1].method)
	assert.Equal(t, "/wp-json/wc/v3/orders/1001/notes", calls[1].path)
	assert.Equal(t, true, calls[1].body["customer_note"])
	assert.Contains(t, calls[1].body["note"], "LIC-AAAA-BBBB-CCCC-DDDD")
}

func TestWooCommerceWriterReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"woocommerce_rest_cannot_edit"}`))
	}))
	defer srv.Close()

	writer := NewOrderWriter(StoreOptions{BaseURL: srv.URL, ConsumerKey: "k", ConsumerSecret: "s"})
	err := writer.WriteLicense(context.Background(), "1", models.License{Key: "LIC-X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
