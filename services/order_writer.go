package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"licensegate/models"
)

// LicenseKeyMetaKey is the order meta field the key is written to.
const LicenseKeyMetaKey = "_license_key"

// OrderWriter pushes an issued license back onto the upstream order.
type OrderWriter interface {
	WriteLicense(ctx context.Context, orderID string, license models.License) error
	Enabled() bool
}

// StoreOptions points at the shop's REST API.
type StoreOptions struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
}

type wooCommerceWriter struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
}

// NewOrderWriter returns a writer for the configured shop, or a disabled one
// when the options are incomplete.
func NewOrderWriter(opts StoreOptions) OrderWriter {
	if opts.BaseURL == "" || opts.ConsumerKey == "" || opts.ConsumerSecret == "" {
		return disabledWriter{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &wooCommerceWriter{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		key:     opts.ConsumerKey,
		secret:  opts.ConsumerSecret,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *wooCommerceWriter) Enabled() bool { return true }

type orderMeta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (w *wooCommerceWriter) WriteLicense(ctx context.Context, orderID string, license models.License) error {
	orderPath := "/wp-json/wc/v3/orders/" + url.PathEscape(orderID)

	meta := map[string]interface{}{
		"meta_data": []orderMeta{
			{Key: LicenseKeyMetaKey, Value: license.Key},
			{Key: "_license_plan", Value: license.Plan},
			{Key: "_license_max_devices", Value: fmt.Sprint(license.MaxDevices)},
		},
	}
	if err := w.send(ctx, http.MethodPut, orderPath, meta); err != nil {
		return fmt.Errorf("write order meta: %w", err)
	}

	note := map[string]interface{}{
		"note":          fmt.Sprintf("License key: %s", license.Key),
		"customer_note": true,
	}
	if err := w.send(ctx, http.MethodPost, orderPath+"/notes", note); err != nil {
		return fmt.Errorf("write order note: %w", err)
	}
	return nil
}

func (w *wooCommerceWriter) send(ctx context.Context, method, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(w.key, w.secret)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

type disabledWriter struct{}

func (disabledWriter) Enabled() bool { return false }

func (disabledWriter) WriteLicense(context.Context, string, models.License) error { return nil }
