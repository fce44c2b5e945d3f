package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrUpstreamUnavailable = errors.New("product service unavailable")
	ErrProductNotFound     = errors.New("product not found")
)

// Stock is a product's stock level. The product service has been seen to
// return it both as a JSON number and as a numeric string; it is always
// written back as a numeric string.
type Stock int

func (s *Stock) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	if i, err := strconv.Atoi(raw); err == nil {
		*s = Stock(i)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return fmt.Errorf("invalid stock_quantity %q", raw)
	}
	*s = Stock(int(f))
	return nil
}

func (s Stock) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(s)))
}

// Product is the product service's record. Price is carried as raw JSON so a
// stock write re-sends exactly what was read, whatever its shape.
type Product struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         json.RawMessage `json:"price"`
	StockQuantity Stock           `json:"stock_quantity"`
}

type ProductClient interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	// SetProductStock writes the full product record back with a new stock level.
	SetProductStock(ctx context.Context, productID, name, description string, price json.RawMessage, stock int) error
}

// HTTPProductClient talks to the product service over its REST API:
// GET /products/{id} and PUT /products/{id}.
type HTTPProductClient struct {
	baseURL string
	timeout time.Duration
	hc      *http.Client
}

func NewHTTPProductClient(baseURL string, timeout time.Duration) *HTTPProductClient {
	return &HTTPProductClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		hc:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (c *HTTPProductClient) productURL(id string) string {
	return c.baseURL + "/products/" + url.PathEscape(id)
}

func (c *HTTPProductClient) GetProduct(ctx context.Context, productID string) (Product, error) {
	var p Product
	resp, err := c.do(ctx, http.MethodGet, c.productURL(productID), nil)
	if err != nil {
		return p, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return p, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("%w: decode product: %w", ErrUpstreamUnavailable, err)
	}
	return p, nil
}

func (c *HTTPProductClient) SetProductStock(ctx context.Context, productID, name, description string, price json.RawMessage, stock int) error {
	body, err := json.Marshal(Product{
		Name:          name,
		Description:   description,
		Price:         price,
		StockQuantity: Stock(stock),
	})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, c.productURL(productID), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	// A 404 on write is still an upstream failure: the product vanished mid-workflow.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: PUT product: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// do issues a single request bounded by the client timeout. The timeout stays
// armed until the caller closes the response body.
func (c *HTTPProductClient) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	req, err := newRequest(ctx, method, u, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUpstreamUnavailable, method, u, err)
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func newRequest(ctx context.Context, method, u string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
