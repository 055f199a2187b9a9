// Package attom provides a client for the ATTOM property data API.
package attom

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-report/internal/resilience"
)

// DefaultBaseURL is the ATTOM API gateway.
const DefaultBaseURL = "https://api.gateway.attomdata.com"

const detailPath = "/propertyapi/v1.0.0/property/detail"

// ErrNotFound is returned when the API answers without a matching property.
var ErrNotFound = eris.New("attom: no property found")

// Client defines the ATTOM property operations.
type Client interface {
	// PropertyDetail returns the first property record matching q, undecoded.
	PropertyDetail(ctx context.Context, q Query) (json.RawMessage, error)
}

// Query identifies a property. Either Address1/Address2 (street, then
// city/state/zip) or a single-line Address is sent.
type Query struct {
	Address1 string
	Address2 string
	Address  string
}

func (q Query) values() (url.Values, error) {
	v := url.Values{}
	switch {
	case strings.TrimSpace(q.Address1) != "" && strings.TrimSpace(q.Address2) != "":
		v.Set("address1", strings.TrimSpace(q.Address1))
		v.Set("address2", strings.TrimSpace(q.Address2))
	case strings.TrimSpace(q.Address) != "":
		v.Set("address", strings.TrimSpace(q.Address))
	default:
		return nil, eris.New("attom: empty query")
	}
	return v, nil
}

type detailResponse struct {
	Status struct {
		Code  int    `json:"code"`
		Msg   string `json:"msg"`
		Total int    `json:"total"`
	} `json:"status"`
	Property []json.RawMessage `json:"property"`
}

// Option configures the ATTOM client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates a new ATTOM client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("attom", "property_detail")
	}
	return c
}

func (c *httpClient) PropertyDetail(ctx context.Context, q Query) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, eris.New("attom: api key not configured")
	}
	params, err := q.values()
	if err != nil {
		return nil, err
	}
	reqURL := c.baseURL + detailPath + "?" + params.Encode()

	body, err := resilience.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "attom: property detail")
	}

	var resp detailResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, eris.Wrap(err, "attom: decode response")
	}
	if len(resp.Property) == 0 {
		return nil, ErrNotFound
	}
	return resp.Property[0], nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "attom: create request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, eris.Wrap(err, "attom: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Service: "attom", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
