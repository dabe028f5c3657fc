package wcpms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/wcpms/internal/geo"
)

// PhenologyClient defines the WCPMS operations.
// This interface is implemented by *Client and can be used for testing.
type PhenologyClient interface {
	FetchPointPhenometrics(ctx context.Context, cube CubeDescriptor, lat, lon float64) (*PhenometricsResult, error)
	FetchRegionTimeseries(ctx context.Context, cube CubeDescriptor, geom geo.Geometry) ([]RegionSeries, error)
	FetchRegionPhenometrics(ctx context.Context, cube CubeDescriptor, series []RegionSeries) ([]PhenometricsResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	DescribeMetrics(ctx context.Context) ([]MetricDescription, error)
}

// Ensure Client implements PhenologyClient at compile time.
var _ PhenologyClient = (*Client)(nil)

// Routes exposed by the service.
const (
	RoutePhenometrics    = "/phenometrics"
	RouteTimeseries      = "/timeseries"
	RouteListCollections = "/list_collections"
	RouteDescribe        = "/describe"
)

const (
	// DefaultBaseURL is the public Brazil Data Cube deployment.
	DefaultBaseURL   = "https://data.inpe.br/bdc/wcpms"
	defaultUserAgent = "wcpms-go/0.1"
	accessTokenKey   = "x-api-key"
	maxErrorBody     = 512
)

// Client talks to the WCPMS HTTP API. Each call issues exactly one request;
// nothing is retried and no timeout is imposed beyond the caller's context.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	userAgent   string
	accessToken string
	logger      *slog.Logger
	metrics     *Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithAccessToken passes an opaque token to the service on every request.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the structured logger used for per-request debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL.String()
}

// FetchPointPhenometrics retrieves the metrics and series for one location.
func (c *Client) FetchPointPhenometrics(ctx context.Context, cube CubeDescriptor, lat, lon float64) (*PhenometricsResult, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if err := cube.Validate(); err != nil {
		return nil, err
	}
	if err := validateLocation(lat, lon); err != nil {
		return nil, err
	}
	query := cube.values()
	query.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))

	var result PhenometricsResult
	if err := c.do(ctx, http.MethodGet, RoutePhenometrics, query, nil, "result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchRegionTimeseries retrieves the series of every pixel centre inside geom.
func (c *Client) FetchRegionTimeseries(ctx context.Context, cube CubeDescriptor, geom geo.Geometry) ([]RegionSeries, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if err := cube.Validate(); err != nil {
		return nil, err
	}
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	raw, err := geom.Raw()
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	body := struct {
		cubeBody
		Geom json.RawMessage `json:"geom"`
	}{cube.body(), raw}

	var series []RegionSeries
	if err := c.do(ctx, http.MethodPost, RouteTimeseries, nil, body, "result", &series); err != nil {
		return nil, err
	}
	return series, nil
}

// FetchRegionPhenometrics computes metrics for series previously returned by
// FetchRegionTimeseries.
func (c *Client) FetchRegionPhenometrics(ctx context.Context, cube CubeDescriptor, series []RegionSeries) ([]PhenometricsResult, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if err := cube.Validate(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, errors.New("timeseries required")
	}
	body := struct {
		cubeBody
		Timeseries []RegionSeries `json:"timeseries"`
	}{cube.body(), series}

	var results []PhenometricsResult
	if err := c.do(ctx, http.MethodPost, RoutePhenometrics, nil, body, "result", &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ListCollections lists the data cubes the service can query.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var coverages []string
	if err := c.do(ctx, http.MethodGet, RouteListCollections, nil, nil, "coverages", &coverages); err != nil {
		return nil, err
	}
	return coverages, nil
}

// DescribeMetrics lists the code, name, description and method of each metric.
func (c *Client) DescribeMetrics(ctx context.Context) ([]MetricDescription, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var description []MetricDescription
	if err := c.do(ctx, http.MethodGet, RouteDescribe, nil, nil, "description", &description); err != nil {
		return nil, err
	}
	return description, nil
}

func (c *Client) endpoint(route string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + route
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, route string, query url.Values, body any, field string, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(route, query), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set(accessTokenKey, c.accessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.finish(method, route, outcomeTransport, 0, start)
		return &TransportError{Method: method, Route: route, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.finish(method, route, outcomeHTTP, resp.StatusCode, start)
		return &HTTPError{
			Method:     method,
			Route:      route,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.finish(method, route, outcomeDecode, resp.StatusCode, start)
		return &DecodeError{Route: route, Err: err}
	}
	raw, ok := envelope[field]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		c.finish(method, route, outcomeDecode, resp.StatusCode, start)
		return &DecodeError{Route: route, Field: field, Err: errors.New("field missing from response")}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.finish(method, route, outcomeDecode, resp.StatusCode, start)
		return &DecodeError{Route: route, Field: field, Err: err}
	}
	c.finish(method, route, outcomeOK, resp.StatusCode, start)
	return nil
}

func (c *Client) finish(method, route, outcome string, status int, start time.Time) {
	elapsed := time.Since(start)
	c.metrics.observe(route, method, outcome, elapsed)
	c.logger.Debug("wcpms request",
		"method", method,
		"route", route,
		"status", status,
		"outcome", outcome,
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func validateLocation(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %g outside [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %g outside [-180, 180]", lon)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
