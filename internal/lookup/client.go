package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/models"
)

// maxResponseBytes bounds how much of a backend response is read
const maxResponseBytes = 1 << 20

// Result is one resolved lookup as the front-end sees it
// Empty strings mean the backend had no value for the field
type Result struct {
	IP        string
	City      string
	Region    string
	Country   string
	Org       string
	Timezone  string
	Latitude  *float64
	Longitude *float64
}

// Client sends queries to the lookup backend
// One call to Lookup is exactly one HTTP request; nothing is retried
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	logger     *logger.Logger
}

// Option configures a Client
type Option func(c *Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the client logger
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.logger = log
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the backend at endpoint (e.g. http://host/api/track)
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		userAgent:  fmt.Sprintf("IPTracker-Go-Client Go/%s", runtime.Version()),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	c.logger = c.logger.WithComponent("LookupClient")
	return c
}

// Lookup posts query to the backend and decodes the reply
// The client sets no deadline of its own: pass a context with one
func (c *Client) Lookup(ctx context.Context, query string) (*Result, error) {
	body, err := json.Marshal(models.TrackRequest{Input: query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug().Str("query", query).Str("endpoint", c.endpoint).Msg("Sending lookup request")

	res, err := c.httpClient.Do(req)
	if err != nil {
		netErr := &NetworkError{Err: err, Timeout: errors.Is(err, context.DeadlineExceeded)}
		c.logger.Warn().Err(err).Bool("timeout", netErr.Timeout).Msg("Lookup request failed")
		return nil, netErr
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Err: err, Timeout: errors.Is(err, context.DeadlineExceeded)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, backendError(res.StatusCode, raw)
	}

	var record models.TrackRecord
	if err := json.Unmarshal(raw, &record); err != nil || record.ResolvedIP == "" {
		c.logger.Warn().Int("status", res.StatusCode).Msg("Malformed lookup response")
		return nil, &BackendError{Status: res.StatusCode, Message: "Invalid response from lookup service"}
	}

	if !record.HasCoordinates() {
		c.logger.Info().Str("resolved_ip", record.ResolvedIP).Msg("Lookup response has no coordinates")
		return nil, ErrMissingGeoData
	}

	return &Result{
		IP:        record.ResolvedIP,
		City:      record.City,
		Region:    record.Region,
		Country:   record.CountryName,
		Org:       record.Org,
		Timezone:  record.Timezone,
		Latitude:  record.Latitude,
		Longitude: record.Longitude,
	}, nil
}

// backendError prefers the body's "error" field and falls back to the status
func backendError(status int, raw []byte) *BackendError {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error != "" {
		return &BackendError{Status: status, Message: errResp.Error}
	}
	return &BackendError{Status: status, Message: fmt.Sprintf("HTTP error! status: %d", status)}
}
