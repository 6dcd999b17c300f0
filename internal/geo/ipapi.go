package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/metrics"
)

var (
	// ErrUpstream means the geolocation provider could not be reached or failed
	ErrUpstream = errors.New("Failed to fetch IP info")

	// ErrNoLocation means the provider answered but has nothing for the address
	// (private and reserved ranges, for instance)
	ErrNoLocation = errors.New("no location for address")
)

// Location is what a provider knows about one IP
type Location struct {
	City      string
	Region    string
	Country   string
	Org       string
	Timezone  string
	Latitude  *float64
	Longitude *float64
}

// Provider looks up the location of an IP address
type Provider interface {
	Locate(ctx context.Context, ip string) (*Location, error)
}

// ipAPIResponse is the ip-api.com JSON body
type ipAPIResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Country    string   `json:"country"`
	RegionName string   `json:"regionName"`
	City       string   `json:"city"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Timezone   string   `json:"timezone"`
	ISP        string   `json:"isp"`
	Query      string   `json:"query"`
}

// IPAPIProvider queries ip-api.com (or anything speaking its format)
type IPAPIProvider struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewIPAPIProvider creates a provider for baseURL, e.g. http://ip-api.com/json/
//
// Parameters:
//   - baseURL: the IP is appended to it
//   - timeout: per request timeout
//   - m: metrics collector (optional, can be nil)
//   - log: logger (optional, can be nil)
func NewIPAPIProvider(baseURL string, timeout time.Duration, m *metrics.Metrics, log *logger.Logger) *IPAPIProvider {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IPAPIProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
		logger:     log.WithComponent("IPAPIProvider"),
	}
}

func (p *IPAPIProvider) Locate(ctx context.Context, ip string) (*Location, error) {
	start := time.Now()
	loc, err := p.locate(ctx, ip)
	if p.metrics != nil {
		p.metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, ErrNoLocation) {
			p.metrics.UpstreamErrors.WithLabelValues(upstreamErrorType(err)).Inc()
		}
	}
	return loc, err
}

func (p *IPAPIProvider) locate(ctx context.Context, ip string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+url.PathEscape(ip), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error().Err(err).Str("ip", ip).Msg("Provider request failed")
		return nil, &upstreamError{kind: "transport", err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		p.logger.Error().Int("status", res.StatusCode).Str("ip", ip).Msg("Provider returned non-200")
		return nil, &upstreamError{kind: "status", err: fmt.Errorf("status %d", res.StatusCode)}
	}

	var body ipAPIResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &upstreamError{kind: "decode", err: err}
	}

	if body.Status != "" && body.Status != "success" {
		p.logger.Info().Str("ip", ip).Str("message", body.Message).Msg("Provider has no location")
		return nil, fmt.Errorf("%w: %s", ErrNoLocation, body.Message)
	}

	return &Location{
		City:      body.City,
		Region:    body.RegionName,
		Country:   body.Country,
		Org:       body.ISP,
		Timezone:  body.Timezone,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}

// upstreamError wraps ErrUpstream with a metric label
type upstreamError struct {
	kind string
	err  error
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrUpstream.Error(), e.kind, e.err)
}

func (e *upstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *upstreamError) Unwrap() error { return e.err }

func upstreamErrorType(err error) string {
	var ue *upstreamError
	if errors.As(err, &ue) {
		return ue.kind
	}
	return "other"
}
