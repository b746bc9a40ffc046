// Package zwiftinsider reads the monthly guest-world calendar published by
// Zwift Insider.
package zwiftinsider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
)

const (
	// ProviderName identifies this schedule source.
	ProviderName = "zwiftinsider"

	// DefaultBaseURL is the calendar page.
	DefaultBaseURL = "https://zwiftinsider.com/schedule/"

	userAgent = "RideDeck/1.0"
)

var monthSlugs = [...]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// ClientConfig holds configuration for the Zwift Insider client.
type ClientConfig struct {
	// BaseURL is the calendar page (default: DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client fetches schedule months.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Zwift Insider client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchSchedule downloads and parses one month of the calendar.
func (c *Client) FetchSchedule(ctx context.Context, year int, month time.Month) (availability.Schedule, error) {
	endpoint, err := c.ScheduleURL(year, month)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug().
		Str("provider", ProviderName).
		Int("year", year).
		Int("month", int(month)).
		Msg("fetching schedule page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", availability.ErrScheduleUnavailable, err)
	}
	if err := resilience.CheckResponse(ProviderName, resp); err != nil {
		return nil, fmt.Errorf("%w: %w", availability.ErrScheduleUnavailable, err)
	}
	defer resp.Body.Close()

	return ParseSchedule(resp.Body, year, month)
}

// ScheduleURL builds the grid view URL for a month.
func (c *Client) ScheduleURL(year int, month time.Month) (string, error) {
	if month < time.January || month > time.December {
		return "", fmt.Errorf("invalid month %d", month)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	q := u.Query()
	q.Set("grid-list-toggle", "grid")
	q.Set("month", monthSlugs[month-1])
	q.Set("yr", strconv.Itoa(year))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Ensure Client implements availability.ScheduleSource.
var _ availability.ScheduleSource = (*Client)(nil)
