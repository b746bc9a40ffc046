// Package garmin fetches wearable metrics from the Garmin Health API and
// handles the OAuth flow that grants access to them.
package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ridedeck/ridedeck/internal/normalize"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/readiness"
)

// ProviderName identifies this metrics provider.
const ProviderName = "garmin"

// MetricPaths names one setting per metric. Used both for endpoint paths and
// for the dot-path of the value inside each response.
type MetricPaths struct {
	BodyBattery  string `koanf:"body_battery"`
	SleepScore   string `koanf:"sleep_score"`
	HRVStatus    string `koanf:"hrv_status"`
	TrainingLoad string `koanf:"training_load"`
	RecoveryTime string `koanf:"recovery_time"`
}

// ClientConfig holds configuration for the Garmin metrics client.
type ClientConfig struct {
	// BaseURL is the API base. Required; without it FetchMetrics fails.
	BaseURL string

	// Paths are the per-metric endpoints, relative to BaseURL or absolute.
	// A metric with no path is not fetched.
	Paths MetricPaths

	// Fields are optional dot-paths to each metric's value.
	Fields MetricPaths

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger

	// Now overrides the capture clock. Used by tests.
	Now func() time.Time
}

// Client reads daily wellness metrics.
type Client struct {
	baseURL    string
	paths      MetricPaths
	fields     MetricPaths
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Garmin metrics client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		paths:      cfg.Paths,
		fields:     cfg.Fields,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchMetrics requests every configured metric concurrently.
func (c *Client) FetchMetrics(ctx context.Context, accessToken, date string) (*readiness.Metrics, error) {
	if c.baseURL == "" {
		return nil, readiness.ErrNotConfigured
	}

	var bodyBattery, sleepScore, hrvStatus, trainingLoad, recoveryTime any

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range []struct {
		path string
		out  *any
	}{
		{c.paths.BodyBattery, &bodyBattery},
		{c.paths.SleepScore, &sleepScore},
		{c.paths.HRVStatus, &hrvStatus},
		{c.paths.TrainingLoad, &trainingLoad},
		{c.paths.RecoveryTime, &recoveryTime},
	} {
		if m.path == "" {
			continue
		}
		g.Go(func() error {
			data, err := c.fetch(gctx, m.path, accessToken, date)
			if err != nil {
				return err
			}
			*m.out = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics := &readiness.Metrics{
		CapturedAt:        c.now().UTC(),
		BodyBattery:       extractNumber(bodyBattery, c.fields.BodyBattery),
		SleepScore:        extractNumber(sleepScore, c.fields.SleepScore),
		HRVStatus:         extractStatus(hrvStatus, c.fields.HRVStatus),
		TrainingLoad:      extractNumber(trainingLoad, c.fields.TrainingLoad),
		RecoveryTimeHours: extractNumber(recoveryTime, c.fields.RecoveryTime),
	}
	return metrics, nil
}

func (c *Client) fetch(ctx context.Context, path, accessToken, date string) (any, error) {
	endpoint, err := c.resolveURL(path, date)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("provider", ProviderName).Str("path", path).Msg("fetching metric")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if err := resilience.CheckResponse(ProviderName, resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return data, nil
}

func (c *Client) resolveURL(path, date string) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http") {
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing metric url: %w", err)
	}
	if date != "" {
		q := u.Query()
		q.Set("date", date)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// readDotPath walks nested objects along a dot-separated path.
func readDotPath(data any, path string) any {
	if path == "" {
		return nil
	}
	current := data
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = obj[key]
	}
	return current
}

func extractNumber(data any, field string) *float64 {
	if n, ok := normalize.OptionalNumber(readDotPath(data, field)); ok {
		return &n
	}

	switch v := data.(type) {
	case map[string]any:
		rec := normalize.Record(v)
		for _, key := range []string{"value", "score", "amount"} {
			if n, ok := normalize.OptionalNumber(rec[key]); ok {
				return &n
			}
		}
	case float64:
		return &v
	}
	return nil
}

func extractStatus(data any, field string) readiness.HRVStatus {
	if status, ok := readiness.ParseHRVStatus(readDotPath(data, field)); ok {
		return status
	}

	if obj, ok := data.(map[string]any); ok {
		for _, key := range []string{"status", "state", "value"} {
			if status, ok := readiness.ParseHRVStatus(obj[key]); ok {
				return status
			}
		}
	}
	return ""
}
