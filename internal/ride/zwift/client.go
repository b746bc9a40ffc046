// Package zwift implements ride.Provider against the Zwift mobile API.
package zwift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ridedeck/ridedeck/internal/normalize"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/ride"
)

const (
	// ProviderName identifies this ride provider.
	ProviderName = "zwift"

	// DefaultBaseURL is the Zwift relay API base URL.
	DefaultBaseURL = "https://us-or-rly101.zwift.com"

	// DefaultTokenURL is the Zwift identity token endpoint.
	DefaultTokenURL = "https://secure.zwift.com/auth/realms/zwift/protocol/openid-connect/token"

	// DefaultClientID is the public client used by the Zwift companion app.
	DefaultClientID = "Zwift_Mobile_Link"

	DefaultProfilePath    = "/api/profiles/me"
	DefaultActivitiesPath = "/api/profiles/me/activities"
	DefaultRoutesPath     = "/api/game_info"
	DefaultActivityLimit  = 50
)

// ClientConfig holds configuration for the Zwift client.
type ClientConfig struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ProfilePath    string
	ActivitiesPath string
	RoutesPath     string

	// ActivityLimit caps how many recent activities are requested.
	ActivityLimit int

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client connects riders to the Zwift API.
type Client struct {
	baseURL        string
	profilePath    string
	activitiesPath string
	routesPath     string
	activityLimit  int
	oauth          oauth2.Config
	httpClient     *resilience.Client
	logger         zerolog.Logger
}

// NewClient creates a new Zwift client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	limit := cfg.ActivityLimit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	return &Client{
		baseURL:        strings.TrimRight(orDefault(cfg.BaseURL, DefaultBaseURL), "/"),
		profilePath:    orDefault(cfg.ProfilePath, DefaultProfilePath),
		activitiesPath: orDefault(cfg.ActivitiesPath, DefaultActivitiesPath),
		routesPath:     orDefault(cfg.RoutesPath, DefaultRoutesPath),
		activityLimit:  limit,
		oauth: oauth2.Config{
			ClientID: orDefault(cfg.ClientID, DefaultClientID),
			Endpoint: oauth2.Endpoint{
				TokenURL:  orDefault(cfg.TokenURL, DefaultTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Connect logs in with the rider's password, or reuses the supplied tokens.
func (c *Client) Connect(ctx context.Context, creds ride.Credentials) (ride.Session, error) {
	octx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient.StandardClient())

	var token *oauth2.Token
	if creds.AccessToken != "" {
		token = &oauth2.Token{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
			TokenType:    "Bearer",
		}
	} else {
		c.logger.Debug().Str("provider", ProviderName).Msg("requesting password grant")

		t, err := c.oauth.PasswordCredentialsToken(octx, creds.Username, creds.Password)
		if err != nil {
			return nil, tokenError(err)
		}
		token = t
	}

	return &session{
		client: c,
		tokens: c.oauth.TokenSource(octx, token),
	}, nil
}

type session struct {
	client *Client
	tokens oauth2.TokenSource
}

func (s *session) GetProfile(ctx context.Context) (normalize.Record, error) {
	var body any
	if err := s.getJSON(ctx, s.client.profilePath, nil, &body); err != nil {
		return nil, err
	}
	return normalize.AsRecord(body), nil
}

func (s *session) GetActivities(ctx context.Context) ([]normalize.Record, error) {
	query := url.Values{}
	query.Set("start", "0")
	query.Set("limit", strconv.Itoa(s.client.activityLimit))

	var body any
	if err := s.getJSON(ctx, s.client.activitiesPath, query, &body); err != nil {
		return nil, err
	}
	return normalize.AsRecords(body), nil
}

func (s *session) GetRoutes(ctx context.Context) ([]normalize.Record, error) {
	var body any
	if err := s.getJSON(ctx, s.client.routesPath, nil, &body); err != nil {
		return nil, err
	}
	return extractRoutes(body), nil
}

func (s *session) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := s.client.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	token, err := s.tokens.Token()
	if err != nil {
		return tokenError(err)
	}
	token.SetAuthHeader(req)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	if err := resilience.CheckResponse(ProviderName, resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	// activity ids exceed float64 precision
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// extractRoutes accepts a bare route array, an object with a "routes" array,
// or a game-info document whose "maps" each carry their own routes.
func extractRoutes(body any) []normalize.Record {
	if routes := normalize.AsRecords(body); routes != nil {
		return routes
	}

	doc := normalize.AsRecord(body)
	if routes := normalize.AsRecords(doc["routes"]); routes != nil {
		return routes
	}

	var routes []normalize.Record
	for _, m := range normalize.AsRecords(doc["maps"]) {
		worldID, hasWorld := m.PickFirst("worldId", "id")
		for _, r := range normalize.AsRecords(m["routes"]) {
			if _, ok := r.PickFirst("worldId", "mapId"); !ok && hasWorld {
				r["worldId"] = worldID
			}
			routes = append(routes, r)
		}
	}
	return routes
}

func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &resilience.StatusError{
			Provider:   ProviderName,
			StatusCode: re.Response.StatusCode,
			Body:       strings.TrimSpace(string(re.Body)),
		}
	}
	return fmt.Errorf("zwift login: %w", err)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
