package garmin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/readiness"
)

// OAuth errors.
var (
	ErrMissingRedirectURI  = errors.New("missing redirectUri")
	ErrMissingCode         = errors.New("missing code")
	ErrMissingRefreshToken = errors.New("missing refreshToken")
)

// AuthConfig holds the OAuth client registration.
type AuthConfig struct {
	AuthorizeURL string `koanf:"authorize_url"`
	TokenURL     string `koanf:"token_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// Scope is a space-separated scope list. Optional.
	Scope string `koanf:"scope"`
}

func (c AuthConfig) configured() bool {
	return c.AuthorizeURL != "" && c.TokenURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// AuthStart is the authorize redirect handed to the app.
type AuthStart struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// Tokens is a token endpoint response.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresIn    int64     `json:"expiresIn"`
	TokenType    string    `json:"tokenType,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// Authenticator runs the authorization-code flow with HTTP Basic client auth.
type Authenticator struct {
	cfg        AuthConfig
	httpClient *resilience.Client
	now        func() time.Time
}

// NewAuthenticator creates an Authenticator. httpClient may be nil.
func NewAuthenticator(cfg AuthConfig, httpClient *resilience.Client) *Authenticator {
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName + "-oauth"))
	}
	return &Authenticator{cfg: cfg, httpClient: httpClient, now: time.Now}
}

func (a *Authenticator) oauthConfig(redirectURI string) *oauth2.Config {
	var scopes []string
	if a.cfg.Scope != "" {
		scopes = strings.Fields(a.cfg.Scope)
	}
	return &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.cfg.AuthorizeURL,
			TokenURL:  a.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthURL builds the authorize URL. A random state is generated when empty.
func (a *Authenticator) AuthURL(redirectURI, state string) (*AuthStart, error) {
	if !a.cfg.configured() {
		return nil, readiness.ErrNotConfigured
	}
	if redirectURI == "" {
		return nil, ErrMissingRedirectURI
	}
	if state == "" {
		state = uuid.NewString()
	}

	return &AuthStart{
		URL:   a.oauthConfig(redirectURI).AuthCodeURL(state),
		State: state,
	}, nil
}

// Exchange trades an authorization code for tokens.
func (a *Authenticator) Exchange(ctx context.Context, code, redirectURI string) (*Tokens, error) {
	if !a.cfg.configured() {
		return nil, readiness.ErrNotConfigured
	}
	if code == "" {
		return nil, ErrMissingCode
	}
	if redirectURI == "" {
		return nil, ErrMissingRedirectURI
	}

	tok, err := a.oauthConfig(redirectURI).Exchange(a.clientContext(ctx), code)
	if err != nil {
		return nil, tokenError(err)
	}
	return a.tokens(tok), nil
}

// Refresh trades a refresh token for a new access token.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if !a.cfg.configured() {
		return nil, readiness.ErrNotConfigured
	}
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	src := a.oauthConfig("").TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, tokenError(err)
	}
	return a.tokens(tok), nil
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient.StandardClient())
}

func (a *Authenticator) tokens(tok *oauth2.Token) *Tokens {
	now := a.now().UTC()
	t := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		IssuedAt:     now,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		t.ExpiresIn = int64(math.Round(tok.Expiry.Sub(now).Seconds()))
	}
	return t
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
	return fmt.Errorf("garmin token request: %w", err)
}
