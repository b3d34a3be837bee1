package credential

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Provider produces a credential for the requested scopes.
type Provider interface {
	Name() string
	Provide(ctx context.Context, scopes []string) (*Credential, Outcome, error)
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, cred *Credential) (*Credential, error)
}

// Cached serves the stored credential, refreshing it once if it has expired.
type Cached struct {
	Store     Store
	Refresher Refresher
	Logger    *slog.Logger
	Clock     func() time.Time
}

func (c *Cached) Name() string { return "cached" }

func (c *Cached) Provide(ctx context.Context, scopes []string) (*Credential, Outcome, error) {
	cred, err := c.Store.Load()
	if err != nil {
		return nil, OutcomeLoaded, err
	}
	logger := c.logger()
	if !cred.Covers(scopes) {
		logger.InfoContext(ctx, "stored credential lacks requested scopes",
			slog.Any("granted", cred.Scopes),
			slog.Any("requested", scopes),
		)
		return nil, OutcomeLoaded, ErrNoCredential
	}
	if cred.Valid(c.now()) {
		return cred, OutcomeLoaded, nil
	}
	if !cred.CanRefresh() {
		logger.InfoContext(ctx, "stored credential expired without refresh token")
		return nil, OutcomeLoaded, ErrNoCredential
	}

	logger.InfoContext(ctx, "refreshing expired credential", slog.Time("expiry", cred.Token.Expiry))
	refreshed, err := c.Refresher.Refresh(ctx, cred)
	if err != nil {
		return nil, OutcomeRefreshed, fmt.Errorf("%w: refresh token: %w", ErrAuthentication, err)
	}
	return refreshed, OutcomeRefreshed, nil
}

func (c *Cached) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

func (c *Cached) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// OAuthRefresher performs the standard refresh_token grant against the
// credential's token endpoint.
type OAuthRefresher struct {
	HTTPClient *http.Client
}

func (r OAuthRefresher) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	cfg := cred.oauthConfig()
	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}
	// An empty access token forces the token source to hit the endpoint
	// regardless of oauth2's own view of the clock.
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.Token.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}
	return &Credential{
		Token:        tok,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURI:     cfg.Endpoint.TokenURL,
		Scopes:       cred.Scopes,
	}, nil
}

// oauthConfig describes the client that issued cred, defaulting to Google's token endpoint.
func (c *Credential) oauthConfig() *oauth2.Config {
	tokenURI := c.TokenURI
	if tokenURI == "" {
		tokenURI = google.Endpoint.TokenURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURI},
		Scopes:       c.Scopes,
	}
}

var (
	_ Provider  = (*Cached)(nil)
	_ Refresher = OAuthRefresher{}
)
