// Package credential obtains, refreshes and persists the OAuth credential used
// to call the Drive API.
package credential

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNoCredential is returned by a Provider that has nothing usable to offer.
	ErrNoCredential = errors.New("no usable credential")
	// ErrAuthentication marks failures to obtain a valid credential.
	ErrAuthentication = errors.New("authentication failed")
	// ErrStorage marks failures to read or write the token file.
	ErrStorage = errors.New("credential storage failed")
)

// expiryDelta matches oauth2's own early-expiry window.
const expiryDelta = 10 * time.Second

// Credential is an OAuth token plus the client details needed to refresh it.
type Credential struct {
	Token        *oauth2.Token
	ClientID     string
	ClientSecret string
	TokenURI     string
	Scopes       []string
}

// Expired reports whether the access token is past (or within expiryDelta of) its expiry.
// Tokens without an expiry never expire.
func (c *Credential) Expired(now time.Time) bool {
	if c == nil || c.Token == nil || c.Token.Expiry.IsZero() {
		return false
	}
	return !now.Add(expiryDelta).Before(c.Token.Expiry)
}

// Valid reports whether the credential carries an unexpired access token.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.Token != nil && c.Token.AccessToken != "" && !c.Expired(now)
}

// CanRefresh reports whether a refresh-token exchange is possible.
func (c *Credential) CanRefresh() bool {
	return c != nil && c.Token != nil && c.Token.RefreshToken != ""
}

// Covers reports whether every requested scope was granted. Credentials that
// do not record their scopes are assumed to cover the request.
func (c *Credential) Covers(scopes []string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}

// Outcome says how a Provider produced its credential.
type Outcome int

const (
	OutcomeLoaded Outcome = iota
	OutcomeRefreshed
	OutcomeIssued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeIssued:
		return "issued"
	default:
		return "unknown"
	}
}

// Session is a valid credential and an HTTP client that authorizes requests with it.
type Session struct {
	Credential *Credential
	Client     *http.Client
}
