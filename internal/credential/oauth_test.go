package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type grantLog struct {
	mu     sync.Mutex
	grants []url.Values
}

func (g *grantLog) add(v url.Values) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants = append(g.grants, v)
}

func (g *grantLog) all() []url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]url.Values(nil), g.grants...)
}

// tokenEndpoint fakes an OAuth token endpoint and records the grants it sees.
func tokenEndpoint(t *testing.T, accessToken string, log *grantLog) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.add(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthRefresherKeepsRefreshToken(t *testing.T) {
	var log grantLog
	srv := tokenEndpoint(t, "fresh-access", &log)

	cred := &Credential{
		Token:        &oauth2.Token{AccessToken: "stale", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour)},
		ClientID:     "cid",
		ClientSecret: "csecret",
		TokenURI:     srv.URL,
		Scopes:       []string{"s1"},
	}
	got, err := OAuthRefresher{HTTPClient: srv.Client()}.Refresh(context.Background(), cred)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	grants := log.all()
	if len(grants) != 1 {
		t.Fatalf("expected one token request, got %d", len(grants))
	}
	if grants[0].Get("grant_type") != "refresh_token" || grants[0].Get("refresh_token") != "r1" {
		t.Fatalf("unexpected grant: %v", grants[0])
	}
	if got.Token.AccessToken != "fresh-access" {
		t.Fatalf("access token %q", got.Token.AccessToken)
	}
	if got.Token.RefreshToken != "r1" {
		t.Fatalf("refresh token not carried over: %q", got.Token.RefreshToken)
	}
	if got.ClientID != "cid" || got.TokenURI != srv.URL {
		t.Fatalf("client details lost: %+v", got)
	}
}

func writeClientSecrets(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.json")
	doc := fmt.Sprintf(`{"installed":{
  "client_id":"cid.apps.googleusercontent.com",
  "client_secret":"csecret",
  "auth_uri":"https://accounts.example.test/o/oauth2/auth",
  "token_uri":%q,
  "redirect_uris":["http://localhost"]
}}`, tokenURL)
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write client secrets: %v", err)
	}
	return path
}

// consentBrowser plays the operator: it follows the consent URL straight to
// the loopback redirect with the given code and state override.
func consentBrowser(t *testing.T, code, state string, opened *atomic.Int32) func(string) error {
	t.Helper()
	return func(authURL string) error {
		opened.Add(1)
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		if q.Get("code_challenge_method") != "S256" || q.Get("access_type") != "offline" {
			return fmt.Errorf("unexpected consent url %s", authURL)
		}
		if state == "" {
			state = q.Get("state")
		}
		callback := q.Get("redirect_uri") + "?" + url.Values{"code": {code}, "state": {state}}.Encode()
		go func() {
			resp, getErr := http.Get(callback) // #nosec G107 - loopback test URL
			if getErr == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestInteractiveIssuesCredential(t *testing.T) {
	var log grantLog
	srv := tokenEndpoint(t, "issued-access", &log)
	var opened atomic.Int32

	provider := &Interactive{
		SecretsPath: writeClientSecrets(t, srv.URL),
		Logger:      slogDiscard(),
		Open:        consentBrowser(t, "auth-code", "", &opened),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cred, outcome, err := provider.Provide(ctx, []string{"scope-a"})
	if err != nil {
		t.Fatalf("provide failed: %v", err)
	}
	if outcome != OutcomeIssued {
		t.Fatalf("outcome %v", outcome)
	}
	if opened.Load() != 1 {
		t.Fatalf("browser opened %d times", opened.Load())
	}
	if cred.Token.AccessToken != "issued-access" {
		t.Fatalf("access token %q", cred.Token.AccessToken)
	}
	if cred.ClientID != "cid.apps.googleusercontent.com" || cred.TokenURI != srv.URL {
		t.Fatalf("client details missing: %+v", cred)
	}
	grants := log.all()
	if len(grants) != 1 {
		t.Fatalf("expected one exchange, got %d", len(grants))
	}
	if grants[0].Get("code") != "auth-code" || grants[0].Get("code_verifier") == "" {
		t.Fatalf("unexpected exchange: %v", grants[0])
	}
	if !strings.HasPrefix(grants[0].Get("redirect_uri"), "http://127.0.0.1:") {
		t.Fatalf("unexpected redirect uri %q", grants[0].Get("redirect_uri"))
	}
}

func TestInteractiveRejectsStateMismatch(t *testing.T) {
	var log grantLog
	srv := tokenEndpoint(t, "issued-access", &log)
	var opened atomic.Int32

	provider := &Interactive{
		SecretsPath: writeClientSecrets(t, srv.URL),
		Logger:      slogDiscard(),
		Open:        consentBrowser(t, "auth-code", "forged", &opened),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, _, err := provider.Provide(ctx, []string{"scope-a"}); err == nil {
		t.Fatalf("expected state mismatch error")
	}
	if len(log.all()) != 0 {
		t.Fatalf("code must not be exchanged on state mismatch")
	}
}

func TestInteractiveMissingSecrets(t *testing.T) {
	provider := &Interactive{SecretsPath: filepath.Join(t.TempDir(), "absent.json")}
	if _, _, err := provider.Provide(context.Background(), []string{"scope-a"}); err == nil {
		t.Fatalf("expected error for missing client secrets")
	}
}
