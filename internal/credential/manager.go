package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every request made through a Session's client.
const DefaultHTTPTimeout = 30 * time.Second

// Manager owns the credential lifecycle: it asks each Provider in turn and
// persists whatever was refreshed or newly issued.
type Manager struct {
	Store       Store
	Providers   []Provider
	Logger      *slog.Logger
	HTTPTimeout time.Duration
}

// NewManager constructs a Manager with sane defaults.
func NewManager(store Store, logger *slog.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Manager{
		Store:       store,
		Providers:   providers,
		Logger:      logger,
		HTTPTimeout: DefaultHTTPTimeout,
	}
}

// AcquireSession returns a session holding a valid credential for scopes.
// Failures wrap ErrStorage (token file unreadable or unwritable) or
// ErrAuthentication (no provider produced a credential).
func (m *Manager) AcquireSession(ctx context.Context, scopes []string) (*Session, error) {
	for _, p := range m.Providers {
		cred, outcome, err := p.Provide(ctx, scopes)
		if errors.Is(err, ErrNoCredential) {
			m.Logger.DebugContext(ctx, "credential provider had nothing to offer", slog.String("provider", p.Name()))
			continue
		}
		if err != nil {
			if errors.Is(err, ErrStorage) || errors.Is(err, ErrAuthentication) {
				return nil, fmt.Errorf("%s credential: %w", p.Name(), err)
			}
			return nil, fmt.Errorf("%w: %s credential: %w", ErrAuthentication, p.Name(), err)
		}

		if outcome != OutcomeLoaded {
			if err := m.Store.Save(cred); err != nil {
				if !errors.Is(err, ErrStorage) {
					err = fmt.Errorf("%w: %w", ErrStorage, err)
				}
				return nil, fmt.Errorf("save credential: %w", err)
			}
		}
		m.Logger.InfoContext(ctx, "credential ready",
			slog.String("provider", p.Name()),
			slog.String("outcome", outcome.String()),
		)
		return m.session(ctx, cred), nil
	}
	return nil, fmt.Errorf("%w: no provider produced a credential", ErrAuthentication)
}

// session builds a client that refreshes the access token whenever it expires
// mid-run. Refreshes outlive ctx, which only bounds acquisition.
func (m *Manager) session(ctx context.Context, cred *Credential) *Session {
	src := oauth2.StaticTokenSource(cred.Token)
	if cred.CanRefresh() {
		refreshCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Timeout: m.HTTPTimeout})
		src = cred.oauthConfig().TokenSource(refreshCtx, cred.Token)
	}
	client := oauth2.NewClient(ctx, src)
	client.Timeout = m.HTTPTimeout
	return &Session{Credential: cred, Client: client}
}
