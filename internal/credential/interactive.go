package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	loopbackAddr      = "127.0.0.1:0"
	callbackPath      = "/"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Interactive runs the installed-app consent flow: it serves a loopback
// redirect, sends the operator to the consent page and exchanges the returned
// code (with PKCE) for a new credential.
type Interactive struct {
	SecretsPath string
	Logger      *slog.Logger
	// Open launches the consent URL; defaults to the system browser.
	Open func(url string) error
}

type callbackResult struct {
	code string
	err  error
}

func (i *Interactive) Name() string { return "interactive" }

func (i *Interactive) Provide(ctx context.Context, scopes []string) (*Credential, Outcome, error) {
	data, err := os.ReadFile(i.SecretsPath)
	if err != nil {
		return nil, OutcomeIssued, fmt.Errorf("read client secrets %s: %w", i.SecretsPath, err)
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, OutcomeIssued, fmt.Errorf("parse client secrets %s: %w", i.SecretsPath, err)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", loopbackAddr)
	if err != nil {
		return nil, OutcomeIssued, fmt.Errorf("listen for oauth callback: %w", err)
	}
	cfg.RedirectURL = "http://" + ln.Addr().String() + callbackPath

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	logger := i.logger()
	logger.InfoContext(ctx, "authorization required; open this URL to grant access", slog.String("url", authURL))
	if openErr := i.open(authURL); openErr != nil {
		logger.WarnContext(ctx, "could not open browser", slog.Any("error", openErr))
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, OutcomeIssued, fmt.Errorf("wait for authorization: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, OutcomeIssued, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, OutcomeIssued, fmt.Errorf("exchange authorization code: %w", err)
	}
	logger.InfoContext(ctx, "authorization granted", slog.Any("scopes", scopes))
	return &Credential{
		Token:        tok,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURI:     cfg.Endpoint.TokenURL,
		Scopes:       append([]string(nil), scopes...),
	}, OutcomeIssued, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code") == "" && q.Get("error") == "" {
			// favicon and other stray requests
			http.NotFound(w, r)
			return
		}
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("authorization callback state mismatch")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Authorization complete. You can close this window.\n"))
		}
		select {
		case results <- res:
		default:
		}
	})
	return mux
}

func (i *Interactive) open(url string) error {
	if i.Open != nil {
		return i.Open(url)
	}
	return browser.OpenURL(url)
}

func (i *Interactive) logger() *slog.Logger {
	if i.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return i.Logger
}

var _ Provider = (*Interactive)(nil)
