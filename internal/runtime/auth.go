// internal/runtime/auth.go
package runtime

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/backupdigest/internal/config"
	"github.com/joshsymonds/backupdigest/internal/credential"
)

// ScopesFor returns the OAuth scopes a run needs. Listing only ever reads
// metadata; the gmail transport additionally needs permission to send.
func ScopesFor(transport config.Transport) []string {
	scopes := []string{drive.DriveMetadataReadonlyScope}
	if transport == config.TransportGmail {
		scopes = append(scopes, gmail.GmailSendScope)
	}
	return scopes
}

// NewCredentialManager wires the token file and client secrets into a
// manager that tries the cached credential before asking the operator.
func NewCredentialManager(tokenFile, secretsFile string, logger *slog.Logger) *credential.Manager {
	store := credential.FileStore{Path: tokenFile}
	cached := &credential.Cached{
		Store:     store,
		Refresher: credential.OAuthRefresher{HTTPClient: &http.Client{Timeout: credential.DefaultHTTPTimeout}},
		Logger:    logger,
		Clock:     time.Now,
	}
	interactive := &credential.Interactive{SecretsPath: secretsFile, Logger: logger}
	return credential.NewManager(store, logger, cached, interactive)
}

// NewLogger builds the run logger; every line carries the run id. Passing a
// *slog.LevelVar lets the caller settle the level after the logger exists.
func NewLogger(w io.Writer, level slog.Leveler, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("run_id", uuid.NewString()))
}
