package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Lister fetches the backup files for a folder.
type Lister struct {
	Client Client
	Logger *slog.Logger
}

// NewLister constructs a Lister; a nil logger writes to stderr.
func NewLister(client Client, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Lister{Client: client, Logger: logger}
}

// List returns the first page (at most MaxPageSize) of files in folderID whose
// names start with prefix, in API order. Later pages are never requested.
func (l *Lister) List(ctx context.Context, folderID, prefix string) ([]FileRecord, error) {
	if folderID == "" {
		return nil, errors.New("folder id is required")
	}
	q := Query{FolderID: folderID, NamePrefix: prefix}
	page, err := l.Client.ListFiles(ctx, q, MaxPageSize)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("list files: %w", err)
		}
		return nil, fmt.Errorf("list files: %w", &APIError{Message: err.Error(), Err: err})
	}
	if page.NextPageToken != "" {
		l.Logger.WarnContext(ctx, "listing truncated to first page",
			slog.String("folder_id", folderID),
			slog.Int("page_size", MaxPageSize),
		)
	}
	l.Logger.InfoContext(ctx, "listed backups",
		slog.String("folder_id", folderID),
		slog.String("prefix", prefix),
		slog.Int("count", len(page.Files)),
	)
	return page.Files, nil
}
