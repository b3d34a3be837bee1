// internal/drive/types.go
package drive

import (
	"fmt"
	"strings"
	"time"
)

// MaxPageSize is the largest page the Drive files.list call accepts.
const MaxPageSize = 1000

type FileID string

// FileRecord is one file's metadata as returned by files.list.
type FileRecord struct {
	ID           FileID
	Name         string
	ModifiedTime time.Time // always UTC
}

type ListPage struct {
	Files         []FileRecord
	NextPageToken string
}

// Query selects files directly inside FolderID whose name starts with NamePrefix.
type Query struct {
	FolderID   string
	NamePrefix string
}

func (q Query) String() string {
	return fmt.Sprintf(
		"'%s' in parents and name starts with '%s'",
		escape(q.FolderID),
		escape(q.NamePrefix),
	)
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escape(s string) string { return queryEscaper.Replace(s) }

// APIError reports a failed files.list call. Status is 0 for transport failures.
// Err holds the underlying cause, if any.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "drive api: " + e.Message
	}
	return fmt.Sprintf("drive api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }
