package drive

import "context"

// Client is the narrow Drive surface required by backupdigest.
type Client interface {
	ListFiles(ctx context.Context, q Query, pageSize int) (ListPage, error)
}
