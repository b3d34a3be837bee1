// internal/runtime/googleapi.go: adapts the Google API services to our small interfaces
package runtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joshsymonds/backupdigest/internal/credential"
	dc "github.com/joshsymonds/backupdigest/internal/drive"
)

const listFields googleapi.Field = "nextPageToken, files(id, name, modifiedTime)"

type driveClient struct{ svc *drive.Service }

// NewDriveClient returns a Drive client authorized by sess. Extra options are
// applied after the session's HTTP client.
func NewDriveClient(ctx context.Context, sess *credential.Session, opts ...option.ClientOption) (dc.Client, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(sess.Client)}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &driveClient{svc}, nil
}

func (d *driveClient) ListFiles(ctx context.Context, q dc.Query, pageSize int) (dc.ListPage, error) {
	res, err := d.svc.Files.List().
		Q(q.String()).
		PageSize(int64(pageSize)).
		Fields(listFields).
		Context(ctx).
		Do()
	if err != nil {
		return dc.ListPage{}, toAPIError(err)
	}
	files := make([]dc.FileRecord, 0, len(res.Files))
	for _, f := range res.Files {
		modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
		if err != nil {
			return dc.ListPage{}, fmt.Errorf("parse modifiedTime %q of %s: %w", f.ModifiedTime, f.Name, err)
		}
		files = append(files, dc.FileRecord{
			ID:           dc.FileID(f.Id),
			Name:         f.Name,
			ModifiedTime: modified.UTC(),
		})
	}
	return dc.ListPage{Files: files, NextPageToken: res.NextPageToken}, nil
}

type gmailClient struct{ svc *gmail.Service }

// NewGmailClient returns a raw-message sender authorized by sess.
func NewGmailClient(ctx context.Context, sess *credential.Session, opts ...option.ClientOption) (*gmailClient, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(sess.Client)}, opts...)
	svc, err := gmail.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &gmailClient{svc}, nil
}

func (g *gmailClient) SendRaw(ctx context.Context, raw []byte) (string, error) {
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	sent, err := g.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	return sent.Id, nil
}

func toAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Error()
		}
		return &dc.APIError{Status: gerr.Code, Message: msg, Err: err}
	}
	return &dc.APIError{Message: err.Error(), Err: err}
}
