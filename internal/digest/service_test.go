package digest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/joshsymonds/backupdigest/internal/drive"
	"github.com/joshsymonds/backupdigest/internal/notify"
)

var fixedNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

type fakeLister struct {
	files   []drive.FileRecord
	err     error
	folders []string
	prefix  []string
}

func (f *fakeLister) List(ctx context.Context, folderID, prefix string) ([]drive.FileRecord, error) {
	_ = ctx
	f.folders = append(f.folders, folderID)
	f.prefix = append(f.prefix, prefix)
	return f.files, f.err
}

type fakeSender struct {
	sent []notify.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg notify.Message) error {
	_ = ctx
	f.sent = append(f.sent, msg)
	return f.err
}

func routerFiles() []drive.FileRecord {
	return []drive.FileRecord{
		{ID: "1", Name: "RO_router1.cfg", ModifiedTime: fixedNow.Add(-10 * 24 * time.Hour)},
		{ID: "2", Name: "RO_router2.cfg", ModifiedTime: fixedNow.Add(-24 * time.Hour)},
	}
}

func baseSpec() Spec {
	return Spec{
		FolderID: "folder1",
		Prefix:   "RO_",
		Window:   7 * 24 * time.Hour,
		Subject:  "Weekly router backups",
		From:     "backups@example.com",
		To:       "ops@example.com",
	}
}

func newTestService(lister Lister, sender notify.Sender, logger *slog.Logger) *Service {
	svc := NewService(lister, sender, logger)
	svc.Clock = func() time.Time { return fixedNow }
	return svc
}

func TestRunSendsDigest(t *testing.T) {
	lister := &fakeLister{files: routerFiles()}
	sender := &fakeSender{}
	svc := newTestService(lister, sender, slogDiscard())

	res, err := svc.Run(context.Background(), baseSpec())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(lister.folders) != 1 || lister.folders[0] != "folder1" || lister.prefix[0] != "RO_" {
		t.Fatalf("unexpected list calls: %v %v", lister.folders, lister.prefix)
	}
	if res.Stale != 1 || res.Fresh != 1 || !res.Delivered {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.Subject != "Weekly router backups" || msg.From != "backups@example.com" || msg.To != "ops@example.com" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	body := msg.Body
	stale := strings.Index(body, "- RO_router1.cfg (Last modified: 2024-03-05 09:30:00 UTC)")
	reminder := strings.Index(body, "Please review these files")
	sep := strings.Index(body, "---\n\n")
	fresh := strings.Index(body, "- RO_router2.cfg (Last modified: 2024-03-14 09:30:00 UTC)")
	if stale < 0 || reminder < 0 || sep < 0 || fresh < 0 {
		t.Fatalf("report missing sections:\n%s", body)
	}
	if !(stale < reminder && reminder < sep && sep < fresh) {
		t.Fatalf("report sections out of order:\n%s", body)
	}
}

func TestRunEmptyFolderSendsNothing(t *testing.T) {
	var logs bytes.Buffer
	sender := &fakeSender{}
	svc := newTestService(&fakeLister{}, sender, slog.New(slog.NewTextHandler(&logs, nil)))

	res, err := svc.Run(context.Background(), baseSpec())
	if err != nil {
		t.Fatalf("empty folder should not fail: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(sender.sent))
	}
	if res.Delivered || res.Total != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "no backups found") {
		t.Fatalf("expected warning, logs: %s", logs.String())
	}
}

func TestRunListErrorStops(t *testing.T) {
	sender := &fakeSender{}
	apiErr := &drive.APIError{Status: 401, Message: "invalid credentials"}
	svc := newTestService(&fakeLister{err: apiErr}, sender, slogDiscard())

	_, err := svc.Run(context.Background(), baseSpec())
	var got *drive.APIError
	if !errors.As(err, &got) || got.Status != 401 {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent after a listing failure")
	}
}

func TestRunDeliveryFailure(t *testing.T) {
	tests := []struct {
		name    string
		lenient bool
		wantErr bool
	}{
		{name: "strict", lenient: false, wantErr: true},
		{name: "lenient", lenient: true, wantErr: false},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{err: &notify.DeliveryError{Transport: "smtp", Err: errors.New("535 auth failed")}}
			svc := newTestService(&fakeLister{files: routerFiles()}, sender, slogDiscard())
			spec := baseSpec()
			spec.Lenient = tc.lenient

			res, err := svc.Run(context.Background(), spec)
			if tc.wantErr {
				var delivery *notify.DeliveryError
				if !errors.As(err, &delivery) {
					t.Fatalf("expected DeliveryError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("lenient run should succeed: %v", err)
			}
			if len(sender.sent) != 1 {
				t.Fatalf("expected exactly one attempt, got %d", len(sender.sent))
			}
			if res.Delivered {
				t.Fatalf("failed delivery reported as delivered")
			}
		})
	}
}

func TestRunDryRunWritesReport(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(&fakeLister{files: routerFiles()}, sender, slogDiscard())
	var out bytes.Buffer
	spec := baseSpec()
	spec.DryRun = true
	spec.Output = &out

	res, err := svc.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("dry-run failed: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("dry-run must not send")
	}
	if out.String() != res.Report || !strings.HasPrefix(out.String(), "Here's the weekly summary") {
		t.Fatalf("unexpected dry-run output:\n%s", out.String())
	}
}

func TestRunDefaultsWindow(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(&fakeLister{files: routerFiles()}, sender, slogDiscard())
	spec := baseSpec()
	spec.Window = 0

	res, err := svc.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Stale != 1 || res.Fresh != 1 {
		t.Fatalf("default window not applied: %+v", res)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
