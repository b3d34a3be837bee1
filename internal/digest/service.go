// internal/digest/service.go
package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joshsymonds/backupdigest/internal/drive"
	"github.com/joshsymonds/backupdigest/internal/notify"
	"github.com/joshsymonds/backupdigest/internal/report"
)

// Lister returns the backup files in a folder.
type Lister interface {
	List(ctx context.Context, folderID, prefix string) ([]drive.FileRecord, error)
}

// Spec describes one digest run.
type Spec struct {
	FolderID string
	Prefix   string
	Window   time.Duration

	Subject string
	From    string
	To      string

	// DryRun writes the report to Output instead of sending it.
	DryRun bool
	Output io.Writer
	// Lenient logs delivery failures without failing the run.
	Lenient bool
}

// Result summarizes a completed run.
type Result struct {
	Total     int
	Stale     int
	Fresh     int
	Delivered bool
	Report    string
}

type Service struct {
	Lister Lister
	Sender notify.Sender
	Logger *slog.Logger
	Clock  func() time.Time
}

func NewService(lister Lister, sender notify.Sender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Lister: lister,
		Sender: sender,
		Logger: logger,
		Clock:  time.Now,
	}
}

// Run lists, classifies, renders and delivers the digest. An empty folder is
// not an error: it is logged and nothing is sent.
func (s *Service) Run(ctx context.Context, spec Spec) (Result, error) {
	window := spec.Window
	if window <= 0 {
		window = report.DefaultWindow
	}

	files, err := s.Lister.List(ctx, spec.FolderID, spec.Prefix)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		s.Logger.WarnContext(ctx, "no backups found",
			slog.String("folder_id", spec.FolderID),
			slog.String("prefix", spec.Prefix),
		)
		return Result{}, nil
	}

	c := report.Classify(files, s.Clock().UTC(), window)
	body := report.Format(c)
	res := Result{Total: c.Total(), Stale: len(c.Stale), Fresh: len(c.Fresh), Report: body}
	s.Logger.InfoContext(ctx, "classified backups",
		slog.Int("total", res.Total),
		slog.Int("stale", res.Stale),
		slog.Int("fresh", res.Fresh),
		slog.Time("cutoff", c.Cutoff),
	)

	if spec.DryRun {
		s.Logger.InfoContext(ctx, "dry-run; not sending email")
		out := spec.Output
		if out == nil {
			out = os.Stdout
		}
		if _, writeErr := io.WriteString(out, body); writeErr != nil {
			return res, fmt.Errorf("write report: %w", writeErr)
		}
		return res, nil
	}

	msg := notify.Message{From: spec.From, To: spec.To, Subject: spec.Subject, Body: body}
	if sendErr := s.Sender.Send(ctx, msg); sendErr != nil {
		var delivery *notify.DeliveryError
		if spec.Lenient && errors.As(sendErr, &delivery) {
			s.Logger.WarnContext(ctx, "delivery failed; continuing because strict delivery is off")
			return res, nil
		}
		return res, fmt.Errorf("send digest: %w", sendErr)
	}
	res.Delivered = true
	return res, nil
}
