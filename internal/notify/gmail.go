package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
)

const transportGmail = "gmail"

// RawSender submits an RFC 5322 message through the Gmail API.
type RawSender interface {
	SendRaw(ctx context.Context, raw []byte) (string, error)
}

// GmailSender delivers through users.messages.send using the OAuth session
// instead of an SMTP password.
type GmailSender struct {
	Client RawSender
	Logger *slog.Logger
}

func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	logger := discardIfNil(g.Logger)
	m, err := buildMsg(msg)
	if err != nil {
		return fail(ctx, logger, transportGmail, msg, err)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return fail(ctx, logger, transportGmail, msg, fmt.Errorf("render message: %w", err))
	}
	id, err := g.Client.SendRaw(ctx, buf.Bytes())
	if err != nil {
		return fail(ctx, logger, transportGmail, msg, err)
	}
	logger.InfoContext(ctx, "email sent",
		slog.String("transport", transportGmail),
		slog.String("to", msg.To),
		slog.String("message_id", id),
	)
	return nil
}

var _ Sender = (*GmailSender)(nil)
