// Package notify delivers the digest by email.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Message is a single plain-text email. It is built once per run and not modified.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a Message. Failures are returned as *DeliveryError.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports that a message could not be handed to the transport.
type DeliveryError struct {
	Transport string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Transport, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// buildMsg renders m as a single text/plain part. The report is the only part,
// so no multipart/mixed envelope is added around it.
func buildMsg(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("set from %q: %w", m.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("set to %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

func fail(ctx context.Context, logger *slog.Logger, transport string, msg Message, err error) error {
	logger.ErrorContext(ctx, "send email failed",
		slog.String("transport", transport),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Any("error", err),
	)
	return &DeliveryError{Transport: transport, Err: err}
}

func discardIfNil(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
