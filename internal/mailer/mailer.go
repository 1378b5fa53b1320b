// Package mailer sends transactional email. Only a logging implementation
// exists; real delivery is wired by swapping the Mailer.
package mailer

import (
	"context"

	"github.com/tallyhq/tally-backend/internal/logging"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes each message to the log instead of delivering it.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("component", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "email queued", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.Body))
	return nil
}
