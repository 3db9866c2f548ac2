package email

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogTransport writes messages to the log instead of sending them. It is the
// development default.
type LogTransport struct {
	log *slog.Logger
}

// NewLogTransport returns a LogTransport writing to log.
func NewLogTransport(log *slog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Deliver(_ context.Context, m Message) (string, error) {
	id := uuid.NewString()
	t.log.Info("email (not sent)",
		"id", id,
		"to", m.To,
		"subject", m.Subject,
		"bytes", len(m.HTML),
	)
	return id, nil
}
