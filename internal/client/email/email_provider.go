package email

import (
	"context"

	"go.uber.org/zap"
)

// Message is an outgoing notification to the listing agent.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Provider delivers messages.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// LogProvider records messages in the server log instead of sending them.
type LogProvider struct {
	logger *zap.SugaredLogger
}

func NewLogProvider(logger *zap.SugaredLogger) *LogProvider {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogProvider{logger: logger}
}

// Send logs the envelope of msg. The body is not logged.
func (p *LogProvider) Send(_ context.Context, msg Message) error {
	p.logger.Infow("Email queued",
		"to", msg.To,
		"replyTo", msg.ReplyTo,
		"subject", msg.Subject,
		"bodyLength", len(msg.Body),
	)
	return nil
}
