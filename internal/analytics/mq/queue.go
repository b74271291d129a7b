package mq

import "context"

// Queue publishes analytics records to a stream. Implementations are
// fire-and-forget from the caller's point of view: callers log failures and move on.
type Queue interface {
	PublishEvent(ctx context.Context, evt map[string]any) error
	PublishPayment(ctx context.Context, pay map[string]any) error
	Close() error
}

// Config selects and configures the backend.
type Config struct {
	Type string `json:",default=noop,options=noop|redis|kafka"`

	RedisURL       string `json:",optional"`
	StreamEvents   string `json:",default=nuwa:events"`
	StreamPayments string `json:",default=nuwa:payments"`
	MaxLen         int64  `json:",default=100000"`

	Brokers       []string `json:",optional"`
	TopicEvents   string   `json:",default=nuwa.events"`
	TopicPayments string   `json:",default=nuwa.payments"`
}
