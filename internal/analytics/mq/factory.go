package mq

import (
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
)

// New builds a Queue from c. Misconfiguration degrades to Noop with a log line.
func New(c Config) Queue {
	switch strings.ToLower(c.Type) {
	case "redis":
		url := c.RedisURL
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		logx.Infof("[analytics-mq] redis streams enabled: events=%s payments=%s", c.StreamEvents, c.StreamPayments)
		return NewRedis(url, c.StreamEvents, c.StreamPayments, c.MaxLen, true)
	case "kafka":
		brokers := c.Brokers
		if len(brokers) == 0 {
			brokers = []string{"localhost:9092"}
		}
		logx.Infof("[analytics-mq] kafka publisher enabled: brokers=%s events=%s payments=%s",
			strings.Join(brokers, ","), c.TopicEvents, c.TopicPayments)
		return NewKafka(brokers, c.TopicEvents, c.TopicPayments)
	case "", "noop":
		return NewNoop()
	default:
		logx.Errorf("[analytics-mq] unsupported type %q; using noop", c.Type)
		return NewNoop()
	}
}

// Publish sends evt and logs a failure instead of returning it.
func Publish(q Queue, evt map[string]any) {
	if q == nil {
		return
	}
	go func() {
		ctx, cancel := contextWithTimeout()
		defer cancel()
		if err := q.PublishEvent(ctx, evt); err != nil {
			logx.Errorf("[analytics-mq] publish event %v: %v", evt["type"], err)
		}
	}()
}

// PublishPayment is Publish for the payments stream.
func PublishPayment(q Queue, pay map[string]any) {
	if q == nil {
		return
	}
	go func() {
		ctx, cancel := contextWithTimeout()
		defer cancel()
		if err := q.PublishPayment(ctx, pay); err != nil {
			logx.Errorf("[analytics-mq] publish payment %v: %v", pay["paymentId"], err)
		}
	}()
}
