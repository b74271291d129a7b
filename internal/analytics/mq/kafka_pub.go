package mq

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type kafkaQueue struct {
	wEvents   *kafka.Writer
	wPayments *kafka.Writer
}

func NewKafka(brokers []string, topicEvents, topicPayments string) Queue {
	if len(brokers) == 0 {
		return NewNoop()
	}
	if topicEvents == "" {
		topicEvents = "nuwa.events"
	}
	if topicPayments == "" {
		topicPayments = "nuwa.payments"
	}
	// writers are safe for concurrent use
	return &kafkaQueue{
		wEvents:   newWriter(brokers, topicEvents),
		wPayments: newWriter(brokers, topicPayments),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
}

func (q *kafkaQueue) Close() error {
	var err error
	if e := q.wEvents.Close(); e != nil {
		err = e
	}
	if e := q.wPayments.Close(); e != nil {
		err = e
	}
	return err
}

// write keys messages by simulation or user so a partition keeps per-entity order.
func (q *kafkaQueue) write(ctx context.Context, w *kafka.Writer, m map[string]any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	msg := kafka.Message{Value: b}
	for _, k := range []string{"simulationId", "userId"} {
		if v, ok := m[k].(string); ok && v != "" {
			msg.Key = []byte(v)
			break
		}
	}
	return w.WriteMessages(ctx, msg)
}

func (q *kafkaQueue) PublishEvent(ctx context.Context, evt map[string]any) error {
	return q.write(ctx, q.wEvents, evt)
}

func (q *kafkaQueue) PublishPayment(ctx context.Context, pay map[string]any) error {
	return q.write(ctx, q.wPayments, pay)
}
