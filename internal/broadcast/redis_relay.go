package broadcast

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

// RedisRelay shares envelopes between instances over a redis pub/sub topic.
type RedisRelay struct {
	cli   *redis.Client
	topic string
}

func NewRedisRelay(url, topic string) (*RedisRelay, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		topic = "nuwa:broadcast"
	}
	return &RedisRelay{cli: redis.NewClient(opt), topic: topic}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.cli.Publish(ctx, r.topic, b).Err()
}

// Run delivers envelopes published by other instances to the local members
// of c until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, c *Coordinator) {
	sub := r.cli.Subscribe(ctx, r.topic)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			deliverRelayed(msg.Payload, c)
		}
	}
}

// deliverRelayed hands a relayed envelope to the local members of c. Malformed
// payloads and envelopes this node published itself are skipped.
func deliverRelayed(payload string, c *Coordinator) bool {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logx.Errorf("broadcast relay: discarding malformed envelope: %v", err)
		return false
	}
	if env.Origin == c.NodeID() {
		return false
	}
	c.DeliverLocal(env)
	return true
}

func (r *RedisRelay) Close() error { return r.cli.Close() }
