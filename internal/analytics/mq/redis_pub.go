package mq

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

const publishTimeout = 2 * time.Second

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), publishTimeout)
}

type redisQueue struct {
	cli            *redis.Client
	streamEvents   string
	streamPayments string
	maxLenApprox   bool
	maxLen         int64
}

func NewRedis(url, streamEvents, streamPayments string, maxLen int64, approx bool) Queue {
	opt, err := redis.ParseURL(url)
	if err != nil {
		logx.Errorf("[analytics-mq] redis parse url: %v", err)
		return NewNoop()
	}
	return newRedisQueue(redis.NewClient(opt), streamEvents, streamPayments, maxLen, approx)
}

func newRedisQueue(cli *redis.Client, streamEvents, streamPayments string, maxLen int64, approx bool) *redisQueue {
	if streamEvents == "" {
		streamEvents = "nuwa:events"
	}
	if streamPayments == "" {
		streamPayments = "nuwa:payments"
	}
	return &redisQueue{cli: cli, streamEvents: streamEvents, streamPayments: streamPayments, maxLen: maxLen, maxLenApprox: approx}
}

func (q *redisQueue) Close() error { return q.cli.Close() }

func (q *redisQueue) xadd(ctx context.Context, stream string, m map[string]any) error {
	// single 'data' field keeps the record schema-free
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{Stream: stream, Values: map[string]any{"data": string(b)}}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = q.maxLenApprox
	}
	return q.cli.XAdd(ctx, args).Err()
}

func (q *redisQueue) PublishEvent(ctx context.Context, evt map[string]any) error {
	return q.xadd(ctx, q.streamEvents, evt)
}

func (q *redisQueue) PublishPayment(ctx context.Context, pay map[string]any) error {
	return q.xadd(ctx, q.streamPayments, pay)
}
