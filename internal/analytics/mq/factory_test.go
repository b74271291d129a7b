package mq

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewFallsBackToNoop(t *testing.T) {
	for _, typ := range []string{"", "noop", "rabbit"} {
		if _, ok := New(Config{Type: typ}).(*Noop); !ok {
			t.Fatalf("type %q: want Noop", typ)
		}
	}
	if _, ok := NewKafka(nil, "", "").(*Noop); !ok {
		t.Fatalf("kafka without brokers: want Noop")
	}
	if _, ok := NewRedis("://bad", "", "", 0, true).(*Noop); !ok {
		t.Fatalf("bad redis url: want Noop")
	}
}

type recorder struct {
	events chan map[string]any
	err    error
}

func (r *recorder) PublishEvent(_ context.Context, evt map[string]any) error {
	r.events <- evt
	return r.err
}
func (r *recorder) PublishPayment(_ context.Context, pay map[string]any) error {
	r.events <- pay
	return r.err
}
func (r *recorder) Close() error { return nil }

func TestPublishIsAsyncAndSwallowsErrors(t *testing.T) {
	r := &recorder{events: make(chan map[string]any, 2), err: errors.New("down")}
	Publish(r, map[string]any{"type": "simulation-started", "simulationId": "s1"})
	PublishPayment(r, map[string]any{"paymentId": "p1"})
	Publish(nil, map[string]any{"type": "ignored"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-r.events:
			if v, ok := evt["type"].(string); ok {
				seen[v] = true
			}
			if v, ok := evt["paymentId"].(string); ok {
				seen[v] = true
			}
		case <-time.After(time.Second):
			t.Fatal("publish did not reach the queue")
		}
	}
	if !seen["simulation-started"] || !seen["p1"] {
		t.Fatalf("unexpected records: %v", seen)
	}
}
