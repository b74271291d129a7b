package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeMember struct {
	id   string
	mu   sync.Mutex
	got  []Envelope
	full bool
}

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Deliver(env Envelope) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false
	}
	m.got = append(m.got, env)
	return true
}

func (m *fakeMember) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.got))
	for _, e := range m.got {
		out = append(out, e.Event)
	}
	return out
}

func TestEmitReachesOnlyJoinedMembers(t *testing.T) {
	c := New()
	defer c.Close()
	a, b, outsider := &fakeMember{id: "a"}, &fakeMember{id: "b"}, &fakeMember{id: "c"}
	sim := SimulationChannel("s1")
	if err := c.Join(sim, a); err != nil {
		t.Fatal(err)
	}
	if err := c.Join(sim, b); err != nil {
		t.Fatal(err)
	}
	if err := c.Join(TeamChannel("t1"), outsider); err != nil {
		t.Fatal(err)
	}

	c.Emit(sim, EventSimulationStarted, map[string]string{"id": "s1"})

	for _, m := range []*fakeMember{a, b} {
		if ev := m.events(); len(ev) != 1 || ev[0] != EventSimulationStarted {
			t.Fatalf("%s got %v", m.id, ev)
		}
	}
	if ev := outsider.events(); len(ev) != 0 {
		t.Fatalf("outsider got %v", ev)
	}
}

func TestEmitToEmptyChannelIsNoop(t *testing.T) {
	c := New()
	defer c.Close()
	c.Emit(UserChannel("nobody"), EventSubscriptionUpdated, nil)
	if c.Members(UserChannel("nobody")) != 0 {
		t.Fatal("emit created a room")
	}
}

func TestDropRemovesEveryMembership(t *testing.T) {
	c := New()
	defer c.Close()
	a := &fakeMember{id: "a"}
	c.Join(TeamChannel("t1"), a)
	c.Join(SimulationChannel("s1"), a)
	if got := c.Channels("a"); len(got) != 2 || got[0] != "simulation:s1" || got[1] != "team:t1" {
		t.Fatalf("channels = %v", got)
	}
	c.Drop("a")
	if c.Members(TeamChannel("t1")) != 0 || c.Members(SimulationChannel("s1")) != 0 {
		t.Fatal("memberships survived drop")
	}
	c.Emit(TeamChannel("t1"), EventSimulationCreated, nil)
	if len(a.events()) != 0 {
		t.Fatal("dropped member received an event")
	}
	c.Drop("a")
}

func TestLeaveAndJoinValidation(t *testing.T) {
	c := New()
	defer c.Close()
	a := &fakeMember{id: "a"}
	if err := c.Join(Channel{Kind: KindTeam}, a); err == nil {
		t.Fatal("empty key accepted")
	}
	c.Join(SimulationChannel("s1"), a)
	c.Leave(SimulationChannel("s1"), "a")
	c.Leave(SimulationChannel("s1"), "a")
	if c.Members(SimulationChannel("s1")) != 0 {
		t.Fatal("leave did not remove member")
	}
}

func TestFullMemberDoesNotBlockOthers(t *testing.T) {
	c := New()
	defer c.Close()
	slow, fast := &fakeMember{id: "slow", full: true}, &fakeMember{id: "fast"}
	c.Join(SimulationChannel("s1"), slow)
	c.Join(SimulationChannel("s1"), fast)
	c.Emit(SimulationChannel("s1"), EventSimulationProgress, nil)
	if len(fast.events()) != 1 {
		t.Fatal("fast member starved")
	}
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("team:alpha")
	if err != nil || ch != TeamChannel("alpha") {
		t.Fatalf("got %v %v", ch, err)
	}
	for _, bad := range []string{"", "team", "team:", "room:1"} {
		if _, err := ParseChannel(bad); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}

type captureRelay struct {
	mu  sync.Mutex
	got []Envelope
}

func (r *captureRelay) Publish(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, env)
	return nil
}

func (r *captureRelay) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestRelayReceivesEmittedEnvelopes(t *testing.T) {
	relay := &captureRelay{}
	c := New(WithRelay(relay), WithNodeID("node-1"))
	defer c.Close()
	c.Emit(SimulationChannel("s1"), EventSimulationStopped, nil)

	deadline := time.Now().Add(time.Second)
	for relay.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if relay.len() != 1 {
		t.Fatalf("relay got %d envelopes", relay.len())
	}
	relay.mu.Lock()
	defer relay.mu.Unlock()
	if relay.got[0].Origin != "node-1" || relay.got[0].Channel != "simulation:s1" {
		t.Fatalf("unexpected envelope %+v", relay.got[0])
	}
}

func TestRelayedEnvelopesSkipTheirOrigin(t *testing.T) {
	c := New(WithNodeID("node-1"))
	defer c.Close()
	m := &fakeMember{id: "a"}
	if err := c.Join(SimulationChannel("s1"), m); err != nil {
		t.Fatal(err)
	}

	if !deliverRelayed(`{"channel":"simulation:s1","event":"simulation-started","origin":"node-2","at":1}`, c) {
		t.Fatal("foreign envelope not delivered")
	}
	if deliverRelayed(`{"channel":"simulation:s1","event":"simulation-paused","origin":"node-1","at":2}`, c) {
		t.Fatal("own envelope redelivered")
	}
	if deliverRelayed(`{not json`, c) {
		t.Fatal("malformed envelope delivered")
	}
	if got := m.events(); len(got) != 1 || got[0] != EventSimulationStarted {
		t.Fatalf("member got %v", got)
	}
}
