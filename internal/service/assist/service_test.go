package assist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nuwa-agi/nuwa/internal/ai"
	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/ports"
)

type fakeAuth struct{ sims map[string]*ports.Simulation }

func (f fakeAuth) Authorize(_ context.Context, id ports.Identity, simID string, verb rbac.Verb) (*ports.Simulation, rbac.Capability, error) {
	sim, ok := f.sims[simID]
	if !ok {
		return nil, rbac.None, ports.ErrNotFound
	}
	c := rbac.Resolve(id, sim)
	if !rbac.MustNewPolicy().Allows(c, verb) {
		return nil, c, ports.ErrAccessDenied
	}
	return sim, c, nil
}

type fakeUsers struct{ byID map[string]*ports.User }

func (f fakeUsers) Create(context.Context, *ports.User, string) error { return nil }
func (f fakeUsers) Get(_ context.Context, id string) (*ports.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, ports.ErrNotFound
}
func (f fakeUsers) Verify(context.Context, string, string) (*ports.User, error) {
	return nil, ports.ErrNotFound
}

type memSessions struct {
	mu   sync.Mutex
	rows []*ports.AISession
}

func (m *memSessions) Create(_ context.Context, s *ports.AISession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	m.rows = append(m.rows, s)
	return nil
}

func (m *memSessions) ListBySimulation(_ context.Context, simID string, _ int) ([]*ports.AISession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ports.AISession
	for _, r := range m.rows {
		if r.SimulationID == simID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeGen struct {
	err  error
	last ai.Request
}

func (g *fakeGen) Generate(_ context.Context, req ai.Request) (ai.Completion, error) {
	g.last = req
	if g.err != nil {
		return ai.Completion{}, g.err
	}
	return ai.Completion{Text: "reduce energy draw", Tokens: 42}, nil
}

type busRecorder struct {
	mu     sync.Mutex
	events []string
}

func (b *busRecorder) Emit(ch broadcast.Channel, event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ch.String()+"/"+event)
}

func newService(gen *fakeGen) (*Service, *memSessions, *busRecorder) {
	until := time.Now().Add(24 * time.Hour)
	sims := map[string]*ports.Simulation{
		"s1": {ID: "s1", Name: "Mars base", DomainType: ports.DomainSpace, OwnerID: "owner", TeamID: "t1"},
	}
	users := map[string]*ports.User{
		"owner": {ID: "owner"},
		"paid":  {ID: "paid", Subscription: ports.Subscription{Plan: ports.PlanPro, Status: ports.SubscriptionActive, ValidUntil: &until}},
	}
	sessions := &memSessions{}
	bus := &busRecorder{}
	svc := NewService(fakeAuth{sims: sims}, fakeUsers{byID: users}, sessions, gen,
		ai.NewCatalog("gpt-test", nil), bus, nil)
	return svc, sessions, bus
}

func TestQueryLogsAndBroadcasts(t *testing.T) {
	gen := &fakeGen{}
	svc, sessions, bus := newService(gen)
	ans, err := svc.Query(context.Background(), ports.Identity{PrincipalID: "owner"}, Query{SimulationID: "s1", Engine: "standard", Prompt: "how is oxygen?"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ans.Response != "reduce energy draw" || ans.Usage.Tokens != 42 {
		t.Fatalf("unexpected answer: %+v", ans)
	}
	if ans.Usage.CPU < 5 || ans.Usage.CPU > 95 || ans.Usage.RAM < 128 {
		t.Fatalf("synthetic usage out of range: %+v", ans.Usage)
	}
	if gen.last.Model != "gpt-test" || gen.last.Prompt != "how is oxygen?" {
		t.Fatalf("request not forwarded: %+v", gen.last)
	}
	if len(sessions.rows) != 1 || len(bus.events) != 1 || bus.events[0] != "simulation:s1/ai-response" {
		t.Fatalf("log/broadcast missing: %d %v", len(sessions.rows), bus.events)
	}
	list, err := svc.Sessions(context.Background(), ports.Identity{PrincipalID: "teammate", TeamID: "t1"}, "s1", 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("sessions: %d %v", len(list), err)
	}
}

func TestQueryGates(t *testing.T) {
	gen := &fakeGen{}
	svc, sessions, bus := newService(gen)
	ctx := context.Background()

	cases := []struct {
		name string
		id   ports.Identity
		q    Query
		want error
	}{
		{"stranger", ports.Identity{PrincipalID: "x", TeamID: "t9"}, Query{SimulationID: "s1", Engine: "standard", Prompt: "hi"}, ports.ErrAccessDenied},
		{"premium without subscription", ports.Identity{PrincipalID: "owner"}, Query{SimulationID: "s1", Engine: "advanced", Prompt: "hi"}, ports.ErrAccessDenied},
		{"unknown engine", ports.Identity{PrincipalID: "owner"}, Query{SimulationID: "s1", Engine: "oracle", Prompt: "hi"}, ports.ErrInvalidInput},
		{"stranger with unknown engine", ports.Identity{PrincipalID: "x", TeamID: "t9"}, Query{SimulationID: "s1", Engine: "oracle", Prompt: "hi"}, ports.ErrAccessDenied},
		{"empty prompt", ports.Identity{PrincipalID: "owner"}, Query{SimulationID: "s1", Engine: "standard"}, ports.ErrInvalidInput},
		{"missing simulation", ports.Identity{PrincipalID: "owner"}, Query{SimulationID: "nope", Engine: "standard", Prompt: "hi"}, ports.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Query(ctx, tc.id, tc.q); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if len(sessions.rows) != 0 || len(bus.events) != 0 {
		t.Fatalf("rejected queries had side effects")
	}

	// a paying team member may use premium engines
	if _, err := svc.Query(ctx, ports.Identity{PrincipalID: "paid", TeamID: "t1"}, Query{SimulationID: "s1", Engine: "advanced", Prompt: "hi"}); err != nil {
		t.Fatalf("premium with subscription: %v", err)
	}
}

func TestQueryUpstreamFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("connection reset")}
	svc, sessions, _ := newService(gen)
	_, err := svc.Query(context.Background(), ports.Identity{PrincipalID: "owner"}, Query{SimulationID: "s1", Engine: "standard", Prompt: "hi"})
	if !errors.Is(err, ports.ErrUpstreamFailure) {
		t.Fatalf("want ErrUpstreamFailure, got %v", err)
	}
	if len(sessions.rows) != 0 {
		t.Fatalf("failed exchange was logged")
	}
}
