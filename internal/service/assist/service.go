// Package assist answers AI queries scoped to a simulation.
package assist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nuwa-agi/nuwa/internal/ai"
	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/zeromicro/go-zero/core/logx"
)

const maxPromptLen = 8000

// Authorizer loads a simulation the caller may act on. The lifecycle
// orchestrator satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, id ports.Identity, simID string, verb rbac.Verb) (*ports.Simulation, rbac.Capability, error)
}

type Emitter interface {
	Emit(ch broadcast.Channel, event string, payload any)
}

type Service struct {
	auth     Authorizer
	users    ports.UsersRepository
	sessions ports.AISessionsRepository
	gen      ai.Generator
	catalog  *ai.Catalog
	bus      Emitter
	metrics  *telemetry.SimMetrics
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewService(auth Authorizer, users ports.UsersRepository, sessions ports.AISessionsRepository,
	gen ai.Generator, catalog *ai.Catalog, bus Emitter, metrics *telemetry.SimMetrics) *Service {
	return &Service{
		auth:     auth,
		users:    users,
		sessions: sessions,
		gen:      gen,
		catalog:  catalog,
		bus:      bus,
		metrics:  metrics,
		now:      time.Now,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d)),
	}
}

type Query struct {
	SimulationID string
	Engine       string
	Prompt       string
}

type Answer struct {
	SessionID string      `json:"sessionId"`
	Response  string      `json:"response"`
	Usage     ports.Usage `json:"usage"`
}

// Event is the ai-response payload.
type Event struct {
	SessionID    string      `json:"sessionId"`
	SimulationID string      `json:"simulationId"`
	Engine       string      `json:"engine"`
	Prompt       string      `json:"prompt"`
	Response     string      `json:"response"`
	Usage        ports.Usage `json:"usage"`
	By           string      `json:"by"`
	At           time.Time   `json:"at"`
}

// Query forwards prompt to the text-generation collaborator, logs the
// exchange and broadcasts it on the simulation channel.
func (s *Service) Query(ctx context.Context, id ports.Identity, q Query) (ans Answer, err error) {
	ctx, span := telemetry.StartSpan(ctx, "assist.query", telemetry.SimulationIDKey.String(q.SimulationID))
	defer func() { telemetry.EndSpan(span, err) }()

	prompt := strings.TrimSpace(q.Prompt)
	if q.SimulationID == "" || prompt == "" {
		return Answer{}, fmt.Errorf("%w: simulationId and prompt are required", ports.ErrInvalidInput)
	}
	if len(prompt) > maxPromptLen {
		return Answer{}, fmt.Errorf("%w: prompt longer than %d bytes", ports.ErrInvalidInput, maxPromptLen)
	}
	sim, _, err := s.auth.Authorize(ctx, id, q.SimulationID, rbac.VerbQuery)
	if err != nil {
		return Answer{}, err
	}
	eng, ok := s.catalog.Lookup(q.Engine)
	if !ok {
		return Answer{}, fmt.Errorf("%w: unknown engine %q (have %s)", ports.ErrInvalidInput, q.Engine, strings.Join(s.catalog.Names(), ", "))
	}
	if eng.Premium {
		if err := s.requireSubscription(ctx, id); err != nil {
			return Answer{}, err
		}
	}

	out, err := s.gen.Generate(ctx, ai.Request{
		Model:  eng.Model,
		System: systemPrompt(eng, sim),
		Prompt: prompt,
	})
	if err != nil {
		if !errors.Is(err, ports.ErrUpstreamFailure) {
			err = fmt.Errorf("%w: %v", ports.ErrUpstreamFailure, err)
		}
		return Answer{}, err
	}
	s.metrics.Tokens(ctx, eng.Name, out.Tokens)

	sess := &ports.AISession{
		ID:           uuid.NewString(),
		SimulationID: sim.ID,
		PrincipalID:  id.PrincipalID,
		Engine:       eng.Name,
		Prompt:       prompt,
		Response:     out.Text,
		Usage:        s.usage(out.Tokens),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return Answer{}, fmt.Errorf("log ai session: %w", err)
	}
	at := sess.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	s.bus.Emit(broadcast.SimulationChannel(sim.ID), broadcast.EventAIResponse, Event{
		SessionID:    sess.ID,
		SimulationID: sim.ID,
		Engine:       eng.Name,
		Prompt:       prompt,
		Response:     out.Text,
		Usage:        sess.Usage,
		By:           id.PrincipalID,
		At:           at,
	})
	logx.WithContext(ctx).Infow("ai query answered",
		logx.Field("simulationId", sim.ID), logx.Field("engine", eng.Name), logx.Field("tokens", out.Tokens))
	return Answer{SessionID: sess.ID, Response: out.Text, Usage: sess.Usage}, nil
}

// Sessions lists the logged exchanges of a simulation, newest first.
func (s *Service) Sessions(ctx context.Context, id ports.Identity, simID string, limit int) ([]*ports.AISession, error) {
	if _, _, err := s.auth.Authorize(ctx, id, simID, rbac.VerbRead); err != nil {
		return nil, err
	}
	return s.sessions.ListBySimulation(ctx, simID, limit)
}

// Engines lists the selectable engines.
func (s *Service) Engines() []ai.Engine {
	names := s.catalog.Names()
	out := make([]ai.Engine, 0, len(names))
	for _, n := range names {
		e, _ := s.catalog.Lookup(n)
		out = append(out, e)
	}
	return out
}

func (s *Service) requireSubscription(ctx context.Context, id ports.Identity) error {
	u, err := s.users.Get(ctx, id.PrincipalID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("%w: premium engine requires an active subscription", ports.ErrAccessDenied)
		}
		return fmt.Errorf("load subscription: %w", err)
	}
	if !u.Subscription.ActiveAt(s.now()) {
		s.metrics.Deny(ctx, "premium-engine")
		return fmt.Errorf("%w: premium engine requires an active subscription", ports.ErrAccessDenied)
	}
	return nil
}

// usage pairs provider tokens with synthetic CPU (percent) and RAM (MiB) figures.
func (s *Service) usage(tokens int64) ports.Usage {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return ports.Usage{
		Tokens: tokens,
		CPU:    round2(5 + s.rnd.Float64()*90),
		RAM:    round2(128 + s.rnd.Float64()*896),
	}
}

func systemPrompt(e ai.Engine, sim *ports.Simulation) string {
	var b strings.Builder
	b.WriteString(e.System)
	fmt.Fprintf(&b, "\nSimulation %q (domain: %s, status: %s, progress: %.1f%%).", sim.Name, sim.DomainType, sim.Status, sim.Progress)
	if sim.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", sim.Description)
	}
	return b.String()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
