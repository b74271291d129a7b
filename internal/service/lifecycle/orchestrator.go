// Package lifecycle composes access control, the simulation engine, the
// persistence collaborator and the broadcast coordinator into one operation
// per verb.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nuwa-agi/nuwa/internal/analytics/mq"
	"github.com/nuwa-agi/nuwa/internal/audit/chain"
	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
)

// Emitter publishes an event on a channel. *broadcast.Coordinator satisfies it.
type Emitter interface {
	Emit(ch broadcast.Channel, event string, payload any)
}

// Auditor records security-relevant actions. *chain.Writer satisfies it.
type Auditor interface {
	Log(kind, actor, target string, meta map[string]string) error
}

// Validator checks simulation parameters for a domain.
type Validator interface {
	Validate(domain ports.DomainType, params ports.Params) error
}

type Deps struct {
	Repo      ports.SimulationsRepository
	Bus       Emitter
	Policy    *rbac.Policy
	Validator Validator
	Queue     mq.Queue
	Audit     Auditor
	Metrics   *telemetry.SimMetrics
	Now       func() time.Time
}

// Orchestrator is the façade used by the HTTP handlers and the realtime gateway.
type Orchestrator struct {
	repo      ports.SimulationsRepository
	engine    *engine.Engine
	bus       Emitter
	policy    *rbac.Policy
	validator Validator
	queue     mq.Queue
	audit     Auditor
	metrics   *telemetry.SimMetrics
	now       func() time.Time
	// serializes verbs and completion mirroring per simulation id
	calls syncx.LockedCalls
}

// New builds the orchestrator and the engine it owns. Engine options inject
// the scheduler, random source and clock.
func New(d Deps, cfg engine.Config, opts ...engine.Option) *Orchestrator {
	o := &Orchestrator{
		repo:      d.Repo,
		bus:       d.Bus,
		policy:    d.Policy,
		validator: d.Validator,
		queue:     d.Queue,
		audit:     d.Audit,
		metrics:   d.Metrics,
		now:       d.Now,
		calls:     syncx.NewLockedCalls(),
	}
	if o.policy == nil {
		o.policy = rbac.MustNewPolicy()
	}
	if o.queue == nil {
		o.queue = mq.NewNoop()
	}
	if o.audit == nil {
		o.audit = (*chain.Writer)(nil)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.bus == nil {
		o.bus = engine.SinkFunc(func(broadcast.Channel, string, any) {})
	}
	opts = append([]engine.Option{engine.WithMetrics(d.Metrics)}, opts...)
	o.engine = engine.New(cfg, engine.SinkFunc(o.onEngineEvent), opts...)
	return o
}

// Engine exposes the owned engine for shutdown and inspection.
func (o *Orchestrator) Engine() *engine.Engine { return o.engine }

// Shutdown stops every active simulation task.
func (o *Orchestrator) Shutdown() { o.engine.Shutdown() }

type CreateInput struct {
	Name        string
	Description string
	DomainType  ports.DomainType
	Parameters  ports.Params
}

// Create persists a new idle simulation owned by the caller.
func (o *Orchestrator) Create(ctx context.Context, id ports.Identity, in CreateInput) (sim *ports.Simulation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.create", telemetry.DomainTypeKey.String(string(in.DomainType)))
	defer func() { telemetry.EndSpan(span, err) }()

	if id.PrincipalID == "" {
		return nil, ports.ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ports.ErrInvalidInput)
	}
	if err := o.validate(in.DomainType, in.Parameters); err != nil {
		return nil, err
	}
	now := o.now()
	sim = &ports.Simulation{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		DomainType:    in.DomainType,
		Parameters:    in.Parameters,
		Status:        ports.StatusIdle,
		OwnerID:       id.PrincipalID,
		TeamID:        id.TeamID,
		Collaborators: []ports.Collaborator{{PrincipalID: id.PrincipalID, Role: ports.CollaboratorEditor}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sim.Parameters == nil {
		sim.Parameters = ports.Params{}
	}
	if err := o.repo.Create(ctx, sim); err != nil {
		return nil, fmt.Errorf("create simulation: %w", err)
	}
	if sim.TeamID != "" {
		o.bus.Emit(broadcast.TeamChannel(sim.TeamID), broadcast.EventSimulationCreated, ViewOf(sim, ""))
	}
	o.record(ctx, "create", id, sim.ID, map[string]any{"domainType": string(sim.DomainType)})
	return sim, nil
}

// Authorize loads the record and checks that the caller may perform verb on it.
// A denial is counted and audited before any side effect.
func (o *Orchestrator) Authorize(ctx context.Context, id ports.Identity, simID string, verb rbac.Verb) (*ports.Simulation, rbac.Capability, error) {
	if id.PrincipalID == "" {
		return nil, rbac.None, ports.ErrUnauthenticated
	}
	sim, err := o.repo.Get(ctx, simID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, rbac.None, fmt.Errorf("simulation %s: %w", simID, ports.ErrNotFound)
		}
		return nil, rbac.None, fmt.Errorf("load simulation: %w", err)
	}
	c := rbac.Resolve(id, sim)
	if !o.policy.Allows(c, verb) {
		o.metrics.Deny(ctx, string(verb))
		if err := o.audit.Log(chain.KindAccessDenied, id.PrincipalID, simID, map[string]string{
			"verb":       string(verb),
			"capability": string(c),
		}); err != nil {
			logx.WithContext(ctx).Errorf("audit denial: %v", err)
		}
		return nil, c, fmt.Errorf("%s %s: %w", verb, simID, ports.ErrAccessDenied)
	}
	return sim, c, nil
}

// Get returns the record when the caller can view it.
func (o *Orchestrator) Get(ctx context.Context, id ports.Identity, simID string) (*ports.Simulation, rbac.Capability, error) {
	return o.Authorize(ctx, id, simID, rbac.VerbRead)
}

// List returns every simulation the caller can view.
func (o *Orchestrator) List(ctx context.Context, id ports.Identity) ([]*ports.Simulation, error) {
	if id.PrincipalID == "" {
		return nil, ports.ErrUnauthenticated
	}
	sims, err := o.repo.ListVisible(ctx, id.PrincipalID, id.TeamID)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	out := make([]*ports.Simulation, 0, len(sims))
	for _, s := range sims {
		if o.policy.Allows(rbac.Resolve(id, s), rbac.VerbRead) {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpdateInput carries the fields to merge. Empty strings and nil parameters
// leave the stored values untouched.
type UpdateInput struct {
	Name        string
	Description string
	DomainType  ports.DomainType
	Parameters  ports.Params
}

func (o *Orchestrator) Update(ctx context.Context, id ports.Identity, simID string, in UpdateInput) (sim *ports.Simulation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.update", telemetry.SimulationIDKey.String(simID))
	defer func() { telemetry.EndSpan(span, err) }()

	v, err := o.calls.Do(simID, func() (any, error) {
		sim, _, err := o.Authorize(ctx, id, simID, rbac.VerbUpdate)
		if err != nil {
			return nil, err
		}
		if s := strings.TrimSpace(in.Name); s != "" {
			sim.Name = s
		}
		if s := strings.TrimSpace(in.Description); s != "" {
			sim.Description = s
		}
		if in.DomainType != "" {
			if !in.DomainType.Valid() {
				return nil, fmt.Errorf("%w: unknown domain type %q", ports.ErrInvalidInput, in.DomainType)
			}
			sim.DomainType = in.DomainType
		}
		if in.Parameters != nil {
			sim.Parameters = sim.Parameters.Merge(in.Parameters)
		}
		if err := o.validate(sim.DomainType, sim.Parameters); err != nil {
			return nil, err
		}
		sim.UpdatedAt = o.now()
		if err := o.repo.Update(ctx, sim); err != nil {
			return nil, fmt.Errorf("update simulation: %w", err)
		}
		return sim, nil
	})
	if err != nil {
		return nil, err
	}
	sim = v.(*ports.Simulation)
	o.emitUpdated(sim)
	o.record(ctx, "update", id, simID, nil)
	return sim, nil
}

// SetCollaborator adds or re-roles a collaborator. Only the owner may share.
func (o *Orchestrator) SetCollaborator(ctx context.Context, id ports.Identity, simID, principalID string, role ports.CollaboratorRole) (*ports.Simulation, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" || !role.Valid() {
		return nil, fmt.Errorf("%w: principalId and a role of editor or viewer are required", ports.ErrInvalidInput)
	}
	return o.share(ctx, id, simID, principalID, func(sim *ports.Simulation) error {
		if principalID == sim.OwnerID {
			return fmt.Errorf("%w: the owner cannot be re-roled", ports.ErrInvalidInput)
		}
		sim.SetCollaborator(principalID, role)
		return nil
	}, string(role))
}

// RemoveCollaborator revokes a collaborator entry and tells every gateway to
// re-check the principal's open subscriptions to the simulation.
func (o *Orchestrator) RemoveCollaborator(ctx context.Context, id ports.Identity, simID, principalID string) (*ports.Simulation, error) {
	sim, err := o.share(ctx, id, simID, principalID, func(sim *ports.Simulation) error {
		if principalID == sim.OwnerID {
			return fmt.Errorf("%w: the owner cannot be removed", ports.ErrInvalidInput)
		}
		if !sim.RemoveCollaborator(principalID) {
			return fmt.Errorf("collaborator %s: %w", principalID, ports.ErrNotFound)
		}
		return nil
	}, "removed")
	if err != nil {
		return nil, err
	}
	o.bus.Emit(broadcast.SimulationChannel(simID), broadcast.EventCollaboratorRemoved,
		broadcast.CollaboratorRemoved{SimulationID: simID, PrincipalID: principalID})
	return sim, nil
}

func (o *Orchestrator) share(ctx context.Context, id ports.Identity, simID, principalID string, mutate func(*ports.Simulation) error, change string) (*ports.Simulation, error) {
	v, err := o.calls.Do(simID, func() (any, error) {
		sim, _, err := o.Authorize(ctx, id, simID, rbac.VerbShare)
		if err != nil {
			return nil, err
		}
		if err := mutate(sim); err != nil {
			return nil, err
		}
		sim.UpdatedAt = o.now()
		if err := o.repo.Update(ctx, sim); err != nil {
			return nil, fmt.Errorf("update collaborators: %w", err)
		}
		return sim, nil
	})
	if err != nil {
		return nil, err
	}
	sim := v.(*ports.Simulation)
	if err := o.audit.Log(chain.KindCollaborator, id.PrincipalID, simID, map[string]string{
		"principal": principalID,
		"change":    change,
	}); err != nil {
		logx.WithContext(ctx).Errorf("audit collaborator change: %v", err)
	}
	o.emitUpdated(sim)
	return sim, nil
}

// Start seeds an engine entry from the stored parameters merged with overrides.
func (o *Orchestrator) Start(ctx context.Context, id ports.Identity, simID string, overrides ports.Params) (engine.State, error) {
	return o.verb(ctx, id, simID, rbac.VerbStart, func(sim *ports.Simulation) (engine.State, bool, error) {
		params := sim.Parameters.Merge(overrides)
		if err := o.validate(sim.DomainType, params); err != nil {
			return engine.State{}, false, err
		}
		st, err := o.engine.Start(simID, params)
		if err != nil {
			return st, false, err
		}
		if err := o.repo.SetStatus(ctx, simID, ports.StatusRunning, st.Progress); err != nil {
			o.engine.Stop(simID)
			return st, false, o.inconsistent(ctx, "start", simID, err)
		}
		return st, true, nil
	})
}

// Pause freezes a running simulation. Pausing anything else is a no-op.
func (o *Orchestrator) Pause(ctx context.Context, id ports.Identity, simID string) (engine.State, error) {
	return o.verb(ctx, id, simID, rbac.VerbPause, func(sim *ports.Simulation) (engine.State, bool, error) {
		st, changed := o.engine.Pause(simID)
		if !changed {
			return o.current(sim), false, nil
		}
		if err := o.repo.SetStatus(ctx, simID, ports.StatusPaused, st.Progress); err != nil {
			o.engine.Resume(simID)
			return st, false, o.inconsistent(ctx, "pause", simID, err)
		}
		return st, true, nil
	})
}

// Resume restarts a paused simulation. Resuming anything else is a no-op.
func (o *Orchestrator) Resume(ctx context.Context, id ports.Identity, simID string) (engine.State, error) {
	return o.verb(ctx, id, simID, rbac.VerbResume, func(sim *ports.Simulation) (engine.State, bool, error) {
		st, changed := o.engine.Resume(simID)
		if !changed {
			return o.current(sim), false, nil
		}
		if err := o.repo.SetStatus(ctx, simID, ports.StatusRunning, st.Progress); err != nil {
			o.engine.Pause(simID)
			return st, false, o.inconsistent(ctx, "resume", simID, err)
		}
		return st, true, nil
	})
}

// Stop removes the engine entry and records the simulation as idle. Stopping
// an absent simulation only reconciles a stale persisted status. A completed
// or failed simulation keeps its terminal status; only the entry goes.
func (o *Orchestrator) Stop(ctx context.Context, id ports.Identity, simID string) (engine.State, error) {
	return o.verb(ctx, id, simID, rbac.VerbStop, func(sim *ports.Simulation) (engine.State, bool, error) {
		if cur, ok := o.engine.StatusOf(simID); ok && cur.Status.Terminal() {
			if sim.Status != cur.Status {
				return cur, false, o.inconsistent(ctx, "stop", simID, fmt.Errorf("terminal status %s not persisted", cur.Status))
			}
			st, _ := o.engine.Stop(simID)
			return st, false, nil
		}
		st, ok := o.engine.Stop(simID)
		if !ok {
			cur := o.current(sim)
			if sim.Status == ports.StatusRunning || sim.Status == ports.StatusPaused {
				if err := o.repo.SetStatus(ctx, simID, ports.StatusIdle, sim.Progress); err != nil {
					return cur, false, fmt.Errorf("reconcile status: %w", err)
				}
				cur.Status = ports.StatusIdle
			}
			return cur, false, nil
		}
		if err := o.repo.SetStatus(ctx, simID, ports.StatusIdle, st.Progress); err != nil {
			if rerr := o.engine.Restore(st); rerr != nil {
				logx.WithContext(ctx).Errorf("restore %s after failed stop: %v", simID, rerr)
			}
			return st, false, o.inconsistent(ctx, "stop", simID, err)
		}
		st.Status = ports.StatusIdle
		return st, true, nil
	})
}

// State returns the live engine snapshot, or the persisted status when the
// simulation has no engine entry.
func (o *Orchestrator) State(ctx context.Context, id ports.Identity, simID string) (engine.State, error) {
	sim, _, err := o.Authorize(ctx, id, simID, rbac.VerbRead)
	if err != nil {
		return engine.State{}, err
	}
	return o.current(sim), nil
}

var verbEvents = map[rbac.Verb]string{
	rbac.VerbStart:  broadcast.EventSimulationStarted,
	rbac.VerbPause:  broadcast.EventSimulationPaused,
	rbac.VerbResume: broadcast.EventSimulationResumed,
	rbac.VerbStop:   broadcast.EventSimulationStopped,
}

// verb runs one engine-backed transition under the per-id lock. apply reports
// whether anything changed; unchanged outcomes are neither broadcast nor recorded.
func (o *Orchestrator) verb(ctx context.Context, id ports.Identity, simID string, verb rbac.Verb,
	apply func(*ports.Simulation) (engine.State, bool, error)) (st engine.State, err error) {
	ctx, span := telemetry.StartSpan(ctx, "lifecycle."+string(verb),
		telemetry.SimulationIDKey.String(simID), telemetry.VerbKey.String(string(verb)))
	defer func() { telemetry.EndSpan(span, err) }()

	type result struct {
		st      engine.State
		changed bool
	}
	v, err := o.calls.Do(simID, func() (any, error) {
		sim, _, err := o.Authorize(ctx, id, simID, verb)
		if err != nil {
			return nil, err
		}
		o.settle(ctx, sim)
		st, changed, err := apply(sim)
		if err != nil {
			return nil, err
		}
		if changed {
			// emitted while the per-id lock is held so events follow mutation order
			o.bus.Emit(broadcast.SimulationChannel(simID), verbEvents[verb], transitionOf(st, id.PrincipalID, o.now()))
		}
		return result{st: st, changed: changed}, nil
	})
	if err != nil {
		o.metrics.Transition(ctx, string(verb), outcome(err))
		return engine.State{}, err
	}
	res := v.(result)
	if !res.changed {
		o.metrics.Transition(ctx, string(verb), "noop")
		return res.st, nil
	}
	o.metrics.Transition(ctx, string(verb), "ok")
	o.record(ctx, string(verb), id, simID, map[string]any{"status": string(res.st.Status), "progress": res.st.Progress})
	return res.st, nil
}

// current prefers the live engine snapshot over the persisted record.
func (o *Orchestrator) current(sim *ports.Simulation) engine.State {
	if st, ok := o.engine.StatusOf(sim.ID); ok {
		return st
	}
	return engine.State{ID: sim.ID, Status: sim.Status, Progress: sim.Progress, UpdatedAt: sim.UpdatedAt}
}

func (o *Orchestrator) validate(domain ports.DomainType, params ports.Params) error {
	if !domain.Valid() {
		return fmt.Errorf("%w: unknown domain type %q", ports.ErrInvalidInput, domain)
	}
	if o.validator == nil {
		return nil
	}
	return o.validator.Validate(domain, params)
}

func (o *Orchestrator) inconsistent(ctx context.Context, verb, simID string, cause error) error {
	logx.WithContext(ctx).Errorw("persist transition failed; engine change undone",
		logx.Field("verb", verb), logx.Field("simulationId", simID), logx.Field("error", cause.Error()))
	return fmt.Errorf("%w: %s %s: %v", ports.ErrInconsistentState, verb, simID, cause)
}

func (o *Orchestrator) emitUpdated(sim *ports.Simulation) {
	view := ViewOf(sim, "")
	o.bus.Emit(broadcast.SimulationChannel(sim.ID), broadcast.EventSimulationUpdated, view)
	if sim.TeamID != "" {
		o.bus.Emit(broadcast.TeamChannel(sim.TeamID), broadcast.EventSimulationUpdated, view)
	}
}

// record writes the audit line and publishes the analytics event.
func (o *Orchestrator) record(ctx context.Context, verb string, id ports.Identity, simID string, extra map[string]any) {
	if err := o.audit.Log(chain.KindLifecycle, id.PrincipalID, simID, map[string]string{"verb": verb}); err != nil {
		logx.WithContext(ctx).Errorf("audit %s: %v", verb, err)
	}
	evt := map[string]any{
		"type":         "simulation." + verb,
		"simulationId": simID,
		"actor":        id.PrincipalID,
		"teamId":       id.TeamID,
		"at":           o.now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		evt[k] = v
	}
	mq.Publish(o.queue, evt)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ports.ErrAccessDenied):
		return "denied"
	case errors.Is(err, ports.ErrNotFound):
		return "not_found"
	case errors.Is(err, ports.ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ports.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ports.ErrInconsistentState):
		return "inconsistent"
	default:
		return "error"
	}
}
