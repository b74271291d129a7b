package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/telemetry"
	"github.com/zeromicro/go-zero/core/logx"
)

// Sink receives clock-driven events. Emit is called with the engine lock held
// and must neither block nor call back into the Engine.
type Sink interface {
	Emit(ch broadcast.Channel, event string, payload any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ch broadcast.Channel, event string, payload any)

func (f SinkFunc) Emit(ch broadcast.Channel, event string, payload any) { f(ch, event, payload) }

// Random is the source of metric perturbations.
type Random interface {
	Float64() float64
}

type Config struct {
	Interval time.Duration
	Step     float64
}

const (
	DefaultInterval = time.Second
	DefaultStep     = 0.1
	maxProgress     = 100
)

type Option func(*Engine)

func WithScheduler(s Scheduler) Option           { return func(e *Engine) { e.sched = s } }
func WithRandom(r Random) Option                 { return func(e *Engine) { e.rnd = r } }
func WithClock(now func() time.Time) Option      { return func(e *Engine) { e.now = now } }
func WithMetrics(m *telemetry.SimMetrics) Option { return func(e *Engine) { e.metrics = m } }

// Engine owns every active simulation and advances running ones on a
// periodic task per id. The entry map is never exposed.
type Engine struct {
	cfg     Config
	sink    Sink
	sched   Scheduler
	rnd     Random
	now     func() time.Time
	metrics *telemetry.SimMetrics

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	state  State
	cancel func()
}

func New(cfg Config, sink Sink, opts ...Option) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if sink == nil {
		sink = SinkFunc(func(broadcast.Channel, string, any) {})
	}
	e := &Engine{
		cfg:     cfg,
		sink:    sink,
		sched:   TickerScheduler{},
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewPCG(uint64(e.now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return e
}

// Start creates the entry for id seeded from params and schedules its advance.
func (e *Engine) Start(id string, params ports.Params) (State, error) {
	if id == "" {
		return State{}, fmt.Errorf("%w: empty simulation id", ports.ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[id]; ok {
		return ent.state, fmt.Errorf("%w: %s is %s", ports.ErrAlreadyActive, id, ent.state.Status)
	}
	now := e.now()
	ent := &entry{state: State{
		ID:        id,
		Status:    ports.StatusRunning,
		Metrics:   seedMetrics(params),
		StartedAt: now,
		UpdatedAt: now,
	}}
	e.entries[id] = ent
	ent.cancel = e.sched.Every(e.cfg.Interval, func() { e.advance(id, ent) })
	e.metrics.ActiveDelta(1)
	logx.Infow("simulation started", logx.Field("simulationId", id))
	return ent.state, nil
}

// Pause freezes a running entry. It reports false when nothing changed.
func (e *Engine) Pause(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok || ent.state.Status != ports.StatusRunning {
		if ok {
			return ent.state, false
		}
		return State{}, false
	}
	ent.state.Status = ports.StatusPaused
	ent.state.UpdatedAt = e.now()
	return ent.state, true
}

// Resume restarts a paused entry. It reports false when nothing changed.
func (e *Engine) Resume(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok || ent.state.Status != ports.StatusPaused {
		if ok {
			return ent.state, false
		}
		return State{}, false
	}
	ent.state.Status = ports.StatusRunning
	ent.state.UpdatedAt = e.now()
	return ent.state, true
}

// Stop cancels the periodic advance and removes the entry. When Stop returns
// no further tick for id takes effect. The removed state is returned.
func (e *Engine) Stop(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return State{}, false
	}
	e.remove(id, ent)
	return ent.state, true
}

// Restore puts back an entry removed by Stop, keeping its progress and
// metrics. It is used to undo a stop whose persistence failed.
func (e *Engine) Restore(st State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[st.ID]; ok {
		return fmt.Errorf("%w: %s", ports.ErrAlreadyActive, st.ID)
	}
	ent := &entry{state: st}
	e.entries[st.ID] = ent
	if !st.Status.Terminal() {
		ent.cancel = e.sched.Every(e.cfg.Interval, func() { e.advance(st.ID, ent) })
	}
	e.metrics.ActiveDelta(1)
	return nil
}

func (e *Engine) StatusOf(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[id]; ok {
		return ent.state, true
	}
	return State{}, false
}

func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Shutdown cancels every task and drops all entries.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ent := range e.entries {
		e.remove(id, ent)
	}
}

func (e *Engine) remove(id string, ent *entry) {
	if ent.cancel != nil {
		ent.cancel()
		ent.cancel = nil
	}
	delete(e.entries, id)
	e.metrics.ActiveDelta(-1)
}

// advance applies one tick. A callback whose entry was stopped or replaced
// is a no-op.
func (e *Engine) advance(id string, ent *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.entries[id]; !ok || cur != ent || ent.cancel == nil {
		return
	}
	if ent.state.Status != ports.StatusRunning {
		return
	}
	st := &ent.state
	st.Progress = math.Min(maxProgress, math.Round((st.Progress+e.cfg.Step)*1e6)/1e6)
	st.Metrics.Population = nonNegative(st.Metrics.Population + populationDrift.sample(e.rnd.Float64()))
	st.Metrics.Energy = nonNegative(st.Metrics.Energy + energyDrift.sample(e.rnd.Float64()))
	st.Metrics.Oxygen = nonNegative(st.Metrics.Oxygen + oxygenDrift.sample(e.rnd.Float64()))
	st.Metrics.Food = nonNegative(st.Metrics.Food + foodDrift.sample(e.rnd.Float64()))
	st.Ticks++
	st.UpdatedAt = e.now()
	e.metrics.Tick(id)

	ch := broadcast.SimulationChannel(id)
	if st.Progress >= maxProgress {
		st.Status = ports.StatusCompleted
		ent.cancel()
		ent.cancel = nil
		logx.Infow("simulation completed", logx.Field("simulationId", id), logx.Field("ticks", st.Ticks))
		e.sink.Emit(ch, broadcast.EventSimulationCompleted, *st)
		return
	}
	e.sink.Emit(ch, broadcast.EventSimulationProgress, *st)
}
