package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/ports"
	simsgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/simulations"
	"github.com/nuwa-agi/nuwa/internal/validation"
	"gorm.io/gorm"
)

var (
	alice = ports.Identity{PrincipalID: "alice", Handle: "alice", TeamID: "team-a", Role: ports.RoleEditor}
	bob   = ports.Identity{PrincipalID: "bob", Handle: "bob", TeamID: "team-b", Role: ports.RoleEditor}
	carol = ports.Identity{PrincipalID: "carol", Handle: "carol", TeamID: "team-a", Role: ports.RoleViewer}
)

type emitted struct {
	ch    broadcast.Channel
	event string
}

type recordingBus struct {
	mu     sync.Mutex
	events []emitted
}

func (b *recordingBus) Emit(ch broadcast.Channel, event string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emitted{ch: ch, event: event})
}

func (b *recordingBus) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (b *recordingBus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// flakyRepo fails SetStatus while failing is set.
type flakyRepo struct {
	ports.SimulationsRepository
	failing atomic.Bool
}

func (r *flakyRepo) SetStatus(ctx context.Context, id string, status ports.Status, progress float64) error {
	if r.failing.Load() {
		return errors.New("database unavailable")
	}
	return r.SimulationsRepository.SetStatus(ctx, id, status, progress)
}

type fixture struct {
	o     *Orchestrator
	repo  *flakyRepo
	bus   *recordingBus
	sched *engine.ManualScheduler
}

func newFixture(t *testing.T, step float64) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := simsgorm.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	f := &fixture{
		repo:  &flakyRepo{SimulationsRepository: simsgorm.NewPortRepo(simsgorm.NewRepo(db))},
		bus:   &recordingBus{},
		sched: engine.NewManualScheduler(),
	}
	f.o = New(Deps{Repo: f.repo, Bus: f.bus, Validator: validation.MustNewParams()},
		engine.Config{Step: step}, engine.WithScheduler(f.sched))
	t.Cleanup(f.o.Shutdown)
	return f
}

func (f *fixture) create(t *testing.T, owner ports.Identity) *ports.Simulation {
	t.Helper()
	sim, err := f.o.Create(context.Background(), owner, CreateInput{
		Name:       "Metropolis",
		DomainType: ports.DomainCity,
		Parameters: ports.Params{"population": 500.0},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sim
}

func TestCreateSeedsOwnerAndAnnounces(t *testing.T) {
	f := newFixture(t, 0.1)
	sim := f.create(t, alice)
	if sim.OwnerID != "alice" || sim.Status != ports.StatusIdle || sim.TeamID != "team-a" {
		t.Fatalf("unexpected record: %+v", sim)
	}
	if c, ok := sim.Collaborator("alice"); !ok || c.Role != ports.CollaboratorEditor {
		t.Fatalf("creator not seeded as editor: %+v", sim.Collaborators)
	}
	if f.bus.count(broadcast.EventSimulationCreated) != 1 {
		t.Fatalf("simulation-created not emitted")
	}

	_, err := f.o.Create(context.Background(), alice, CreateInput{Name: "x", DomainType: ports.DomainClimate, Parameters: ports.Params{"energy": -5}})
	if !errors.Is(err, ports.ErrInvalidInput) {
		t.Fatalf("negative metric: want ErrInvalidInput, got %v", err)
	}
	_, err = f.o.Create(context.Background(), alice, CreateInput{Name: "x", DomainType: "ocean"})
	if !errors.Is(err, ports.ErrInvalidInput) {
		t.Fatalf("unknown domain: want ErrInvalidInput, got %v", err)
	}
}

func TestSharingScenario(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()
	sim := f.create(t, alice)

	if _, _, err := f.o.Get(ctx, bob, sim.ID); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("stranger get: want ErrAccessDenied, got %v", err)
	}
	if _, err := f.o.SetCollaborator(ctx, bob, sim.ID, "bob", ports.CollaboratorEditor); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("stranger share: want ErrAccessDenied, got %v", err)
	}
	if _, err := f.o.SetCollaborator(ctx, alice, sim.ID, "bob", ports.CollaboratorViewer); err != nil {
		t.Fatalf("share viewer: %v", err)
	}
	got, c, err := f.o.Get(ctx, bob, sim.ID)
	if err != nil || got.ID != sim.ID || c != "viewer" {
		t.Fatalf("viewer get: %v %v", c, err)
	}

	before := f.bus.count(broadcast.EventSimulationUpdated)
	if _, err := f.o.Update(ctx, bob, sim.ID, UpdateInput{Name: "Bobville"}); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("viewer update: want ErrAccessDenied, got %v", err)
	}
	if f.bus.count(broadcast.EventSimulationUpdated) != before {
		t.Fatalf("denied update was broadcast")
	}

	if _, err := f.o.SetCollaborator(ctx, alice, sim.ID, "bob", ports.CollaboratorEditor); err != nil {
		t.Fatalf("promote: %v", err)
	}
	updated, err := f.o.Update(ctx, bob, sim.ID, UpdateInput{Name: "Bobville", Parameters: ports.Params{"zoning": "mixed"}})
	if err != nil {
		t.Fatalf("editor update: %v", err)
	}
	if updated.Name != "Bobville" || updated.Parameters["zoning"] != "mixed" {
		t.Fatalf("merge failed: %+v", updated)
	}
	if v, _ := updated.Parameters.Float("population"); v != 500 {
		t.Fatalf("stored parameter lost on merge: %v", updated.Parameters)
	}

	// team member sees it through team affiliation, a stranger does not
	list, err := f.o.List(ctx, carol)
	if err != nil || len(list) != 1 {
		t.Fatalf("team list: %d %v", len(list), err)
	}
	list, err = f.o.List(ctx, ports.Identity{PrincipalID: "dave", TeamID: "team-z"})
	if err != nil || len(list) != 0 {
		t.Fatalf("stranger list: %d %v", len(list), err)
	}

	if _, err := f.o.RemoveCollaborator(ctx, alice, sim.ID, "bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, err := f.o.Get(ctx, bob, sim.ID); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("revoked get: want ErrAccessDenied, got %v", err)
	}
	if f.bus.count(broadcast.EventCollaboratorRemoved) != 1 {
		t.Fatal("revocation not broadcast")
	}
	if _, err := f.o.RemoveCollaborator(ctx, alice, sim.ID, "alice"); !errors.Is(err, ports.ErrInvalidInput) {
		t.Fatalf("removing the owner: want ErrInvalidInput, got %v", err)
	}
}

func TestLifecycleVerbsMirrorPersistence(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()
	sim := f.create(t, alice)

	st, err := f.o.Start(ctx, alice, sim.ID, ports.Params{"energy": 40.0})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.Status != ports.StatusRunning || st.Metrics.Energy != 40 || st.Metrics.Population != 500 {
		t.Fatalf("unexpected start state: %+v", st)
	}
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); !errors.Is(err, ports.ErrAlreadyActive) {
		t.Fatalf("second start: want ErrAlreadyActive, got %v", err)
	}
	if f.bus.count(broadcast.EventSimulationStarted) != 1 {
		t.Fatalf("want exactly one simulation-started")
	}
	assertPersisted(t, f, sim.ID, ports.StatusRunning)

	f.sched.Advance(3)
	st, err = f.o.Pause(ctx, alice, sim.ID)
	if err != nil || st.Status != ports.StatusPaused {
		t.Fatalf("pause: %+v %v", st, err)
	}
	assertPersisted(t, f, sim.ID, ports.StatusPaused)
	if _, err := f.o.Pause(ctx, alice, sim.ID); err != nil {
		t.Fatalf("second pause: %v", err)
	}
	if f.bus.count(broadcast.EventSimulationPaused) != 1 {
		t.Fatalf("no-op pause was broadcast")
	}

	st, err = f.o.Resume(ctx, alice, sim.ID)
	if err != nil || st.Status != ports.StatusRunning {
		t.Fatalf("resume: %+v %v", st, err)
	}

	st, err = f.o.Stop(ctx, alice, sim.ID)
	if err != nil || st.Status != ports.StatusIdle {
		t.Fatalf("stop: %+v %v", st, err)
	}
	assertPersisted(t, f, sim.ID, ports.StatusIdle)
	if f.o.Engine().Active() != 0 {
		t.Fatalf("engine entry survived stop")
	}
	if _, err := f.o.Stop(ctx, alice, sim.ID); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if f.bus.count(broadcast.EventSimulationStopped) != 1 {
		t.Fatalf("idempotent stop was broadcast twice")
	}
}

func TestDeniedVerbHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()
	sim := f.create(t, alice)
	events := f.bus.len()

	// carol is a team viewer
	if _, err := f.o.Start(ctx, carol, sim.ID, nil); !errors.Is(err, ports.ErrAccessDenied) {
		t.Fatalf("viewer start: want ErrAccessDenied, got %v", err)
	}
	if f.o.Engine().Active() != 0 || f.bus.len() != events {
		t.Fatalf("denied start had side effects")
	}
	assertPersisted(t, f, sim.ID, ports.StatusIdle)
	if _, err := f.o.Start(ctx, alice, "missing", nil); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("missing simulation: want ErrNotFound, got %v", err)
	}
}

func TestPersistFailureIsCompensated(t *testing.T) {
	f := newFixture(t, 0.1)
	ctx := context.Background()
	sim := f.create(t, alice)

	f.repo.failing.Store(true)
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); !errors.Is(err, ports.ErrInconsistentState) {
		t.Fatalf("start: want ErrInconsistentState, got %v", err)
	}
	if f.o.Engine().Active() != 0 || f.bus.count(broadcast.EventSimulationStarted) != 0 {
		t.Fatalf("failed start left engine entry or event")
	}

	f.repo.failing.Store(false)
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.repo.failing.Store(true)
	if _, err := f.o.Pause(ctx, alice, sim.ID); !errors.Is(err, ports.ErrInconsistentState) {
		t.Fatalf("pause: want ErrInconsistentState, got %v", err)
	}
	if st, _ := f.o.Engine().StatusOf(sim.ID); st.Status != ports.StatusRunning {
		t.Fatalf("pause not undone: %s", st.Status)
	}
	f.sched.Advance(2)
	before, _ := f.o.Engine().StatusOf(sim.ID)
	if _, err := f.o.Stop(ctx, alice, sim.ID); !errors.Is(err, ports.ErrInconsistentState) {
		t.Fatalf("stop: want ErrInconsistentState, got %v", err)
	}
	after, ok := f.o.Engine().StatusOf(sim.ID)
	if !ok || after.Progress != before.Progress || after.Status != ports.StatusRunning {
		t.Fatalf("stop not undone: %+v", after)
	}
	if f.bus.count(broadcast.EventSimulationPaused)+f.bus.count(broadcast.EventSimulationStopped) != 0 {
		t.Fatalf("failed verbs were broadcast")
	}
}

func TestCompletionPersistsBeforeBroadcast(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	sim := f.create(t, alice)
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.sched.Advance(2)
	waitFor(t, func() bool { return f.bus.count(broadcast.EventSimulationCompleted) == 1 })
	assertPersisted(t, f, sim.ID, ports.StatusCompleted)
	if got, _ := f.repo.Get(ctx, sim.ID); got.Progress != 100 {
		t.Fatalf("progress not persisted: %v", got.Progress)
	}
	if f.bus.count(broadcast.EventSimulationProgress) != 1 {
		t.Fatalf("want one progress event before completion")
	}

	// a completed entry stays until stopped
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); !errors.Is(err, ports.ErrAlreadyActive) {
		t.Fatalf("start on completed: want ErrAlreadyActive, got %v", err)
	}
}

func TestCompletionSuppressedWhenPersistFails(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	sim := f.create(t, alice)
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.repo.failing.Store(true)
	f.sched.Advance(1)
	time.Sleep(100 * time.Millisecond)
	if f.bus.count(broadcast.EventSimulationCompleted) != 0 {
		t.Fatalf("completion broadcast although persistence failed")
	}
}

func TestStopKeepsTerminalStatus(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	sim := f.create(t, alice)
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.sched.Advance(1)
	waitFor(t, func() bool { return f.bus.count(broadcast.EventSimulationCompleted) == 1 })

	st, err := f.o.Stop(ctx, alice, sim.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if st.Status != ports.StatusCompleted {
		t.Fatalf("stop reported %s", st.Status)
	}
	if _, ok := f.o.Engine().StatusOf(sim.ID); ok {
		t.Fatal("engine entry survived stop")
	}
	assertPersisted(t, f, sim.ID, ports.StatusCompleted)
	if got, _ := f.repo.Get(ctx, sim.ID); got.Progress != 100 {
		t.Fatalf("progress rewritten: %v", got.Progress)
	}
	if f.bus.count(broadcast.EventSimulationStopped) != 0 {
		t.Fatal("stop of a completed simulation was broadcast")
	}
}

func TestNextVerbSettlesSuppressedCompletion(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	sim := f.create(t, alice)
	if _, err := f.o.Start(ctx, alice, sim.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.repo.failing.Store(true)
	f.sched.Advance(1)
	time.Sleep(100 * time.Millisecond)
	assertPersisted(t, f, sim.ID, ports.StatusRunning)

	// stopping while the record is stale must not drop the outcome
	if _, err := f.o.Stop(ctx, alice, sim.ID); !errors.Is(err, ports.ErrInconsistentState) {
		t.Fatalf("stop on stale record: want ErrInconsistentState, got %v", err)
	}
	if _, ok := f.o.Engine().StatusOf(sim.ID); !ok {
		t.Fatal("engine entry dropped before the outcome was persisted")
	}

	f.repo.failing.Store(false)
	st, err := f.o.Pause(ctx, alice, sim.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if st.Status != ports.StatusCompleted {
		t.Fatalf("pause reported %s", st.Status)
	}
	assertPersisted(t, f, sim.ID, ports.StatusCompleted)
	if f.bus.count(broadcast.EventSimulationCompleted) != 1 {
		t.Fatalf("want the held-back completion broadcast once, got %d", f.bus.count(broadcast.EventSimulationCompleted))
	}
	if _, err := f.o.Stop(ctx, alice, sim.ID); err != nil {
		t.Fatalf("stop after settle: %v", err)
	}
	assertPersisted(t, f, sim.ID, ports.StatusCompleted)
}

func assertPersisted(t *testing.T, f *fixture, id string, want ports.Status) {
	t.Helper()
	got, err := f.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	if got.Status != want {
		t.Fatalf("persisted status %s, want %s", got.Status, want)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
