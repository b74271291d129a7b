package lifecycle

import (
	"context"
	"time"

	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/zeromicro/go-zero/core/logx"
)

const completionTimeout = 5 * time.Second

// onEngineEvent receives clock-driven engine events. It runs under the engine
// lock, so completion mirroring is handed to a goroutine.
func (o *Orchestrator) onEngineEvent(ch broadcast.Channel, event string, payload any) {
	if event != broadcast.EventSimulationCompleted {
		o.bus.Emit(ch, event, payload)
		return
	}
	st, ok := payload.(engine.State)
	if !ok {
		logx.Errorf("unexpected completion payload %T", payload)
		return
	}
	go o.mirrorCompletion(ch, st)
}

// mirrorCompletion persists completed/100 and only then broadcasts. A failed
// write or a simulation stopped in the meantime suppresses the event.
func (o *Orchestrator) mirrorCompletion(ch broadcast.Channel, st engine.State) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()
	_, _ = o.calls.Do(st.ID, func() (any, error) {
		cur, ok := o.engine.StatusOf(st.ID)
		if !ok || cur.Status != ports.StatusCompleted {
			return nil, nil
		}
		if err := o.repo.SetStatus(ctx, st.ID, ports.StatusCompleted, cur.Progress); err != nil {
			logx.WithContext(ctx).Errorw("persist completion failed; event suppressed",
				logx.Field("simulationId", st.ID), logx.Field("error", err.Error()))
			o.metrics.Transition(ctx, "complete", "inconsistent")
			return nil, err
		}
		o.bus.Emit(ch, broadcast.EventSimulationCompleted, transitionOf(cur, "", o.now()))
		o.metrics.Transition(ctx, "complete", "ok")
		return nil, nil
	})
}

// settle persists a terminal engine outcome that the completion mirror could
// not write, then broadcasts the completion it held back. It runs under the
// per-id lock at the start of every verb.
func (o *Orchestrator) settle(ctx context.Context, sim *ports.Simulation) {
	st, ok := o.engine.StatusOf(sim.ID)
	if !ok || !st.Status.Terminal() || sim.Status == st.Status {
		return
	}
	if err := o.repo.SetStatus(ctx, sim.ID, st.Status, st.Progress); err != nil {
		logx.WithContext(ctx).Errorw("settle terminal status failed",
			logx.Field("simulationId", sim.ID), logx.Field("error", err.Error()))
		return
	}
	sim.Status, sim.Progress = st.Status, st.Progress
	o.metrics.Transition(ctx, "complete", "settled")
	if st.Status == ports.StatusCompleted {
		o.bus.Emit(broadcast.SimulationChannel(sim.ID), broadcast.EventSimulationCompleted, transitionOf(st, "", o.now()))
	}
}
