package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

// SimulationVerbLogic drives the engine-backed lifecycle verbs.
type SimulationVerbLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSimulationVerbLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SimulationVerbLogic {
	return &SimulationVerbLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SimulationVerbLogic) Start(req *types.SimulationStartRequest) (*engine.State, error) {
	return l.run(func(id ports.Identity) (engine.State, error) {
		return l.svcCtx.Lifecycle.Start(l.ctx, id, req.ID, ports.Params(req.Parameters))
	})
}

func (l *SimulationVerbLogic) Pause(req *types.SimulationPathRequest) (*engine.State, error) {
	return l.run(func(id ports.Identity) (engine.State, error) {
		return l.svcCtx.Lifecycle.Pause(l.ctx, id, req.ID)
	})
}

func (l *SimulationVerbLogic) Resume(req *types.SimulationPathRequest) (*engine.State, error) {
	return l.run(func(id ports.Identity) (engine.State, error) {
		return l.svcCtx.Lifecycle.Resume(l.ctx, id, req.ID)
	})
}

func (l *SimulationVerbLogic) Stop(req *types.SimulationPathRequest) (*engine.State, error) {
	return l.run(func(id ports.Identity) (engine.State, error) {
		return l.svcCtx.Lifecycle.Stop(l.ctx, id, req.ID)
	})
}

func (l *SimulationVerbLogic) State(req *types.SimulationPathRequest) (*engine.State, error) {
	return l.run(func(id ports.Identity) (engine.State, error) {
		return l.svcCtx.Lifecycle.State(l.ctx, id, req.ID)
	})
}

func (l *SimulationVerbLogic) run(fn func(ports.Identity) (engine.State, error)) (*engine.State, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	st, err := fn(id)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
