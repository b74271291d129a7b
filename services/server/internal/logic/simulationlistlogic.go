package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/service/lifecycle"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/zeromicro/go-zero/core/logx"
)

type SimulationListLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSimulationListLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SimulationListLogic {
	return &SimulationListLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SimulationListLogic) SimulationList() ([]lifecycle.SimulationView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	sims, err := l.svcCtx.Lifecycle.List(l.ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]lifecycle.SimulationView, 0, len(sims))
	for _, s := range sims {
		out = append(out, lifecycle.ViewOf(s, rbac.Resolve(id, s)))
	}
	return out, nil
}
