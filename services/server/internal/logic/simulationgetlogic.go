package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/service/lifecycle"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type SimulationGetLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSimulationGetLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SimulationGetLogic {
	return &SimulationGetLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SimulationGetLogic) SimulationGet(req *types.SimulationPathRequest) (*lifecycle.SimulationView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	sim, c, err := l.svcCtx.Lifecycle.Get(l.ctx, id, req.ID)
	if err != nil {
		return nil, err
	}
	v := lifecycle.ViewOf(sim, c)
	return &v, nil
}
