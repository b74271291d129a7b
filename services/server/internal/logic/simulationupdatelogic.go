package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/service/lifecycle"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type SimulationUpdateLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSimulationUpdateLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SimulationUpdateLogic {
	return &SimulationUpdateLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SimulationUpdateLogic) SimulationUpdate(req *types.SimulationUpdateRequest) (*lifecycle.SimulationView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	sim, err := l.svcCtx.Lifecycle.Update(l.ctx, id, req.ID, lifecycle.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		DomainType:  ports.DomainType(req.DomainType),
		Parameters:  ports.Params(req.Parameters),
	})
	if err != nil {
		return nil, err
	}
	v := lifecycle.ViewOf(sim, rbac.Resolve(id, sim))
	return &v, nil
}
