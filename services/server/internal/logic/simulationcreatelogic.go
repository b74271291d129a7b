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

type SimulationCreateLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSimulationCreateLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SimulationCreateLogic {
	return &SimulationCreateLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SimulationCreateLogic) SimulationCreate(req *types.SimulationCreateRequest) (*lifecycle.SimulationView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	sim, err := l.svcCtx.Lifecycle.Create(l.ctx, id, lifecycle.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		DomainType:  ports.DomainType(req.DomainType),
		Parameters:  ports.Params(req.Parameters),
	})
	if err != nil {
		return nil, err
	}
	v := lifecycle.ViewOf(sim, rbac.Owner)
	return &v, nil
}
