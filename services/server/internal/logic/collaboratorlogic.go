package logic

import (
	"context"
	"strings"

	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/internal/service/lifecycle"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type CollaboratorLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCollaboratorLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CollaboratorLogic {
	return &CollaboratorLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *CollaboratorLogic) Set(req *types.CollaboratorSetRequest) (*lifecycle.SimulationView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	role := ports.CollaboratorRole(strings.ToLower(strings.TrimSpace(req.Role)))
	sim, err := l.svcCtx.Lifecycle.SetCollaborator(l.ctx, id, req.ID, req.PrincipalID, role)
	if err != nil {
		return nil, err
	}
	v := lifecycle.ViewOf(sim, rbac.Owner)
	return &v, nil
}

func (l *CollaboratorLogic) Remove(req *types.CollaboratorRemoveRequest) (*lifecycle.SimulationView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	sim, err := l.svcCtx.Lifecycle.RemoveCollaborator(l.ctx, id, req.ID, req.PrincipalID)
	if err != nil {
		return nil, err
	}
	v := lifecycle.ViewOf(sim, rbac.Owner)
	return &v, nil
}
