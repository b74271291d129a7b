package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type HealthzLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHealthzLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HealthzLogic {
	return &HealthzLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *HealthzLogic) Healthz() (*types.HealthResponse, error) {
	if sqlDB, err := l.svcCtx.DB.DB(); err != nil {
		return nil, err
	} else if err := sqlDB.PingContext(l.ctx); err != nil {
		return nil, err
	}
	return &types.HealthResponse{
		Status:            "ok",
		UptimeSeconds:     int64(l.svcCtx.Uptime().Seconds()),
		ActiveSimulations: l.svcCtx.Lifecycle.Engine().Active(),
		Connections:       l.svcCtx.Gateway.Connections(),
	}, nil
}
