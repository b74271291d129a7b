package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

const maxSessionsPage = 200

type AISessionsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAISessionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AISessionsLogic {
	return &AISessionsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *AISessionsLogic) AISessions(req *types.AISessionsRequest) (*types.AISessionsResponse, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 || limit > maxSessionsPage {
		limit = maxSessionsPage
	}
	sessions, err := l.svcCtx.Assist.Sessions(l.ctx, id, req.ID, limit)
	if err != nil {
		return nil, err
	}
	resp := &types.AISessionsResponse{Sessions: make([]types.AISessionView, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, types.AISessionView{
			ID:           s.ID,
			SimulationID: s.SimulationID,
			PrincipalID:  s.PrincipalID,
			Engine:       s.Engine,
			Prompt:       s.Prompt,
			Response:     s.Response,
			Tokens:       s.Usage.Tokens,
			CPU:          s.Usage.CPU,
			RAM:          s.Usage.RAM,
			CreatedAt:    s.CreatedAt,
		})
	}
	return resp, nil
}
