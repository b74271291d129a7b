package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/service/assist"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type AIQueryLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAIQueryLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AIQueryLogic {
	return &AIQueryLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *AIQueryLogic) AIQuery(req *types.AIQueryRequest) (*assist.Answer, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	ans, err := l.svcCtx.Assist.Query(l.ctx, id, assist.Query{
		SimulationID: req.SimulationID,
		Engine:       req.Engine,
		Prompt:       req.Prompt,
	})
	if err != nil {
		return nil, err
	}
	return &ans, nil
}

// AIEngines lists the selectable engines and whether each needs a subscription.
func (l *AIQueryLogic) AIEngines() *types.AIEnginesResponse {
	engines := l.svcCtx.Assist.Engines()
	resp := &types.AIEnginesResponse{Engines: make([]types.AIEngineView, 0, len(engines))}
	for _, e := range engines {
		resp.Engines = append(resp.Engines, types.AIEngineView{Name: e.Name, Premium: e.Premium})
	}
	return resp
}
