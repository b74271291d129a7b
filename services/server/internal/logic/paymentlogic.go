package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type PaymentLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewPaymentLogic(ctx context.Context, svcCtx *svc.ServiceContext) *PaymentLogic {
	return &PaymentLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *PaymentLogic) Plans() *types.PlansResponse {
	plans := l.svcCtx.Billing.Plans()
	resp := &types.PlansResponse{Plans: make([]types.PlanView, 0, len(plans))}
	for _, p := range plans {
		resp.Plans = append(resp.Plans, types.PlanView{Plan: string(p.Plan), Amount: p.Amount, Currency: p.Currency})
	}
	return resp
}

func (l *PaymentLogic) Create(req *types.PaymentCreateRequest) (*types.PaymentView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	p, err := l.svcCtx.Billing.Create(l.ctx, id, ports.Plan(req.Plan))
	if err != nil {
		return nil, err
	}
	l.Infow("payment created", logx.Field("payment", p.ID), logx.Field("plan", p.Plan))
	return paymentView(p), nil
}

// Callback applies a gateway notification. raw is the unparsed body the
// signature was computed over.
func (l *PaymentLogic) Callback(raw []byte, signature string) (*types.CallbackResponse, error) {
	res, err := l.svcCtx.Billing.Callback(l.ctx, raw, signature)
	if err != nil {
		return nil, err
	}
	return &types.CallbackResponse{PaymentID: res.PaymentID, Status: string(res.Status), Changed: res.Changed}, nil
}
