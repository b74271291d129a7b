package logic

import (
	"context"
	"time"

	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type AuthMeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAuthMeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AuthMeLogic {
	return &AuthMeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *AuthMeLogic) AuthMe() (*types.UserView, error) {
	id, err := caller(l.ctx)
	if err != nil {
		return nil, err
	}
	u, err := l.svcCtx.Users.Get(l.ctx, id.PrincipalID)
	if err != nil {
		return nil, err
	}
	v := userView(u, u.Subscription.ActiveAt(time.Now()))
	return &v, nil
}
