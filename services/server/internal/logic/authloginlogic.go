package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nuwa-agi/nuwa/internal/ports"
	usersgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/users"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

type AuthLoginLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAuthLoginLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AuthLoginLogic {
	return &AuthLoginLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *AuthLoginLogic) AuthLogin(req *types.LoginRequest) (*types.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ports.ErrInvalidInput)
	}
	u, err := l.svcCtx.Users.Verify(l.ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, usersgorm.ErrInvalidCredentials) {
			l.Infof("login failed for %s", username)
			return nil, fmt.Errorf("%w: invalid credentials", ports.ErrUnauthenticated)
		}
		return nil, err
	}
	return issue(l.svcCtx, u)
}
