package logic

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/services/server/internal/svc"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

const minPasswordLen = 8

type AuthRegisterLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAuthRegisterLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AuthRegisterLogic {
	return &AuthRegisterLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// AuthRegister creates an account and signs a credential for it. Accounts
// join the configured default team unless one is given; admin cannot be
// self-assigned.
func (l *AuthRegisterLogic) AuthRegister(req *types.RegisterRequest) (*types.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-32 letters, digits, '.', '_' or '-'", ports.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ports.ErrInvalidInput, minPasswordLen)
	}
	role := ports.RoleViewer
	switch ports.Role(strings.ToLower(strings.TrimSpace(req.Role))) {
	case "", ports.RoleViewer:
	case ports.RoleEditor:
		role = ports.RoleEditor
	default:
		return nil, fmt.Errorf("%w: role must be editor or viewer", ports.ErrInvalidInput)
	}
	team := strings.TrimSpace(req.TeamID)
	if team == "" {
		team = l.svcCtx.Config.Auth.DefaultTeam
	}

	u := &ports.User{
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		TeamID:   team,
		Role:     role,
	}
	if err := l.svcCtx.Users.Create(l.ctx, u, req.Password); err != nil {
		return nil, err
	}
	l.Infow("account registered", logx.Field("user", u.ID), logx.Field("team", team))
	return issue(l.svcCtx, u)
}

func issue(svcCtx *svc.ServiceContext, u *ports.User) (*types.AuthResponse, error) {
	ttl := svcCtx.Config.Auth.TokenTTL
	tok, err := svcCtx.Tokens.Sign(u.Identity(), ttl)
	if err != nil {
		return nil, err
	}
	return &types.AuthResponse{
		Token:     tok,
		ExpiresAt: time.Now().Add(ttl),
		User:      userView(u, u.Subscription.ActiveAt(time.Now())),
	}, nil
}
