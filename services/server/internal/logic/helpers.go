package logic

import (
	"context"

	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/nuwa-agi/nuwa/services/server/internal/types"
)

// caller returns the identity the auth middleware stored on ctx.
func caller(ctx context.Context) (ports.Identity, error) {
	id, ok := ports.IdentityFrom(ctx)
	if !ok || id.PrincipalID == "" {
		return ports.Identity{}, ports.ErrUnauthenticated
	}
	return id, nil
}

func userView(u *ports.User, active bool) types.UserView {
	return types.UserView{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		TeamID:   u.TeamID,
		Role:     string(u.Role),
		Subscription: types.SubscriptionView{
			Plan:       string(u.Subscription.Plan),
			Status:     string(u.Subscription.Status),
			ValidUntil: u.Subscription.ValidUntil,
			Active:     active,
		},
		CreatedAt: u.CreatedAt,
	}
}

func paymentView(p *ports.Payment) *types.PaymentView {
	return &types.PaymentView{
		ID:          p.ID,
		ProviderID:  p.ProviderPaymentID,
		CheckoutURL: p.CheckoutURL,
		Plan:        string(p.Plan),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
	}
}
