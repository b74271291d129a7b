package ports

import (
	"context"
	"time"
)

type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanTeam       Plan = "team"
	PlanEnterprise Plan = "enterprise"
	PlanGlobal     Plan = "global"
	PlanUnlimited  Plan = "unlimited"
)

type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	Plan       Plan               `json:"plan"`
	Status     SubscriptionStatus `json:"status"`
	ValidUntil *time.Time         `json:"validUntil,omitempty"`
}

// ActiveAt reports whether the subscription grants premium access at t.
func (s Subscription) ActiveAt(t time.Time) bool {
	return s.Status == SubscriptionActive && s.ValidUntil != nil && t.Before(*s.ValidUntil)
}

type User struct {
	ID           string
	Username     string
	Email        string
	TeamID       string
	Role         Role
	Subscription Subscription
	CreatedAt    time.Time
}

// Identity projects the account onto the credential payload.
func (u *User) Identity() Identity {
	return Identity{PrincipalID: u.ID, Handle: u.Username, TeamID: u.TeamID, Role: u.Role}
}

// UsersRepository stores accounts. Lookups return ErrNotFound for unknown users.
type UsersRepository interface {
	Create(ctx context.Context, u *User, password string) error
	Get(ctx context.Context, id string) (*User, error)
	Verify(ctx context.Context, username, password string) (*User, error)
}
