package usersgorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	dom "github.com/nuwa-agi/nuwa/internal/ports"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Repo struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&UserAccount{}) }
func New(db *gorm.DB) *Repo         { return &Repo{db: db} }

var _ dom.UsersRepository = (*Repo)(nil)

// Create stores u with a bcrypt hash of password and assigns its id.
func (r *Repo) Create(ctx context.Context, u *dom.User, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: empty password", dom.ErrInvalidInput)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m := &UserAccount{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		PasswordHash:       string(h),
		TeamID:             u.TeamID,
		Role:               string(u.Role),
		Plan:               string(u.Subscription.Plan),
		SubscriptionStatus: string(u.Subscription.Status),
		ValidUntil:         u.Subscription.ValidUntil,
	}
	if m.Plan == "" {
		m.Plan = string(dom.PlanBasic)
	}
	if m.SubscriptionStatus == "" {
		m.SubscriptionStatus = string(dom.SubscriptionInactive)
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&UserAccount{}).Where("username = ? OR email = ?", m.Username, m.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: username or email already registered", dom.ErrInvalidInput)
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	u.CreatedAt = m.CreatedAt
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*dom.User, error) {
	var m UserAccount
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, dom.ErrNotFound)
		}
		return nil, err
	}
	return toDomain(&m), nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (*UserAccount, error) {
	var ur UserAccount
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&ur).Error; err != nil {
		return nil, err
	}
	return &ur, nil
}

func (r *Repo) Verify(ctx context.Context, username, plain string) (*dom.User, error) {
	u, err := r.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return toDomain(u), nil
}

func toDomain(m *UserAccount) *dom.User {
	return &dom.User{
		ID:       m.ID,
		Username: m.Username,
		Email:    m.Email,
		TeamID:   m.TeamID,
		Role:     dom.Role(m.Role),
		Subscription: dom.Subscription{
			Plan:       dom.Plan(m.Plan),
			Status:     dom.SubscriptionStatus(m.SubscriptionStatus),
			ValidUntil: m.ValidUntil,
		},
		CreatedAt: m.CreatedAt,
	}
}
