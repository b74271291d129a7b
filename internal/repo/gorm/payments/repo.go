package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	dom "github.com/nuwa-agi/nuwa/internal/ports"
	usersgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/users"
	"gorm.io/gorm"
)

// Repo provides GORM-based persistence for payments.
type Repo struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Payment{}) }
func NewRepo(db *gorm.DB) *Repo     { return &Repo{db: db} }

var _ dom.PaymentsRepository = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, p *dom.Payment) error {
	m := fromDomain(p)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*dom.Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repo) GetByProviderID(ctx context.Context, providerID string) (*dom.Payment, error) {
	if providerID == "" {
		return nil, fmt.Errorf("payment: %w", dom.ErrNotFound)
	}
	return r.first(ctx, "provider_payment_id = ?", providerID)
}

func (r *Repo) first(ctx context.Context, where string, arg string) (*dom.Payment, error) {
	var m Payment
	if err := r.db.WithContext(ctx).Where(where, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", arg, dom.ErrNotFound)
		}
		return nil, err
	}
	return toDomain(&m), nil
}

func (r *Repo) SetStatus(ctx context.Context, id string, status dom.PaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment %s: %w", id, dom.ErrNotFound)
	}
	return nil
}

func (r *Repo) AttachCheckout(ctx context.Context, id, providerID, checkoutURL string) error {
	res := r.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", id).Updates(map[string]any{
		"provider_payment_id": providerID,
		"checkout_url":        checkoutURL,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment %s: %w", id, dom.ErrNotFound)
	}
	return nil
}

// Complete marks the payment completed and activates the owner's subscription
// in one transaction. A payment that is already completed is left untouched.
func (r *Repo) Complete(ctx context.Context, id string, validUntil time.Time) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Payment
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %s: %w", id, dom.ErrNotFound)
			}
			return err
		}
		if p.Status == string(dom.PaymentCompleted) {
			return nil
		}
		if err := tx.Model(&p).Update("status", string(dom.PaymentCompleted)).Error; err != nil {
			return err
		}
		res := tx.Model(&usersgorm.UserAccount{}).Where("id = ?", p.UserID).Updates(map[string]any{
			"plan":                p.Plan,
			"subscription_status": string(dom.SubscriptionActive),
			"valid_until":         validUntil,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s: %w", p.UserID, dom.ErrNotFound)
		}
		changed = true
		return nil
	})
	return changed, err
}

func fromDomain(p *dom.Payment) *Payment {
	return &Payment{
		ID:                p.ID,
		UserID:            p.UserID,
		Plan:              string(p.Plan),
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            string(p.Status),
		ProviderPaymentID: p.ProviderPaymentID,
		CheckoutURL:       p.CheckoutURL,
	}
}

func toDomain(m *Payment) *dom.Payment {
	return &dom.Payment{
		ID:                m.ID,
		UserID:            m.UserID,
		Plan:              dom.Plan(m.Plan),
		Amount:            m.Amount,
		Currency:          m.Currency,
		Status:            dom.PaymentStatus(m.Status),
		ProviderPaymentID: m.ProviderPaymentID,
		CheckoutURL:       m.CheckoutURL,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
