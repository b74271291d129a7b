package ports

import (
	"context"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID                string
	UserID            string
	Plan              Plan
	Amount            float64
	Currency          string
	Status            PaymentStatus
	ProviderPaymentID string
	CheckoutURL       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentsRepository stores payment attempts.
type PaymentsRepository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByProviderID(ctx context.Context, providerID string) (*Payment, error)
	SetStatus(ctx context.Context, id string, status PaymentStatus) error
	// AttachCheckout stores the gateway's reference for a pending payment.
	AttachCheckout(ctx context.Context, id, providerID, checkoutURL string) error
	// Complete marks the payment completed and activates the owner's
	// subscription for plan until validUntil, atomically. It reports false
	// when the payment was already completed.
	Complete(ctx context.Context, id string, validUntil time.Time) (bool, error)
}
