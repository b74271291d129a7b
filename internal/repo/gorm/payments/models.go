package payments

import "time"

// Payment is the DB model for one checkout attempt.
type Payment struct {
	ID                string  `gorm:"primaryKey;size:36"`
	UserID            string  `gorm:"size:36;index;not null"`
	Plan              string  `gorm:"size:32;not null"`
	Amount            float64 `gorm:"not null"`
	Currency          string  `gorm:"size:8;default:usd"`
	Status            string  `gorm:"size:16;index;default:pending"`
	ProviderPaymentID string  `gorm:"size:64;index"`
	CheckoutURL       string  `gorm:"size:512"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
