package usersgorm

import "time"

// UserAccount is the DB model for a registered principal.
type UserAccount struct {
	ID                 string `gorm:"primaryKey;size:36"`
	Username           string `gorm:"size:64;uniqueIndex;not null"`
	Email              string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash       string `gorm:"size:255"`
	TeamID             string `gorm:"size:64;index"`
	Role               string `gorm:"size:16;default:viewer"`
	Plan               string `gorm:"size:32;default:basic"`
	SubscriptionStatus string `gorm:"size:16;default:inactive"`
	ValidUntil         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (UserAccount) TableName() string { return "users" }
