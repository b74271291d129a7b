package gormrepo

import (
	"github.com/nuwa-agi/nuwa/internal/repo/gorm/aisessions"
	"github.com/nuwa-agi/nuwa/internal/repo/gorm/payments"
	"github.com/nuwa-agi/nuwa/internal/repo/gorm/simulations"
	usersgorm "github.com/nuwa-agi/nuwa/internal/repo/gorm/users"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range []func(*gorm.DB) error{
		usersgorm.AutoMigrate,
		simulations.AutoMigrate,
		payments.AutoMigrate,
		aisessions.AutoMigrate,
	} {
		if err := m(db); err != nil {
			return err
		}
	}
	return nil
}
