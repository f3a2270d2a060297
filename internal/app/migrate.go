package app

import (
	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

// AutoMigrate 执行数据库自动迁移
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.CustodialWallet{},
		&model.WalletAuditLog{},
		&model.SyncCursor{},
		&model.Order{},
		&model.OrderItem{},
		&model.Booking{},
		&model.Vendor{},
		&model.UserProfile{},
	)
}
