package models

import (
	"time"

	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Voucher is a per-user discount grant. The engine applies vouchers during
// pricing; administration of the records lives elsewhere.
type Voucher struct {
	ID            int64             `gorm:"column:voucher_id;primaryKey;autoIncrement"`
	UserID        int64             `gorm:"column:user_id;not null;index"`
	Name          string            `gorm:"column:name;not null"`
	Kind          enums.VoucherKind `gorm:"column:kind;not null"`
	Value         decimal.Decimal   `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderValue decimal.Decimal   `gorm:"column:min_order_value;type:numeric(12,2);not null;default:0"`
	RemainingUses int               `gorm:"column:remaining_uses;not null;default:0"`
	ExpiresAt     time.Time         `gorm:"column:expires_at;not null"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// Usable reports whether the voucher still has uses left and is unexpired at
// the supplied instant.
func (v Voucher) Usable(now time.Time) bool {
	if v.RemainingUses <= 0 {
		return false
	}
	// Expiry is date-granular: a voucher expiring today is still valid.
	return !v.ExpiresAt.Before(now.Truncate(24 * time.Hour))
}
