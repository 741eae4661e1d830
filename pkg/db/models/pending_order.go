package models

import (
	"time"

	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// PendingOrder stages a deferred-payment order while the gateway outcome is
// outstanding. Rows are transient: promotion or abandonment deletes them.
type PendingOrder struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	UserID        int64               `gorm:"column:user_id;not null;index"`
	TotalPrice    decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	AppTransID    string              `gorm:"column:app_trans_id;uniqueIndex;not null"`
	VoucherID     *int64              `gorm:"column:voucher_id"`
	ShipName      string              `gorm:"column:ship_name;not null"`
	ShipPhone     string              `gorm:"column:ship_phone;not null"`
	ShipAddress   string              `gorm:"column:ship_address;not null"`
	Items         []PendingOrderItem  `gorm:"foreignKey:PendingOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
