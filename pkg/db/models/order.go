package models

import (
	"time"

	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Order is a confirmed, fulfillment-eligible order with reserved stock.
// Status tracks fulfillment and is orthogonal to PaymentStatus.
type Order struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	UserID        int64               `gorm:"column:user_id;not null;index"`
	TotalPrice    decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	AppTransID    *string             `gorm:"column:app_trans_id;uniqueIndex"`
	VoucherID     *int64              `gorm:"column:voucher_id"`
	ShipName      string              `gorm:"column:ship_name;not null"`
	ShipPhone     string              `gorm:"column:ship_phone;not null"`
	ShipAddress   string              `gorm:"column:ship_address;not null"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
