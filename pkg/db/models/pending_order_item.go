package models

import "github.com/shopspring/decimal"

// PendingOrderItem snapshots a priced line item on a staged order.
type PendingOrderItem struct {
	ID             int64           `gorm:"column:id;primaryKey;autoIncrement"`
	PendingOrderID int64           `gorm:"column:pending_order_id;not null;index"`
	ProductID      int64           `gorm:"column:product_id;not null"`
	ProductName    string          `gorm:"column:product_name;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Image          string          `gorm:"column:image"`
}
