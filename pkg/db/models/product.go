package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entity. The engine reads pricing fields and mutates
// Quantity only through the inventory ledger's conditional decrement.
type Product struct {
	ID        int64           `gorm:"column:product_id;primaryKey;autoIncrement"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null;default:0"`
	Image     string          `gorm:"column:image"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
