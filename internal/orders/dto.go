package orders

import (
	"time"

	"github.com/minhtran/veloshop-backend/internal/pricing"
	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// CreateOrderInput carries a placement request. ClientTotal is the amount the
// client displayed at checkout; the server recomputes and rejects mismatches.
type CreateOrderInput struct {
	UserID        int64
	Items         []pricing.QuoteItem
	VoucherID     *int64
	PaymentMethod enums.PaymentMethod
	ClientTotal   decimal.Decimal
	ShipName      string
	ShipPhone     string
	ShipAddress   string
}

// CreateOrderResult reports the placement outcome. COD orders confirm
// immediately; deferred payments return the gateway redirect and stay
// provisional until reconciliation.
type CreateOrderResult struct {
	OrderID       int64               `json:"order_id,omitempty"`
	AppTransID    string              `json:"app_trans_id,omitempty"`
	RedirectURL   string              `json:"redirect_url,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal     `json:"total"`
}

// OrderSummary is a history listing row.
type OrderSummary struct {
	ID            int64               `json:"id"`
	Total         decimal.Decimal     `json:"total"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	ItemCount     int                 `json:"item_count"`
	Thumbnail     string              `json:"thumbnail,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderDetail is the full order view with line items.
type OrderDetail struct {
	OrderSummary
	ShipName    string             `json:"ship_name"`
	ShipPhone   string             `json:"ship_phone"`
	ShipAddress string             `json:"ship_address"`
	Items       []models.OrderItem `json:"items"`
}

// Payment states a reconciliation can land on.
const (
	PaymentStatePaid    = "paid"
	PaymentStatePending = "pending"
	PaymentStateFailed  = "failed"
)

// ReconcileResult reports where a deferred payment ended up.
type ReconcileResult struct {
	AppTransID string `json:"app_trans_id"`
	State      string `json:"state"`
	OrderID    *int64 `json:"order_id,omitempty"`
}

func summaryFromOrder(order models.Order) OrderSummary {
	summary := OrderSummary{
		ID:            order.ID,
		Total:         order.TotalPrice,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		ItemCount:     len(order.Items),
		CreatedAt:     order.CreatedAt,
	}
	if len(order.Items) > 0 {
		summary.Thumbnail = order.Items[0].Image
	}
	return summary
}

func detailFromOrder(order models.Order) *OrderDetail {
	return &OrderDetail{
		OrderSummary: summaryFromOrder(order),
		ShipName:     order.ShipName,
		ShipPhone:    order.ShipPhone,
		ShipAddress:  order.ShipAddress,
		Items:        order.Items,
	}
}
