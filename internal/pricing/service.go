package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minhtran/veloshop-backend/internal/inventory"
	"github.com/minhtran/veloshop-backend/internal/vouchers"
	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// QuoteItem is a client-requested line before pricing.
type QuoteItem struct {
	ProductID int64
	Quantity  int
}

// PricedItem is a server-priced line carrying the catalog snapshot the order
// tables persist.
type PricedItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Image       string          `json:"image,omitempty"`
}

// Quote is the authoritative server-side price for a basket.
type Quote struct {
	Items     []PricedItem    `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	VoucherID *int64          `json:"voucher_id,omitempty"`
}

// Lines converts the quote into ledger decrements.
func (q *Quote) Lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(q.Items))
	for _, item := range q.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Quantity})
	}
	return lines
}

// PriceInput carries the basket to price.
type PriceInput struct {
	UserID    int64
	Items     []QuoteItem
	VoucherID *int64
}

// Service computes prices from the catalog. Client-supplied amounts are never
// trusted; the quote is the only total the order engine persists.
type Service interface {
	Price(ctx context.Context, input PriceInput) (*Quote, error)
}

type service struct {
	catalog  inventory.Repository
	vouchers vouchers.Repository
	now      func() time.Time
}

// NewService wires pricing dependencies.
func NewService(catalog inventory.Repository, voucherRepo vouchers.Repository) (Service, error) {
	if catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if voucherRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "vouchers repository required")
	}
	return &service{catalog: catalog, vouchers: voucherRepo, now: time.Now}, nil
}

func (s *service) Price(ctx context.Context, input PriceInput) (*Quote, error) {
	items := mergeItems(input.Items)
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no purchasable items")
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[int64]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	quote := &Quote{
		Items:    make([]PricedItem, 0, len(items)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
	}
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %d not found", item.ProductID))
		}
		// Advisory read check; the conditional decrement at confirmation is
		// the authoritative guard.
		if product.Quantity < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock").
				WithDetails(map[string]any{"product_id": product.ID, "available": product.Quantity})
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		quote.Items = append(quote.Items, PricedItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   lineTotal,
			Image:       product.Image,
		})
		quote.Subtotal = quote.Subtotal.Add(lineTotal)
	}

	if input.VoucherID != nil {
		discount, err := s.voucherDiscount(ctx, input.UserID, *input.VoucherID, quote.Subtotal)
		if err != nil {
			return nil, err
		}
		quote.Discount = discount
		quote.VoucherID = input.VoucherID
	}

	quote.Total = quote.Subtotal.Sub(quote.Discount).Round(2)
	return quote, nil
}

func (s *service) voucherDiscount(ctx context.Context, userID, voucherID int64, subtotal decimal.Decimal) (decimal.Decimal, error) {
	voucher, err := s.vouchers.FindForUser(ctx, voucherID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	if !voucher.Usable(s.now().UTC()) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "voucher expired or exhausted")
	}
	if subtotal.LessThan(voucher.MinOrderValue) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order total below voucher minimum").
			WithDetails(map[string]any{"min_order_value": voucher.MinOrderValue})
	}

	var discount decimal.Decimal
	switch voucher.Kind {
	case enums.VoucherKindPercentage:
		discount = subtotal.Mul(voucher.Value).Div(oneHundred).Round(2)
	case enums.VoucherKindFixed:
		discount = voucher.Value.Round(2)
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("unknown voucher kind %q", voucher.Kind))
	}

	// A discount never takes the total below zero.
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount, nil
}

// mergeItems drops unpriceable lines and folds duplicate products so the
// stock decrement sees one line per product.
func mergeItems(items []QuoteItem) []QuoteItem {
	merged := make([]QuoteItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			continue
		}
		if at, ok := index[item.ProductID]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
