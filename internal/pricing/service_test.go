package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/minhtran/veloshop-backend/internal/inventory"
	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubCatalog struct {
	products []models.Product
	findErr  error
}

func (s *stubCatalog) FindByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []models.Product
	for _, product := range s.products {
		for _, id := range ids {
			if product.ID == id {
				out = append(out, product)
			}
		}
	}
	return out, nil
}

func (s *stubCatalog) Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	return nil
}

type stubVoucherRepo struct {
	voucher *models.Voucher
}

func (s *stubVoucherRepo) FindForUser(ctx context.Context, voucherID, userID int64) (*models.Voucher, error) {
	if s.voucher == nil || s.voucher.ID != voucherID || s.voucher.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.voucher, nil
}

func (s *stubVoucherRepo) ListUsable(ctx context.Context, userID int64, now time.Time, params pagination.Params) ([]models.Voucher, int64, error) {
	return nil, 0, nil
}

func (s *stubVoucherRepo) ConsumeUse(ctx context.Context, tx *gorm.DB, voucherID int64) error {
	return nil
}

func newTestService(t *testing.T, catalog *stubCatalog, voucherRepo *stubVoucherRepo) Service {
	t.Helper()
	svc, err := NewService(catalog, voucherRepo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func price(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

func TestPriceComputesSubtotal(t *testing.T) {
	catalog := &stubCatalog{products: []models.Product{
		{ID: 1, Name: "Bar Tape", Price: price(85000), Quantity: 20},
		{ID: 2, Name: "Bottle Cage", Price: price(120000), Quantity: 5},
	}}
	svc := newTestService(t, catalog, &stubVoucherRepo{})

	quote, err := svc.Price(context.Background(), PriceInput{
		UserID: 1,
		Items: []QuoteItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	if len(quote.Items) != 2 {
		t.Fatalf("expected 2 priced items, got %d", len(quote.Items))
	}
	if !quote.Subtotal.Equal(price(290000)) {
		t.Fatalf("expected subtotal 290000, got %s", quote.Subtotal)
	}
	if !quote.Total.Equal(quote.Subtotal) || !quote.Discount.IsZero() {
		t.Fatalf("expected no discount, got discount=%s total=%s", quote.Discount, quote.Total)
	}
}

func TestPriceFiltersAndMergesItems(t *testing.T) {
	catalog := &stubCatalog{products: []models.Product{
		{ID: 1, Name: "Bar Tape", Price: price(85000), Quantity: 20},
	}}
	svc := newTestService(t, catalog, &stubVoucherRepo{})

	quote, err := svc.Price(context.Background(), PriceInput{
		UserID: 1,
		Items: []QuoteItem{
			{ProductID: 0, Quantity: 2},
			{ProductID: 1, Quantity: -1},
			{ProductID: 1, Quantity: 2},
			{ProductID: 1, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	if len(quote.Items) != 1 || quote.Items[0].Quantity != 5 {
		t.Fatalf("expected single merged line of qty 5, got %+v", quote.Items)
	}
}

func TestPriceRejectsEmptyBasket(t *testing.T) {
	svc := newTestService(t, &stubCatalog{}, &stubVoucherRepo{})

	_, err := svc.Price(context.Background(), PriceInput{
		UserID: 1,
		Items:  []QuoteItem{{ProductID: 0, Quantity: 1}, {ProductID: 3, Quantity: 0}},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestPriceUnknownProduct(t *testing.T) {
	svc := newTestService(t, &stubCatalog{}, &stubVoucherRepo{})

	_, err := svc.Price(context.Background(), PriceInput{
		UserID: 1,
		Items:  []QuoteItem{{ProductID: 99, Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestPriceAdvisoryStockCheck(t *testing.T) {
	catalog := &stubCatalog{products: []models.Product{
		{ID: 1, Name: "Bar Tape", Price: price(85000), Quantity: 1},
	}}
	svc := newTestService(t, catalog, &stubVoucherRepo{})

	_, err := svc.Price(context.Background(), PriceInput{
		UserID: 1,
		Items:  []QuoteItem{{ProductID: 1, Quantity: 2}},
	})
	if err == nil {
		t.Fatal("expected stock conflict")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeStockConflict {
		t.Fatalf("expected stock conflict code, got %v", err)
	}
}

func TestPriceAppliesPercentageVoucher(t *testing.T) {
	catalog := &stubCatalog{products: []models.Product{
		{ID: 1, Name: "Frame Pump", Price: price(200000), Quantity: 10},
	}}
	voucherRepo := &stubVoucherRepo{voucher: &models.Voucher{
		ID:            5,
		UserID:        1,
		Kind:          enums.VoucherKindPercentage,
		Value:         price(15),
		MinOrderValue: price(100000),
		RemainingUses: 2,
		ExpiresAt:     time.Now().Add(48 * time.Hour),
	}}
	svc := newTestService(t, catalog, voucherRepo)

	voucherID := int64(5)
	quote, err := svc.Price(context.Background(), PriceInput{
		UserID:    1,
		Items:     []QuoteItem{{ProductID: 1, Quantity: 1}},
		VoucherID: &voucherID,
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	if !quote.Discount.Equal(price(30000)) {
		t.Fatalf("expected discount 30000, got %s", quote.Discount)
	}
	if !quote.Total.Equal(price(170000)) {
		t.Fatalf("expected total 170000, got %s", quote.Total)
	}
}

func TestPriceCapsFixedVoucherAtSubtotal(t *testing.T) {
	catalog := &stubCatalog{products: []models.Product{
		{ID: 1, Name: "Patch Kit", Price: price(30000), Quantity: 10},
	}}
	voucherRepo := &stubVoucherRepo{voucher: &models.Voucher{
		ID:            5,
		UserID:        1,
		Kind:          enums.VoucherKindFixed,
		Value:         price(50000),
		MinOrderValue: decimal.Zero,
		RemainingUses: 1,
		ExpiresAt:     time.Now().Add(48 * time.Hour),
	}}
	svc := newTestService(t, catalog, voucherRepo)

	voucherID := int64(5)
	quote, err := svc.Price(context.Background(), PriceInput{
		UserID:    1,
		Items:     []QuoteItem{{ProductID: 1, Quantity: 1}},
		VoucherID: &voucherID,
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	if !quote.Discount.Equal(price(30000)) || !quote.Total.IsZero() {
		t.Fatalf("expected total clamped to zero, got discount=%s total=%s", quote.Discount, quote.Total)
	}
}

func TestPriceVoucherValidation(t *testing.T) {
	catalog := &stubCatalog{products: []models.Product{
		{ID: 1, Name: "Patch Kit", Price: price(30000), Quantity: 10},
	}}

	tests := []struct {
		name     string
		voucher  *models.Voucher
		wantCode pkgerrors.Code
	}{
		{
			name:     "not owned",
			voucher:  &models.Voucher{ID: 5, UserID: 2, RemainingUses: 1, ExpiresAt: time.Now().Add(time.Hour)},
			wantCode: pkgerrors.CodeNotFound,
		},
		{
			name: "expired",
			voucher: &models.Voucher{
				ID: 5, UserID: 1, Kind: enums.VoucherKindFixed, Value: price(1000),
				RemainingUses: 1, ExpiresAt: time.Now().Add(-48 * time.Hour),
			},
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name: "exhausted",
			voucher: &models.Voucher{
				ID: 5, UserID: 1, Kind: enums.VoucherKindFixed, Value: price(1000),
				RemainingUses: 0, ExpiresAt: time.Now().Add(48 * time.Hour),
			},
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name: "below minimum",
			voucher: &models.Voucher{
				ID: 5, UserID: 1, Kind: enums.VoucherKindFixed, Value: price(1000),
				MinOrderValue: price(1000000), RemainingUses: 1, ExpiresAt: time.Now().Add(48 * time.Hour),
			},
			wantCode: pkgerrors.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, catalog, &stubVoucherRepo{voucher: tc.voucher})

			voucherID := int64(5)
			_, err := svc.Price(context.Background(), PriceInput{
				UserID:    1,
				Items:     []QuoteItem{{ProductID: 1, Quantity: 1}},
				VoucherID: &voucherID,
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := pkgerrors.As(err).Code(); got != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, got)
			}
		})
	}
}
