package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{}, &models.OrderItem{},
		&models.PendingOrder{}, &models.PendingOrderItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPending(t *testing.T, db *gorm.DB, ref string, createdAt time.Time) *models.PendingOrder {
	t.Helper()
	pending := &models.PendingOrder{
		UserID:        1,
		TotalPrice:    decimal.NewFromInt(100000),
		PaymentMethod: enums.PaymentMethodZaloPay,
		PaymentStatus: enums.PaymentStatusWaitingPayment,
		AppTransID:    ref,
		ShipName:      "Minh",
		ShipPhone:     "0901234567",
		ShipAddress:   "12 Ly Thuong Kiet",
		Items: []models.PendingOrderItem{
			{ProductID: 9, ProductName: "Chain", Quantity: 1, UnitPrice: decimal.NewFromInt(100000), LineTotal: decimal.NewFromInt(100000)},
		},
	}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	if !createdAt.IsZero() {
		if err := db.Model(&models.PendingOrder{}).Where("id = ?", pending.ID).
			UpdateColumn("created_at", createdAt).Error; err != nil {
			t.Fatalf("backdate pending: %v", err)
		}
	}
	return pending
}

func TestPendingOrderUniqueRef(t *testing.T) {
	t.Parallel()

	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedPending(t, db, "250901_dupe", time.Time{})
	err := repo.CreatePendingOrder(ctx, &models.PendingOrder{
		UserID:        2,
		TotalPrice:    decimal.NewFromInt(5000),
		PaymentMethod: enums.PaymentMethodZaloPay,
		PaymentStatus: enums.PaymentStatusWaitingPayment,
		AppTransID:    "250901_dupe",
		ShipName:      "A",
		ShipPhone:     "1",
		ShipAddress:   "B",
	})
	if err == nil {
		t.Fatal("expected unique violation on duplicate ref")
	}
}

func TestDeletePendingOrderRemovesItems(t *testing.T) {
	t.Parallel()

	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := seedPending(t, db, "250901_gone", time.Time{})
	if err := repo.DeletePendingOrder(ctx, pending.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}

	var items int64
	if err := db.Model(&models.PendingOrderItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 0 {
		t.Fatalf("expected items deleted with the order, found %d", items)
	}
}

func TestFindPendingForUpdateLoadsItems(t *testing.T) {
	t.Parallel()

	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedPending(t, db, "250901_lock", time.Time{})

	err := db.Transaction(func(tx *gorm.DB) error {
		pending, err := repo.FindPendingForUpdate(ctx, tx, "250901_lock")
		if err != nil {
			return err
		}
		if len(pending.Items) != 1 {
			t.Fatalf("expected items loaded under lock, got %d", len(pending.Items))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("locked read: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.FindPendingForUpdate(ctx, tx, "250901_absent")
		return err
	})
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestDeleteStalePendingHonorsCutoffAndLimit(t *testing.T) {
	t.Parallel()

	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	seedPending(t, db, "250901_old1", now.Add(-72*time.Hour))
	seedPending(t, db, "250901_old2", now.Add(-48*time.Hour))
	seedPending(t, db, "250901_new", now)

	swept, err := repo.DeleteStalePending(ctx, now.Add(-24*time.Hour), 1)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected limit to cap sweep at 1, got %d", swept)
	}

	swept, err = repo.DeleteStalePending(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected remaining stale row swept, got %d", swept)
	}

	var refs []string
	if err := db.Model(&models.PendingOrder{}).Pluck("app_trans_id", &refs).Error; err != nil {
		t.Fatalf("list refs: %v", err)
	}
	if len(refs) != 1 || refs[0] != "250901_new" {
		t.Fatalf("expected only the fresh row, got %v", refs)
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	t.Parallel()

	db := newRepoTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		order := &models.Order{
			UserID:        1,
			TotalPrice:    decimal.NewFromInt(int64(1000 * (i + 1))),
			Status:        enums.OrderStatusPending,
			PaymentMethod: enums.PaymentMethodCOD,
			PaymentStatus: enums.PaymentStatusUnpaid,
			ShipName:      "Minh",
			ShipPhone:     "0901234567",
			ShipAddress:   "12 Ly Thuong Kiet",
			Items: []models.OrderItem{
				{ProductID: int64(i + 1), ProductName: "Part", Quantity: 1, UnitPrice: decimal.NewFromInt(1000), LineTotal: decimal.NewFromInt(1000)},
			},
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	rows, total, err := repo.ListForUser(ctx, 1, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(rows) != 2 {
		t.Fatalf("unexpected listing: total=%d rows=%d", total, len(rows))
	}
	if !rows[0].TotalPrice.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected newest first, got %s", rows[0].TotalPrice)
	}
	if len(rows[0].Items) != 1 {
		t.Fatal("expected items preloaded")
	}
}
