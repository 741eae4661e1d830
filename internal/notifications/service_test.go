package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate notifications: %v", err)
	}
	return db
}

func newTestSvc(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestOrderCreatedWritesInsideTx(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestSvc(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.OrderCreated(ctx, tx, 7, 42)
	})
	if err != nil {
		t.Fatalf("order created: %v", err)
	}

	var row models.Notification
	if err := db.First(&row, "user_id = ?", 7).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if row.Type != enums.NotificationOrderCreated {
		t.Fatalf("unexpected type %s", row.Type)
	}
	if row.RelatedID == nil || *row.RelatedID != 42 {
		t.Fatalf("expected related id 42, got %+v", row.RelatedID)
	}
}

func TestOrderCreatedRollsBackWithTx(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestSvc(t, db)

	sentinel := pkgerrors.New(pkgerrors.CodeInternal, "boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.OrderCreated(ctx, tx, 7, 42); err != nil {
			return err
		}
		return sentinel
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}

	var count int64
	if err := db.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to drop notification, found %d", count)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestSvc(t, db)

	for i := int64(1); i <= 3; i++ {
		if err := svc.OrderStatusChanged(ctx, 7, i, enums.OrderStatusShipping); err != nil {
			t.Fatalf("seed notification: %v", err)
		}
	}
	if err := svc.OrderStatusChanged(ctx, 8, 99, enums.OrderStatusShipping); err != nil {
		t.Fatalf("seed other user: %v", err)
	}

	page, err := svc.List(ctx, 7, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d items=%d", page.Total, len(page.Items))
	}
	if page.Items[0].RelatedID == nil || *page.Items[0].RelatedID != 3 {
		t.Fatalf("expected newest first, got %+v", page.Items[0].RelatedID)
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestSvc(t, db)

	if err := svc.OrderStatusChanged(ctx, 7, 1, enums.OrderStatusPacking); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	var row models.Notification
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}

	if err := svc.MarkRead(ctx, 7, row.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// Marking read twice is a no-op, not an error.
	if err := svc.MarkRead(ctx, 7, row.ID); err != nil {
		t.Fatalf("mark read twice: %v", err)
	}

	if err := db.First(&row, row.ID).Error; err != nil {
		t.Fatalf("reload notification: %v", err)
	}
	if row.ReadAt == nil {
		t.Fatal("expected read_at to be set")
	}

	err := svc.MarkRead(ctx, 8, row.ID)
	if err == nil {
		t.Fatal("expected not found for other user")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}
