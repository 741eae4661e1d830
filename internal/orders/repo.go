package orders

import (
	"context"
	"time"

	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence for confirmed and provisional orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreatePendingOrder(ctx context.Context, pending *models.PendingOrder) error
	DeletePendingOrder(ctx context.Context, id int64) error
	FindPendingByAppTransID(ctx context.Context, ref string) (*models.PendingOrder, error)
	FindPendingForUpdate(ctx context.Context, tx *gorm.DB, ref string) (*models.PendingOrder, error)
	FindOrderByAppTransID(ctx context.Context, ref string) (*models.Order, error)
	FindOrderByID(ctx context.Context, id int64) (*models.Order, error)
	FindOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error)
	ListForUser(ctx context.Context, userID int64, params pagination.Params) ([]models.Order, int64, error)
	UpdateOrderStatus(ctx context.Context, id int64, status enums.OrderStatus) (bool, error)
	DeleteStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreatePendingOrder(ctx context.Context, pending *models.PendingOrder) error {
	return r.db.WithContext(ctx).Create(pending).Error
}

// DeletePendingOrder removes a provisional order and its items atomically.
// The header goes first: the row lock its delete takes serializes against a
// promotion holding FOR UPDATE on the same row, so neither side can observe a
// header without items.
func (r *repository) DeletePendingOrder(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).
			Delete(&models.PendingOrder{}).Error
		if err != nil {
			return err
		}
		return tx.Where("pending_order_id = ?", id).
			Delete(&models.PendingOrderItem{}).Error
	})
}

func (r *repository) FindPendingByAppTransID(ctx context.Context, ref string) (*models.PendingOrder, error) {
	var pending models.PendingOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("app_trans_id = ?", ref).
		First(&pending).Error
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

// FindPendingForUpdate loads the provisional row under a row lock so only one
// reconciler can promote it. Items are loaded separately; FOR UPDATE does not
// compose with a preload join.
func (r *repository) FindPendingForUpdate(ctx context.Context, tx *gorm.DB, ref string) (*models.PendingOrder, error) {
	query := tx.WithContext(ctx)
	// SQLite has no row locks; its single-writer transaction serializes instead.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	var pending models.PendingOrder
	err := query.
		Where("app_trans_id = ?", ref).
		First(&pending).Error
	if err != nil {
		return nil, err
	}
	err = tx.WithContext(ctx).
		Where("pending_order_id = ?", pending.ID).
		Order("id ASC").
		Find(&pending.Items).Error
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

func (r *repository) FindOrderByAppTransID(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("app_trans_id = ?", ref).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int64, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()
	base := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := base.
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, id int64, status enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteStalePending drops abandoned provisional orders older than the
// cutoff. Only unresolved rows are eligible; anything a reconciler is
// mid-flight on is either promoted or already deleted by the time the lock
// releases.
func (r *repository) DeleteStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var swept int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		query := tx.
			Model(&models.PendingOrder{}).
			Where("payment_status = ? AND created_at < ?", enums.PaymentStatusWaitingPayment, cutoff).
			Order("created_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		// Header rows first, same reasoning as DeletePendingOrder: a row a
		// reconciler holds under FOR UPDATE blocks the sweep until that
		// promotion commits, at which point the row is already gone.
		result := tx.
			Where("id IN ?", ids).
			Delete(&models.PendingOrder{})
		if result.Error != nil {
			return result.Error
		}
		swept = result.RowsAffected
		return tx.
			Where("pending_order_id IN ?", ids).
			Delete(&models.PendingOrderItem{}).Error
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}
