package inventory

import (
	"context"
	"fmt"

	"github.com/minhtran/veloshop-backend/pkg/db/models"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"gorm.io/gorm"
)

// Line is one decrement against the product ledger.
type Line struct {
	ProductID int64
	Qty       int
}

// Repository exposes catalog reads and the stock decrement used when an order
// is confirmed.
type Repository interface {
	FindByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Reserve decrements stock for every line inside the caller's transaction.
// The guard lives in the WHERE clause, so a concurrent order that drained the
// shelf surfaces as zero rows affected rather than a negative quantity. The
// first failing line aborts the batch; the caller's rollback undoes the rest.
func (r *repository) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stock reserve requires a transaction")
	}

	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid quantity %d for product %d", line.Qty, line.ProductID))
		}

		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("product_id = ? AND quantity >= ?", line.ProductID, line.Qty).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", line.Qty))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "decrement stock")
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
	}
	return nil
}
