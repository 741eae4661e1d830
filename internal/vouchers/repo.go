package vouchers

import (
	"context"
	"time"

	"github.com/minhtran/veloshop-backend/pkg/db/models"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes voucher reads and the use-count decrement applied when an
// order consuming the voucher is confirmed.
type Repository interface {
	FindForUser(ctx context.Context, voucherID, userID int64) (*models.Voucher, error)
	ListUsable(ctx context.Context, userID int64, now time.Time, params pagination.Params) ([]models.Voucher, int64, error)
	ConsumeUse(ctx context.Context, tx *gorm.DB, voucherID int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vouchers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindForUser(ctx context.Context, voucherID, userID int64) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("voucher_id = ? AND user_id = ?", voucherID, userID).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) ListUsable(ctx context.Context, userID int64, now time.Time, params pagination.Params) ([]models.Voucher, int64, error) {
	params = params.Normalize()

	// Expiry is date-granular, matching models.Voucher.Usable.
	cutoff := now.Truncate(24 * time.Hour)
	base := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("user_id = ? AND remaining_uses > 0 AND expires_at >= ?", userID, cutoff)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Voucher
	err := base.
		Order("expires_at ASC, voucher_id ASC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ConsumeUse burns one use inside the caller's transaction. The remaining-uses
// guard lives in the WHERE clause so a concurrent consumer surfaces as zero
// rows affected.
func (r *repository) ConsumeUse(ctx context.Context, tx *gorm.DB, voucherID int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "voucher consume requires a transaction")
	}

	result := tx.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("voucher_id = ? AND remaining_uses > 0", voucherID).
		UpdateColumn("remaining_uses", gorm.Expr("remaining_uses - 1"))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "consume voucher use")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "voucher has no remaining uses")
	}
	return nil
}
