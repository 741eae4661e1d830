package vouchers

import (
	"context"
	"time"

	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

// VoucherView is the API shape for a voucher grant.
type VoucherView struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Kind          enums.VoucherKind `json:"kind"`
	Value         decimal.Decimal   `json:"value"`
	MinOrderValue decimal.Decimal   `json:"min_order_value"`
	RemainingUses int               `json:"remaining_uses"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

// Service lists the requester's usable vouchers.
type Service interface {
	List(ctx context.Context, userID int64, params pagination.Params) (*pagination.Page[VoucherView], error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires voucher dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "vouchers repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, userID int64, params pagination.Params) (*pagination.Page[VoucherView], error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	params = params.Normalize()
	rows, total, err := s.repo.ListUsable(ctx, userID, s.now().UTC(), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}

	items := make([]VoucherView, 0, len(rows))
	for _, row := range rows {
		items = append(items, viewFromModel(row))
	}

	return &pagination.Page[VoucherView]{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func viewFromModel(v models.Voucher) VoucherView {
	return VoucherView{
		ID:            v.ID,
		Name:          v.Name,
		Kind:          v.Kind,
		Value:         v.Value,
		MinOrderValue: v.MinOrderValue,
		RemainingUses: v.RemainingUses,
		ExpiresAt:     v.ExpiresAt,
	}
}
