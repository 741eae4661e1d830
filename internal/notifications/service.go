package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Service defines notification write and list/read operations. Order events
// write notifications inside the order transaction so the user never sees a
// notification for an order that rolled back.
type Service interface {
	OrderCreated(ctx context.Context, tx *gorm.DB, userID, orderID int64) error
	PaymentSuccess(ctx context.Context, tx *gorm.DB, userID, orderID int64) error
	OrderStatusChanged(ctx context.Context, userID, orderID int64, status enums.OrderStatus) error
	List(ctx context.Context, userID int64, params pagination.Params) (*pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) OrderCreated(ctx context.Context, tx *gorm.DB, userID, orderID int64) error {
	return s.insert(ctx, tx, userID, orderID, enums.NotificationOrderCreated,
		fmt.Sprintf("Your order #%d has been placed.", orderID))
}

func (s *service) PaymentSuccess(ctx context.Context, tx *gorm.DB, userID, orderID int64) error {
	return s.insert(ctx, tx, userID, orderID, enums.NotificationPaymentSuccess,
		fmt.Sprintf("Payment received for order #%d.", orderID))
}

func (s *service) OrderStatusChanged(ctx context.Context, userID, orderID int64, status enums.OrderStatus) error {
	return s.insert(ctx, nil, userID, orderID, enums.NotificationOrderUpdate,
		fmt.Sprintf("Order #%d is now %s.", orderID, status))
}

func (s *service) insert(ctx context.Context, tx *gorm.DB, userID, orderID int64, kind enums.NotificationType, message string) error {
	notification := &models.Notification{
		UserID:    userID,
		Type:      kind,
		Message:   message,
		RelatedID: &orderID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID int64, params pagination.Params) (*pagination.Page[models.Notification], error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	return &pagination.Page[models.Notification]{
		Items:  rows,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	if userID <= 0 || notificationID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and notification id required")
	}

	found, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
