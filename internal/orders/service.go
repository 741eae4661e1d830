package orders

import (
	"context"
	"errors"
	"time"

	"github.com/minhtran/veloshop-backend/internal/inventory"
	"github.com/minhtran/veloshop-backend/internal/notifications"
	"github.com/minhtran/veloshop-backend/internal/pricing"
	"github.com/minhtran/veloshop-backend/internal/users"
	"github.com/minhtran/veloshop-backend/internal/vouchers"
	"github.com/minhtran/veloshop-backend/pkg/db"
	"github.com/minhtran/veloshop-backend/pkg/db/models"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"github.com/minhtran/veloshop-backend/pkg/zalopay"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const refCollisionRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentGateway is the slice of the gateway client the order engine uses.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, appTransID string, orderID int64) (*zalopay.CreateIntentResult, error)
	QueryStatus(ctx context.Context, appTransID string) (*zalopay.StatusResult, error)
}

// Service owns order placement, payment reconciliation, history reads and
// fulfillment updates.
type Service interface {
	Quote(ctx context.Context, input CreateOrderInput) (*pricing.Quote, error)
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	Reconcile(ctx context.Context, ref string) (*ReconcileResult, error)
	ApplyCallback(ctx context.Context, ref string) (*ReconcileResult, error)
	List(ctx context.Context, userID int64, params pagination.Params) (*pagination.Page[OrderSummary], error)
	Get(ctx context.Context, userID, orderID int64) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, orderID int64, status enums.OrderStatus) (*OrderDetail, error)
	SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
}

type service struct {
	repo          Repository
	tx            txRunner
	pricing       pricing.Service
	inventory     inventory.Repository
	vouchers      vouchers.Repository
	users         users.Repository
	gateway       PaymentGateway
	notifications notifications.Service
	logg          *logger.Logger
	now           func() time.Time
	newRef        func(time.Time) string
}

// NewService wires order dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	pricingSvc pricing.Service,
	inventoryRepo inventory.Repository,
	voucherRepo vouchers.Repository,
	userRepo users.Repository,
	gateway PaymentGateway,
	notificationSvc notifications.Service,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if pricingSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pricing service required")
	}
	if inventoryRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if voucherRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "vouchers repository required")
	}
	if userRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	if notificationSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:          repo,
		tx:            tx,
		pricing:       pricingSvc,
		inventory:     inventoryRepo,
		vouchers:      voucherRepo,
		users:         userRepo,
		gateway:       gateway,
		notifications: notificationSvc,
		logg:          logg,
		now:           time.Now,
		newRef:        zalopay.NewAppTransID,
	}, nil
}

// Quote prices the basket without placing an order.
func (s *service) Quote(ctx context.Context, input CreateOrderInput) (*pricing.Quote, error) {
	if err := s.checkUser(ctx, input.UserID); err != nil {
		return nil, err
	}
	return s.pricing.Price(ctx, pricing.PriceInput{
		UserID:    input.UserID,
		Items:     input.Items,
		VoucherID: input.VoucherID,
	})
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if input.ShipName == "" || input.ShipPhone == "" || input.ShipAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping details required")
	}
	if err := s.checkUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	quote, err := s.pricing.Price(ctx, pricing.PriceInput{
		UserID:    input.UserID,
		Items:     input.Items,
		VoucherID: input.VoucherID,
	})
	if err != nil {
		return nil, err
	}

	// The client's displayed total must match the server's. A mismatch means
	// the client priced against stale catalog data.
	if !input.ClientTotal.Equal(quote.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total mismatch").
			WithDetails(map[string]any{"expected_total": quote.Total})
	}

	if input.PaymentMethod.Deferred() {
		return s.createDeferred(ctx, input, quote)
	}
	return s.createImmediate(ctx, input, quote)
}

// createImmediate confirms a COD order in one transaction: order rows, stock
// decrement, voucher burn and the placement notification commit together.
func (s *service) createImmediate(ctx context.Context, input CreateOrderInput, quote *pricing.Quote) (*CreateOrderResult, error) {
	order := &models.Order{
		UserID:        input.UserID,
		TotalPrice:    quote.Total,
		Status:        enums.OrderStatusPending,
		PaymentMethod: input.PaymentMethod,
		// Cash settles at the door: the payment is pending until delivery.
		PaymentStatus: enums.PaymentStatusPending,
		VoucherID:     quote.VoucherID,
		ShipName:      input.ShipName,
		ShipPhone:     input.ShipPhone,
		ShipAddress:   input.ShipAddress,
		Items:         orderItemsFromQuote(quote),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.inventory.Reserve(ctx, tx, quote.Lines()); err != nil {
			return err
		}
		if quote.VoucherID != nil {
			if err := s.vouchers.ConsumeUse(ctx, tx, *quote.VoucherID); err != nil {
				return err
			}
		}
		return s.notifications.OrderCreated(ctx, tx, input.UserID, order.ID)
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithField(ctx, "order_id", order.ID)
	s.logg.Info(ctx, "order confirmed")

	return &CreateOrderResult{
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Total:         order.TotalPrice,
	}, nil
}

// createDeferred stages a provisional order, then asks the gateway for a
// payment intent. Stock is not touched until the payment is confirmed. A
// gateway rejection or an unreachable gateway rolls the staging back so the
// client can retry cleanly.
func (s *service) createDeferred(ctx context.Context, input CreateOrderInput, quote *pricing.Quote) (*CreateOrderResult, error) {
	pending, err := s.stagePending(ctx, input, quote)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderRef(ctx, pending.AppTransID)

	intent, err := s.gateway.CreateIntent(ctx, quote.Total, pending.AppTransID, pending.ID)
	if err != nil {
		s.rollbackPending(ctx, pending.ID)
		return nil, err
	}
	if !intent.Accepted {
		s.rollbackPending(ctx, pending.ID)
		s.logg.Warn(ctx, "gateway rejected payment intent: "+intent.ReturnMessage)
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway rejected the order")
	}

	s.logg.Info(ctx, "order staged for payment")
	return &CreateOrderResult{
		AppTransID:    pending.AppTransID,
		RedirectURL:   intent.RedirectURL,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: enums.PaymentStatusWaitingPayment,
		Total:         quote.Total,
	}, nil
}

// stagePending inserts the provisional order, retrying the transaction
// reference on the unlikely unique collision. Confirmed orders keep their
// reference after promotion, so a fresh reference is checked against that
// table too before it is handed to the gateway.
func (s *service) stagePending(ctx context.Context, input CreateOrderInput, quote *pricing.Quote) (*models.PendingOrder, error) {
	for attempt := 0; attempt < refCollisionRetries; attempt++ {
		ref := s.newRef(s.now())
		if _, err := s.repo.FindOrderByAppTransID(ctx, ref); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction reference")
		}
		pending := &models.PendingOrder{
			UserID:        input.UserID,
			TotalPrice:    quote.Total,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: enums.PaymentStatusWaitingPayment,
			AppTransID:    ref,
			VoucherID:     quote.VoucherID,
			ShipName:      input.ShipName,
			ShipPhone:     input.ShipPhone,
			ShipAddress:   input.ShipAddress,
			Items:         pendingItemsFromQuote(quote),
		}
		err := s.repo.CreatePendingOrder(ctx, pending)
		if err == nil {
			return pending, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stage pending order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a transaction reference")
}

func (s *service) rollbackPending(ctx context.Context, id int64) {
	if err := s.repo.DeletePendingOrder(ctx, id); err != nil {
		// The stale-pending sweep picks up anything left behind here.
		s.logg.Error(ctx, "rollback pending order", err)
	}
}

// Reconcile drives a deferred payment to its outcome by asking the gateway's
// query API. Client polling lands here; the provisional row lock makes
// promotion single-writer, so duplicate or concurrent triggers converge on one
// order.
func (s *service) Reconcile(ctx context.Context, ref string) (*ReconcileResult, error) {
	return s.reconcile(ctx, ref, nil)
}

// ApplyCallback settles a payment from a verified gateway callback. The MAC
// check already authenticated the outcome, and the gateway only calls back on
// capture, so no status query is needed.
func (s *service) ApplyCallback(ctx context.Context, ref string) (*ReconcileResult, error) {
	return s.reconcile(ctx, ref, &zalopay.StatusResult{Paid: true, ReturnCode: 1})
}

func (s *service) reconcile(ctx context.Context, ref string, known *zalopay.StatusResult) (*ReconcileResult, error) {
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	ctx = s.logg.WithOrderRef(ctx, ref)

	// Already promoted: report paid without touching the gateway.
	if order, err := s.repo.FindOrderByAppTransID(ctx, ref); err == nil {
		return &ReconcileResult{AppTransID: ref, State: PaymentStatePaid, OrderID: &order.ID}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up confirmed order")
	}

	pending, err := s.repo.FindPendingByAppTransID(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up pending order")
	}

	status := known
	if status == nil {
		// Query outside the row lock so a slow gateway never holds it.
		status, err = s.gateway.QueryStatus(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status.Pending:
		return &ReconcileResult{AppTransID: ref, State: PaymentStatePending}, nil
	case status.Paid:
		return s.promote(ctx, ref, pending.UserID)
	default:
		s.logg.Info(ctx, "payment failed, dropping provisional order")
		if err := s.repo.DeletePendingOrder(ctx, pending.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop failed pending order")
		}
		return &ReconcileResult{AppTransID: ref, State: PaymentStateFailed}, nil
	}
}

// promote converts the provisional order into a confirmed one. The row lock
// serializes concurrent reconcilers; the loser finds the row gone and falls
// back to the confirmed order.
func (s *service) promote(ctx context.Context, ref string, userID int64) (*ReconcileResult, error) {
	var orderID int64

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		pending, err := s.repo.FindPendingForUpdate(ctx, tx, ref)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Lost the race; the winner promoted it.
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock pending order")
		}
		if len(pending.Items) == 0 {
			// A confirmed order must never exist without line items.
			return pkgerrors.New(pkgerrors.CodeInternal, "pending order has no line items")
		}

		order := orderFromPending(pending, ref)
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote order")
		}

		lines := make([]inventory.Line, 0, len(pending.Items))
		for _, item := range pending.Items {
			lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Quantity})
		}
		if err := s.inventory.Reserve(ctx, tx, lines); err != nil {
			// The buyer has paid and the shelf is empty. This needs a human:
			// surface it loudly instead of silently dropping the payment.
			if pkgerrors.As(err).Code() == pkgerrors.CodeStockConflict {
				return pkgerrors.Wrap(pkgerrors.CodeUnfulfillable, err, "paid order cannot be fulfilled")
			}
			return err
		}

		if pending.VoucherID != nil {
			if err := s.vouchers.ConsumeUse(ctx, tx, *pending.VoucherID); err != nil {
				return err
			}
		}
		if err := txRepo.DeletePendingOrder(ctx, pending.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire pending order")
		}
		if err := s.notifications.OrderCreated(ctx, tx, pending.UserID, order.ID); err != nil {
			return err
		}
		if err := s.notifications.PaymentSuccess(ctx, tx, pending.UserID, order.ID); err != nil {
			return err
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if orderID == 0 {
		// Raced with another reconciler; the confirmed order must exist now.
		order, err := s.repo.FindOrderByAppTransID(ctx, ref)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promoted order")
		}
		return &ReconcileResult{AppTransID: ref, State: PaymentStatePaid, OrderID: &order.ID}, nil
	}

	s.logg.Info(ctx, "payment confirmed, order promoted")
	return &ReconcileResult{AppTransID: ref, State: PaymentStatePaid, OrderID: &orderID}, nil
}

func (s *service) List(ctx context.Context, userID int64, params pagination.Params) (*pagination.Page[OrderSummary], error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	params = params.Normalize()
	rows, total, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	items := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, summaryFromOrder(row))
	}
	return &pagination.Page[OrderSummary]{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

func (s *service) Get(ctx context.Context, userID, orderID int64) (*OrderDetail, error) {
	order, err := s.repo.FindOrderForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return detailFromOrder(*order), nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID int64, status enums.OrderStatus) (*OrderDetail, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status.Terminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is in a terminal state")
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	// Notification delivery never fails the status change.
	if err := s.notifications.OrderStatusChanged(ctx, order.UserID, orderID, status); err != nil {
		s.logg.Error(ctx, "notify order status change", err)
	}

	order.Status = status
	return detailFromOrder(*order), nil
}

// SweepStalePending removes provisional orders the buyer abandoned. No stock
// or voucher state was touched when they were staged, so deletion is the
// whole cleanup.
func (s *service) SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	swept, err := s.repo.DeleteStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep stale pending orders")
	}
	return swept, nil
}

func (s *service) checkUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up user")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func orderItemsFromQuote(quote *pricing.Quote) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			Image:       item.Image,
		})
	}
	return items
}

func pendingItemsFromQuote(quote *pricing.Quote) []models.PendingOrderItem {
	items := make([]models.PendingOrderItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, models.PendingOrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			Image:       item.Image,
		})
	}
	return items
}

func orderFromPending(pending *models.PendingOrder, ref string) *models.Order {
	items := make([]models.OrderItem, 0, len(pending.Items))
	for _, item := range pending.Items {
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			Image:       item.Image,
		})
	}
	return &models.Order{
		UserID:        pending.UserID,
		TotalPrice:    pending.TotalPrice,
		Status:        enums.OrderStatusConfirmed,
		PaymentMethod: pending.PaymentMethod,
		PaymentStatus: enums.PaymentStatusPaid,
		AppTransID:    &ref,
		VoucherID:     pending.VoucherID,
		ShipName:      pending.ShipName,
		ShipPhone:     pending.ShipPhone,
		ShipAddress:   pending.ShipAddress,
		Items:         items,
	}
}
