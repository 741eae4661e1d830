package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/minhtran/veloshop-backend/api/middleware"
	"github.com/minhtran/veloshop-backend/api/responses"
	"github.com/minhtran/veloshop-backend/api/validators"
	"github.com/minhtran/veloshop-backend/internal/orders"
	"github.com/minhtran/veloshop-backend/internal/pricing"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

type orderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items" validate:"required,min=1"`
	VoucherID     *int64             `json:"voucher_id"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	Total         decimal.Decimal    `json:"total"`
	ShipName      string             `json:"ship_name" validate:"required"`
	ShipPhone     string             `json:"ship_phone" validate:"required"`
	ShipAddress   string             `json:"ship_address" validate:"required"`
}

type quoteRequest struct {
	Items     []orderItemRequest `json:"items" validate:"required,min=1"`
	VoucherID *int64             `json:"voucher_id"`
}

func quoteItems(items []orderItemRequest) []pricing.QuoteItem {
	out := make([]pricing.QuoteItem, 0, len(items))
	for _, item := range items {
		out = append(out, pricing.QuoteItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// CreateOrder places an order for the authenticated user.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := svc.CreateOrder(r.Context(), orders.CreateOrderInput{
			UserID:        middleware.UserIDFromContext(r.Context()),
			Items:         quoteItems(req.Items),
			VoucherID:     req.VoucherID,
			PaymentMethod: method,
			ClientTotal:   req.Total,
			ShipName:      strings.TrimSpace(req.ShipName),
			ShipPhone:     strings.TrimSpace(req.ShipPhone),
			ShipAddress:   strings.TrimSpace(req.ShipAddress),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// QuoteOrder prices a basket without placing it.
func QuoteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), orders.CreateOrderInput{
			UserID:    middleware.UserIDFromContext(r.Context()),
			Items:     quoteItems(req.Items),
			VoucherID: req.VoucherID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// ListOrders returns the authenticated user's order history, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// OrderDetail returns one of the authenticated user's orders with line items.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// OrderStatus reports a deferred payment's state, reconciling against the
// gateway when it is still unresolved.
func OrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimSpace(chi.URLParam(r, "ref"))
		if ref == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required"))
			return
		}

		result, err := svc.Reconcile(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
			WithDetails(map[string]any{"param": name})
	}
	return id, nil
}
