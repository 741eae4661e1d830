package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minhtran/veloshop-backend/api/controllers"
	"github.com/minhtran/veloshop-backend/api/middleware"
	"github.com/minhtran/veloshop-backend/internal/notifications"
	"github.com/minhtran/veloshop-backend/internal/orders"
	"github.com/minhtran/veloshop-backend/internal/vouchers"
	"github.com/minhtran/veloshop-backend/pkg/config"
	"github.com/minhtran/veloshop-backend/pkg/logger"
)

// Deps bundles everything the HTTP surface needs. CallbackGuard and
// CallbackVerifier are satisfied by the redis and zalopay clients.
type Deps struct {
	DB               controllers.Pinger
	Redis            controllers.Pinger
	Orders           orders.Service
	Vouchers         vouchers.Service
	Notifications    notifications.Service
	CallbackVerifier controllers.CallbackVerifier
	CallbackGuard    controllers.CallbackGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/zalopay", controllers.ZaloPayCallback(deps.Orders, deps.CallbackVerifier, deps.CallbackGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.Post("/quote", controllers.QuoteOrder(deps.Orders, logg))
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/status/{ref}", controllers.OrderStatus(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
		})

		r.Get("/vouchers", controllers.ListVouchers(deps.Vouchers, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Patch("/orders/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
	})

	return r
}
