package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/minhtran/veloshop-backend/api/routes"
	"github.com/minhtran/veloshop-backend/internal/inventory"
	"github.com/minhtran/veloshop-backend/internal/notifications"
	"github.com/minhtran/veloshop-backend/internal/orders"
	"github.com/minhtran/veloshop-backend/internal/pricing"
	"github.com/minhtran/veloshop-backend/internal/users"
	"github.com/minhtran/veloshop-backend/internal/vouchers"
	"github.com/minhtran/veloshop-backend/pkg/config"
	"github.com/minhtran/veloshop-backend/pkg/db"
	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/minhtran/veloshop-backend/pkg/migrate"
	"github.com/minhtran/veloshop-backend/pkg/redis"
	"github.com/minhtran/veloshop-backend/pkg/zalopay"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := zalopay.NewClient(cfg.ZaloPay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create zalopay client", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	voucherRepo := vouchers.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())

	pricingService, err := pricing.NewService(inventoryRepo, voucherRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	vouchersService, err := vouchers.NewService(voucherRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create vouchers service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		pricingService,
		inventoryRepo,
		voucherRepo,
		userRepo,
		gatewayClient,
		notificationsService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:               dbClient,
			Redis:            redisClient,
			Orders:           ordersService,
			Vouchers:         vouchersService,
			Notifications:    notificationsService,
			CallbackVerifier: gatewayClient,
			CallbackGuard:    redisClient,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
