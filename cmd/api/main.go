package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/config"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/db"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/handlers"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/lock"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/jobs"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/payment"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/settings"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/services/wallet"
)

func setupLogging(cfg config.Config) {
	if cfg.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = realtime.NewRedis(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, continuing without it")
			_ = rdb.Close()
			rdb = nil
		} else {
			log.WithField("addr", cfg.RedisAddr).Info("redis connected")
		}
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.LockBackend == "redis" {
		if rdb != nil {
			locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		} else {
			log.Warn("LOCK_BACKEND=redis but redis is down; using in-process locks")
		}
	}

	hub := realtime.NewHub()
	go hub.Run()
	notifier := realtime.NewHubNotifier(hub, rdb)

	var gateway payment.Gateway
	if cfg.PaymentGatewayMock {
		log.Warn("payment gateway running in sandbox mode, intents are approved immediately")
		gateway = payment.NewSandboxGateway(cfg.SandboxWebhookSecret, true)
	} else {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}

	settingsSvc := settings.NewSettingsService(gdb)
	if _, err := settingsSvc.Active(context.Background()); err != nil {
		log.WithError(err).Fatal("load fee settings")
	}

	router := &handlers.Router{
		JWTSecret: cfg.JWTSecret,
		Jobs:      handlers.NewJobHandler(jobs.NewJobService(gdb, notifier)),
		Payments:  handlers.NewPaymentHandler(payment.NewPaymentService(gdb, gateway, settingsSvc, locker, notifier, cfg.PaymentCurrency)),
		Wallet:    handlers.NewWalletHandler(wallet.NewWalletService(gdb, settingsSvc, locker, notifier)),
		Settings:  handlers.NewSettingsHandler(settingsSvc),
		Realtime:  &handlers.RealtimeHandler{Hub: hub},
		Health:    &handlers.HealthHandler{DB: gdb, RDB: rdb},
	}

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Stripe-Signature, X-Callback-Signature",
		ExposeHeaders:    "Content-Length, X-Request-ID",
		AllowCredentials: true,
	}))
	router.Register(app)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.WithError(err).Fatal("listen")
		}
	}()
	log.WithField("port", cfg.AppPort).Info("api started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("shutdown")
	}
	hub.Stop()
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
