// Package app builds the service graph shared by the API and worker binaries.
package app

import (
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"invest-service/internal/config"
	"invest-service/internal/database"
	"invest-service/internal/handlers"
	"invest-service/internal/metrics"
	"invest-service/internal/services"
	"invest-service/internal/worker"
)

type App struct {
	Config  config.AppConfig
	DB      *gorm.DB
	Redis   *redis.Client
	Queue   *asynq.Client
	Metrics *metrics.Collector

	Users         *services.UserService
	Wallets       *services.WalletService
	Ledger        *services.LedgerService
	Settings      *services.SettingsService
	Bonus         *services.BonusService
	Notifications *services.NotificationService
	Deposits      *services.DepositService
	Withdrawals   *services.WithdrawalService
	Accounts      *services.PaymentAccountService
	Investments   *services.InvestmentService
}

func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: a.Config.RedisAddr, Password: a.Config.RedisPassword}
}

// New connects to the database and redis and wires every service.
func New(cfg config.AppConfig) (*App, error) {
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, db), nil
}

// Wire builds the services over an open database.
func Wire(cfg config.AppConfig, db *gorm.DB) *App {
	a := &App{
		Config:  cfg,
		DB:      db,
		Redis:   redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}),
		Metrics: metrics.NewCollector(),
	}
	a.Queue = asynq.NewClient(a.RedisOpt())

	var mailer services.Mailer = services.LogMailer{}
	if cfg.PlunkAPIKey != "" {
		mailer = services.NewPlunkMailer(cfg.PlunkAPIKey, cfg.PlunkFrom)
	} else {
		logrus.Warn("PLUNK_API_KEY not set, notification emails are only logged")
	}

	var gateway services.PaymentGateway
	if cfg.GatewayAPIKey != "" {
		gateway = services.NewHTTPPaymentGateway(cfg.GatewayAPIURL, cfg.GatewayAPIKey)
	} else {
		logrus.Warn("GATEWAY_API_KEY not set, crypto deposits need manual approval")
	}

	rates := &services.CachedRateProvider{
		Next:  &services.HTTPRateProvider{BaseURL: cfg.RatesAPIURL},
		Redis: a.Redis,
		TTL:   cfg.RatesCacheTTL,
	}
	guard := services.NewApprovalGuard(a.Redis, cfg.ApprovalLockTTL)
	effects := services.NewEffectRunner(a.Metrics)
	audit := services.NewAuditService(db)

	a.Users = services.NewUserService(db)
	a.Wallets = services.NewWalletService(db)
	a.Ledger = services.NewLedgerService(db)
	a.Settings = services.NewSettingsService(db)
	a.Bonus = services.NewBonusService(db, a.Wallets, a.Ledger, a.Metrics)
	a.Notifications = services.NewNotificationService(db, a.Queue, mailer)
	a.Accounts = services.NewPaymentAccountService(db)
	a.Investments = services.NewInvestmentService(db, a.Wallets, a.Ledger, a.Metrics)
	a.Deposits = &services.DepositService{
		DB:            db,
		Wallets:       a.Wallets,
		Ledger:        a.Ledger,
		Bonus:         a.Bonus,
		Settings:      a.Settings,
		Notifications: a.Notifications,
		Audit:         audit,
		Currency:      services.NewCurrencyConverter(rates),
		Gateway:       gateway,
		Guard:         guard,
		Effects:       effects,
		Metrics:       a.Metrics,
		Queue:         a.Queue,
		Timeout:       cfg.ApprovalTimeout,
		PayCurrency:   cfg.GatewayPayCurrency,
	}
	a.Withdrawals = &services.WithdrawalService{
		DB:            db,
		Wallets:       a.Wallets,
		Ledger:        a.Ledger,
		Settings:      a.Settings,
		Notifications: a.Notifications,
		Audit:         audit,
		Guard:         guard,
		Effects:       effects,
		Metrics:       a.Metrics,
		Timeout:       cfg.ApprovalTimeout,
	}
	return a
}

func (a *App) Handler() *handlers.Handler {
	return &handlers.Handler{
		Users:         a.Users,
		Wallets:       a.Wallets,
		Ledger:        a.Ledger,
		Deposits:      a.Deposits,
		Withdrawals:   a.Withdrawals,
		Accounts:      a.Accounts,
		Investments:   a.Investments,
		Settings:      a.Settings,
		Notifications: a.Notifications,
		Bonus:         a.Bonus,
	}
}

func (a *App) Worker() *worker.Worker {
	return worker.NewWorker(a.Notifications, a.Deposits, a.Investments)
}

func (a *App) Close() {
	if err := a.Queue.Close(); err != nil {
		logrus.WithError(err).Warn("close task queue")
	}
	if err := a.Redis.Close(); err != nil {
		logrus.WithError(err).Warn("close redis")
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Warn("close database")
		}
	}
}
