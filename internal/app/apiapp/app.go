package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"referral-rewards-api/internal/config"
	"referral-rewards-api/internal/jobs/purge"
	pgrepo "referral-rewards-api/internal/repo/postgres"
	redrepo "referral-rewards-api/internal/repo/redis"
	balancesvc "referral-rewards-api/internal/services/balances"
	purchasesvc "referral-rewards-api/internal/services/purchases"
	ratesvc "referral-rewards-api/internal/services/rate"
	settlementsvc "referral-rewards-api/internal/services/settlement"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	rewardRepo := pgrepo.NewRewardRepo(pool)
	balanceRepo := pgrepo.NewBalanceRepo(pool)
	txManager := pgrepo.NewTxManager(pool)

	settlementService := settlementsvc.NewService(settlementsvc.Dependencies{
		Tx:        txManager,
		Purchases: purchaseRepo,
		Users:     userRepo,
		Rewards:   rewardRepo,
		Balances:  balanceRepo,
	})
	purchaseService := purchasesvc.NewService(purchaseRepo, rewardRepo)
	purchaseService.AttachRateLimiter(ratesvc.NewLimiter(
		rateRepo,
		cfg.Limits.IntakePerMinute,
		cfg.Limits.IntakePer10Sec,
	))
	balanceService := balancesvc.NewService(balanceRepo)

	if pool != nil {
		purgeJob := purge.New(purchaseRepo, cfg.Purge.Retention, log)
		go purgeJob.RunPeriodically(ctx, cfg.Purge.Interval)
	}

	RegisterRoutes(r, Dependencies{
		PurchaseService:   purchaseService,
		SettlementService: settlementService,
		BalanceService:    balanceService,
		Logger:            log,
		Config:            cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
