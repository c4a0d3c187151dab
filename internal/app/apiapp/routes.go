package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"referral-rewards-api/internal/config"
	balancesvc "referral-rewards-api/internal/services/balances"
	purchasesvc "referral-rewards-api/internal/services/purchases"
	settlementsvc "referral-rewards-api/internal/services/settlement"
	"referral-rewards-api/internal/transport/http/handlers"
)

type Dependencies struct {
	PurchaseService   *purchasesvc.Service
	SettlementService *settlementsvc.Service
	BalanceService    *balancesvc.Service
	Logger            *zap.Logger
	Config            config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService, deps.SettlementService)
	balanceHandler := handlers.NewBalanceHandler(deps.BalanceService)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", purchaseHandler.Create)
		r.Post("/{id}/process", purchaseHandler.Process)
		r.Get("/{id}/rewards", purchaseHandler.Rewards)
	})

	r.Get("/balances/{user_id}", balanceHandler.Get)
}
