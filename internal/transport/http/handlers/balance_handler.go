package handlers

import (
	"errors"
	"net/http"

	balancesvc "referral-rewards-api/internal/services/balances"
	"referral-rewards-api/internal/transport/http/dto"
	httperrors "referral-rewards-api/internal/transport/http/errors"
)

type BalanceHandler struct {
	balances *balancesvc.Service
}

func NewBalanceHandler(balances *balancesvc.Service) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.balances == nil {
		writeInternal(w, "BALANCES_SERVICE_UNAVAILABLE", "balance service is unavailable")
		return
	}

	userID, err := userIDFromURL(r)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	snapshot, err := h.balances.Get(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, balancesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load balance")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BalanceResponse{
		UserID:  snapshot.UserID,
		Balance: snapshot.Balance,
	})
}
