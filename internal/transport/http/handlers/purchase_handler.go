package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	purchasesvc "referral-rewards-api/internal/services/purchases"
	settlementsvc "referral-rewards-api/internal/services/settlement"
	"referral-rewards-api/internal/transport/http/dto"
	httperrors "referral-rewards-api/internal/transport/http/errors"
)

type PurchaseHandler struct {
	purchases  *purchasesvc.Service
	settlement *settlementsvc.Service
}

func NewPurchaseHandler(purchases *purchasesvc.Service, settlement *settlementsvc.Service) *PurchaseHandler {
	return &PurchaseHandler{
		purchases:  purchases,
		settlement: settlement,
	}
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	var req dto.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.purchases.Create(r.Context(), purchasesvc.CreateInput{
		ID:     req.ID,
		UserID: req.UserID,
		Amount: req.Amount,
		Status: req.Status,
	})
	if err != nil {
		var rateErr *purchasesvc.RateLimitedError
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
		case errors.Is(err, purchasesvc.ErrPurchaseConflict):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "PURCHASE_CONFLICT",
				Message: "purchase already exists",
			})
		case errors.As(err, &rateErr):
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "RATE_LIMITED",
				Message:       "too many purchases, slow down",
				RetryAfterSec: rateErr.RetryAfterSec,
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.PurchaseCreateResponse{ID: result.ID})
}

func (h *PurchaseHandler) Process(w http.ResponseWriter, r *http.Request) {
	if h.settlement == nil {
		writeInternal(w, "SETTLEMENT_SERVICE_UNAVAILABLE", "settlement service is unavailable")
		return
	}

	purchaseID, ok := purchaseIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.settlement.Settle(r.Context(), purchaseID); err != nil {
		switch {
		case errors.Is(err, settlementsvc.ErrPurchaseNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "PURCHASE_NOT_FOUND",
				Message: "purchase not found",
			})
		default:
			writeInternal(w, "SETTLEMENT_FAILED", "failed to settle purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseProcessResponse{Processed: purchaseID})
}

func (h *PurchaseHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	purchaseID, ok := purchaseIDFromURL(w, r)
	if !ok {
		return
	}

	records, err := h.purchases.Rewards(r.Context(), purchaseID)
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "PURCHASE_NOT_FOUND",
				Message: "purchase not found",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to list rewards")
		}
		return
	}

	items := make([]dto.RewardItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.RewardItem{
			BeneficiaryUserID: record.BeneficiaryUserID,
			Level:             record.Level,
			Amount:            record.Amount,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseRewardsResponse{
		PurchaseID: purchaseID,
		Rewards:    items,
	})
}

func purchaseIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	purchaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return uuid.Nil, false
	}
	return purchaseID, true
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func userIDFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
}
