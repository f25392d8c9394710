package handlers

import (
	"encoding/json"
	"net/http"

	"pointsledger/internal/middleware"
	"pointsledger/internal/models"
	"pointsledger/internal/services"
)

type purchaseRequest struct {
	Kind         string  `json:"kind" validate:"required,oneof=course vip_plan"`
	ItemID       int64   `json:"item_id" validate:"gt=0"`
	AuthorUserID string  `json:"author_user_id" validate:"required_if=Kind course"`
	Price        int64   `json:"price" validate:"gte=0"`
	RequestID    *string `json:"request_id" validate:"omitempty,max=64"`
}

// Purchase charges the caller for a course or a VIP plan. Free items return 204.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}
	if models.EntityKind(req.Kind) == models.EntityVIPPlan {
		entry, err := h.flows.PurchaseVIP(r.Context(), userID, req.ItemID, req.Price)
		if err != nil {
			h.respondLedgerError(w, err)
			return
		}
		if entry == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondJSON(w, http.StatusCreated, toEntryResponse(*entry))
		return
	}
	result, err := h.flows.PurchaseCourse(r.Context(), services.PurchaseRequest{
		BuyerUserID:  userID,
		AuthorUserID: req.AuthorUserID,
		ItemID:       req.ItemID,
		Price:        req.Price,
		RequestID:    req.RequestID,
	})
	h.respondTransferResult(w, result, err)
}

type downloadRequest struct {
	ItemID       int64   `json:"item_id" validate:"gt=0"`
	AuthorUserID string  `json:"author_user_id" validate:"required"`
	Price        int64   `json:"price" validate:"gte=0"`
	RequestID    *string `json:"request_id" validate:"omitempty,max=64"`
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}
	result, err := h.flows.DownloadGalleryItem(r.Context(), services.PurchaseRequest{
		BuyerUserID:  userID,
		AuthorUserID: req.AuthorUserID,
		ItemID:       req.ItemID,
		Price:        req.Price,
		RequestID:    req.RequestID,
	})
	h.respondTransferResult(w, result, err)
}

func (h *Handler) respondTransferResult(w http.ResponseWriter, result *services.TransferResult, err error) {
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"debit":  toEntryResponse(result.Debit),
		"credit": toEntryResponse(result.Credit),
	})
}

type rewardRequest struct {
	PostID int64 `json:"post_id" validate:"gt=0"`
	Reward int64 `json:"reward" validate:"gt=0"`
}

// PostReward escrows a bounty out of the caller's balance when they publish a community post.
func (h *Handler) PostReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req rewardRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entry, err := h.flows.PostReward(r.Context(), userID, req.PostID, req.Reward)
	h.respondEntry(w, entry, err)
}

type rewardSettlementRequest struct {
	UserID string `json:"user_id" validate:"required"`
	PostID int64  `json:"post_id" validate:"gt=0"`
	Reward int64  `json:"reward" validate:"gt=0"`
}

func (h *Handler) AcceptReward(w http.ResponseWriter, r *http.Request) {
	var req rewardSettlementRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entry, err := h.flows.AcceptReward(r.Context(), req.UserID, req.PostID, req.Reward)
	h.respondEntry(w, entry, err)
}

func (h *Handler) RefundReward(w http.ResponseWriter, r *http.Request) {
	var req rewardSettlementRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entry, err := h.flows.RefundReward(r.Context(), req.UserID, req.PostID, req.Reward)
	h.respondEntry(w, entry, err)
}

type bonusRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) ActivityBonus(w http.ResponseWriter, r *http.Request) {
	var req bonusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entry, err := h.flows.GrantActivityBonus(r.Context(), req.UserID, req.Amount, req.Description)
	h.respondEntry(w, entry, err)
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondEntry(w http.ResponseWriter, entry models.LedgerEntry, err error) {
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}
