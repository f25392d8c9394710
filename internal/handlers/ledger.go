package handlers

import (
	"encoding/json"
	"net/http"

	"pointsledger/internal/middleware"
	"pointsledger/internal/models"
	"pointsledger/internal/points"
	"pointsledger/internal/services"
)

type adjustRequest struct {
	AccountID string  `json:"account_id" validate:"required"`
	Amount    string  `json:"amount" validate:"required"`
	Reason    string  `json:"reason" validate:"required,max=255"`
	RequestID *string `json:"request_id" validate:"omitempty,max=64"`
}

// Adjust is the admin correction endpoint. The amount is a signed string such as "+50" or "-20".
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}
	amount, err := points.ParseDelta(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	entry, err := h.flows.AdminAdjust(r.Context(), userID, req.AccountID, amount, req.Reason, req.RequestID)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}

type relatedRequest struct {
	Kind string `json:"kind" validate:"required,entity_kind"`
	ID   int64  `json:"id" validate:"gt=0"`
}

type transferRequest struct {
	FromAccountID     string          `json:"from_account_id" validate:"required"`
	ToAccountID       string          `json:"to_account_id" validate:"required"`
	Amount            string          `json:"amount" validate:"required"`
	DebitCategory     string          `json:"debit_category" validate:"required,user_category"`
	CreditCategory    string          `json:"credit_category" validate:"required,user_category"`
	DebitDescription  string          `json:"debit_description" validate:"max=255"`
	CreditDescription string          `json:"credit_description" validate:"max=255"`
	Related           *relatedRequest `json:"related" validate:"omitempty"`
	RequestID         *string         `json:"request_id" validate:"omitempty,max=64"`
}

// Transfer moves points out of an account the caller owns.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}
	amount, err := points.ParsePositive(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	source, err := h.ledger.Account(r.Context(), req.FromAccountID)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	if source.UserID != userID {
		respondError(w, http.StatusForbidden, "access denied")
		return
	}
	var related *models.EntityRef
	if req.Related != nil {
		related = &models.EntityRef{Kind: models.EntityKind(req.Related.Kind), ID: req.Related.ID}
	}
	debit, credit, err := h.ledger.Transfer(r.Context(), services.TransferRequest{
		FromAccountID:     req.FromAccountID,
		ToAccountID:       req.ToAccountID,
		Amount:            amount,
		DebitCategory:     models.Category(req.DebitCategory),
		CreditCategory:    models.Category(req.CreditCategory),
		DebitDescription:  req.DebitDescription,
		CreditDescription: req.CreditDescription,
		Related:           related,
		RequestID:         req.RequestID,
	})
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"debit":  toEntryResponse(debit),
		"credit": toEntryResponse(credit),
	})
}
