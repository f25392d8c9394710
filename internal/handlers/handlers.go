package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pointsledger/internal/models"
	"pointsledger/internal/points"
	"pointsledger/internal/services"
	"pointsledger/internal/validator"
)

const (
	maxPageSize = 100
	// Keeps (page-1)*limit far from int overflow.
	maxPage = 100_000
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationError(w http.ResponseWriter, err error) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "invalid payload",
		"details": validator.Details(err),
	})
}

// respondLedgerError maps the ledger's sentinel errors onto HTTP statuses.
func (h *Handler) respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, services.ErrSelfTransfer):
		respondError(w, http.StatusBadRequest, "self_transfer")
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusPaymentRequired, "insufficient_balance")
	case errors.Is(err, services.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "account_not_found")
	case errors.Is(err, services.ErrDuplicateRequest):
		respondError(w, http.StatusConflict, "duplicate_request")
	case errors.Is(err, services.ErrAccountExists):
		respondError(w, http.StatusConflict, "account_exists")
	case errors.Is(err, services.ErrLedgerUnavailable):
		h.logger.Error("ledger unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "ledger_unavailable")
	default:
		h.logger.Error("unexpected ledger error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

type entryResponse struct {
	models.LedgerEntry
	Display string `json:"display"`
}

func toEntryResponse(entry models.LedgerEntry) entryResponse {
	return entryResponse{LedgerEntry: entry, Display: points.FormatSigned(entry.Amount)}
}

func toEntryResponses(entries []models.LedgerEntry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	return out
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), defaultLimit)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parseInt(query.Get("page"), 1)
	if page > maxPage {
		page = maxPage
	}
	return limit, (page - 1) * limit
}
