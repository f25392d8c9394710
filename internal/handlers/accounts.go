package handlers

import (
	"context"
	"net/http"

	"pointsledger/internal/middleware"
	"pointsledger/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, grant, err := h.flows.RegistrationBonus(r.Context(), userID, h.cfg.RegistrationGrant)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	response := map[string]any{"account": account}
	if grant != nil {
		response["grant"] = toEntryResponse(*grant)
	}
	respondJSON(w, http.StatusCreated, response)
}

func (h *Handler) MyAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.ledger.AccountByUser(r.Context(), userID)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50)
	entries, err := h.ledger.Entries(r.Context(), account.ID, limit, offset)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toEntryResponses(entries))
}

func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	result, err := h.ledger.Verify(r.Context(), account.ID)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"reconciliation": result,
		"consistent":     result.Consistent(),
	})
}

// authorizedAccount loads the {id} account and allows its owner or any admin through.
// It writes the error response itself when access is refused.
func (h *Handler) authorizedAccount(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return models.Account{}, false
	}
	account, err := h.ledger.Account(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondLedgerError(w, err)
		return models.Account{}, false
	}
	if account.UserID == userID {
		return account, true
	}
	isAdmin, err := h.isAdmin(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to verify admin")
		return models.Account{}, false
	}
	if !isAdmin {
		respondError(w, http.StatusForbidden, "access denied")
		return models.Account{}, false
	}
	return account, true
}

func (h *Handler) isAdmin(ctx context.Context, userID string) (bool, error) {
	isAdmin, _, err := h.admin.IsAdmin(ctx, userID)
	return isAdmin, err
}
