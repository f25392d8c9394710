package handlers

import (
	"net/http"

	"pointsledger/internal/auth"
	"pointsledger/internal/middleware"
	"pointsledger/internal/models"
	"pointsledger/internal/store"
	"pointsledger/internal/websocket"
)

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.ReconcileAll(r.Context())
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	drifted := make([]models.Reconciliation, 0)
	for _, row := range rows {
		if !row.Consistent() {
			drifted = append(drifted, row)
		}
	}
	if r.URL.Query().Get("drift") == "only" {
		rows = drifted
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts": rows,
		"drifted":  len(drifted),
	})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action != "" && !store.KnownAuditAction(action) {
		respondError(w, http.StatusBadRequest, "unknown audit action")
		return
	}
	limit, offset := pagination(r, 50)
	rows, err := h.audit.List(r.Context(), action, limit, offset)
	if err != nil {
		h.logger.Error("list audit logs", "error", err)
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// WSBalances streams the caller's balance updates. Browsers cannot set headers on a
// websocket handshake, so the token may also come as ?token=.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r, true)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
