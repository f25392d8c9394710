package handlers

import (
	"log/slog"
	"net/http"

	"pointsledger/internal/config"
	"pointsledger/internal/middleware"
	"pointsledger/internal/store"
	"pointsledger/internal/validator"
	"pointsledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	ledger   Ledger
	flows    Flows
	admin    AdminStore
	audit    AuditStore
	hub      *websocket.Hub
	validate *validator.Validator
	logger   *slog.Logger
}

func New(cfg config.Config, ledger Ledger, flows Flows, admin AdminStore, audit AuditStore, hub *websocket.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		ledger:   ledger,
		flows:    flows,
		admin:    admin,
		audit:    audit,
		hub:      hub,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authed := middleware.Auth(h.cfg.JWTSecret)
	router.Route("/accounts", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", h.OpenAccount)
		r.Get("/me", h.MyAccount)
		r.Get("/{id}", h.GetAccount)
		r.Get("/{id}/entries", h.ListEntries)
		r.Get("/{id}/verify", h.VerifyAccount)
	})
	router.Route("/ledger", func(r chi.Router) {
		r.Use(authed)
		r.With(middleware.RequireAdmin(h.admin, store.RoleAdjustPoints)).Post("/adjust", h.Adjust)
		r.Post("/transfer", h.Transfer)
	})
	router.Route("/flows", func(r chi.Router) {
		r.Use(authed)
		r.Post("/purchase", h.Purchase)
		r.Post("/download", h.Download)
		r.Post("/rewards", h.PostReward)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, store.RoleAdjustPoints))
			r.Post("/rewards/accept", h.AcceptReward)
			r.Post("/rewards/refund", h.RefundReward)
			r.Post("/bonus", h.ActivityBonus)
		})
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authed)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/reconcile", h.Reconcile)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/audit", h.ListAuditLogs)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"ws_sessions": h.hub.Sessions(),
			"ws_dropped":  h.hub.Dropped(),
		})
	})
	return router
}
