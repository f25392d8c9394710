package handlers

import (
	"context"

	"pointsledger/internal/models"
	"pointsledger/internal/services"
	"pointsledger/internal/store"
)

type Ledger interface {
	Adjust(ctx context.Context, req services.AdjustRequest) (models.LedgerEntry, error)
	Transfer(ctx context.Context, req services.TransferRequest) (models.LedgerEntry, models.LedgerEntry, error)
	Account(ctx context.Context, accountID string) (models.Account, error)
	AccountByUser(ctx context.Context, userID string) (models.Account, error)
	Entries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error)
	Verify(ctx context.Context, accountID string) (models.Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]models.Reconciliation, error)
}

type Flows interface {
	PurchaseCourse(ctx context.Context, req services.PurchaseRequest) (*services.TransferResult, error)
	DownloadGalleryItem(ctx context.Context, req services.PurchaseRequest) (*services.TransferResult, error)
	PurchaseVIP(ctx context.Context, userID string, planID, price int64) (*models.LedgerEntry, error)
	PostReward(ctx context.Context, posterUserID string, postID, reward int64) (models.LedgerEntry, error)
	AcceptReward(ctx context.Context, winnerUserID string, postID, reward int64) (models.LedgerEntry, error)
	RefundReward(ctx context.Context, posterUserID string, postID, reward int64) (models.LedgerEntry, error)
	GrantActivityBonus(ctx context.Context, userID string, amount int64, description string) (models.LedgerEntry, error)
	AdminAdjust(ctx context.Context, adminUserID, accountID string, amount int64, reason string, requestID *string) (models.LedgerEntry, error)
	RegistrationBonus(ctx context.Context, userID string, grant int64) (models.Account, *models.LedgerEntry, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

type AuditStore interface {
	List(ctx context.Context, action string, limit, offset int) ([]store.AuditLog, error)
}
