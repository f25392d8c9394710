package services

import (
	"context"

	"pointsledger/internal/models"
)

// Ledger is the part of PointsLedger the platform flows call into.
type Ledger interface {
	Adjust(ctx context.Context, req AdjustRequest) (models.LedgerEntry, error)
	Transfer(ctx context.Context, req TransferRequest) (models.LedgerEntry, models.LedgerEntry, error)
	OpenAccount(ctx context.Context, req OpenAccountRequest) (models.Account, *models.LedgerEntry, error)
	AccountByUser(ctx context.Context, userID string) (models.Account, error)
}

// Flows turns platform events (purchases, downloads, rewards, bonuses) into ledger calls.
// It holds no state of its own.
type Flows struct {
	ledger Ledger
}

func NewFlows(ledger Ledger) *Flows {
	return &Flows{ledger: ledger}
}

type TransferResult struct {
	Debit  models.LedgerEntry `json:"debit"`
	Credit models.LedgerEntry `json:"credit"`
}

// PurchaseRequest describes a paid item changing hands between a buyer and its author.
type PurchaseRequest struct {
	BuyerUserID  string
	AuthorUserID string
	ItemID       int64
	Price        int64
	RequestID    *string
}

// PurchaseCourse moves the course price from the buyer to the author.
// Free courses return a nil result and write nothing.
func (f *Flows) PurchaseCourse(ctx context.Context, req PurchaseRequest) (*TransferResult, error) {
	return f.purchase(ctx, req, models.EntityCourse, models.CategoryPurchase, "Purchased", "Royalty for")
}

// DownloadGalleryItem moves the download price from the downloader to the item's author.
func (f *Flows) DownloadGalleryItem(ctx context.Context, req PurchaseRequest) (*TransferResult, error) {
	return f.purchase(ctx, req, models.EntityGalleryItem, models.CategoryDownload, "Downloaded", "Download royalty for")
}

func (f *Flows) purchase(ctx context.Context, req PurchaseRequest, kind models.EntityKind, debitCategory models.Category, debitVerb, creditVerb string) (*TransferResult, error) {
	if req.Price < 0 {
		return nil, ErrInvalidAmount
	}
	if req.Price == 0 {
		return nil, nil
	}
	buyer, err := f.ledger.AccountByUser(ctx, req.BuyerUserID)
	if err != nil {
		return nil, err
	}
	author, err := f.ledger.AccountByUser(ctx, req.AuthorUserID)
	if err != nil {
		return nil, err
	}
	label := entityLabel(kind, req.ItemID)
	debit, credit, err := f.ledger.Transfer(ctx, TransferRequest{
		FromAccountID:     buyer.ID,
		ToAccountID:       author.ID,
		Amount:            req.Price,
		DebitCategory:     debitCategory,
		CreditCategory:    models.CategoryRoyalty,
		DebitDescription:  debitVerb + " " + label,
		CreditDescription: creditVerb + " " + label,
		Related:           &models.EntityRef{Kind: kind, ID: req.ItemID},
		RequestID:         req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Debit: debit, Credit: credit}, nil
}

// PostReward escrows a bounty from the poster when a rewarded community post is created.
func (f *Flows) PostReward(ctx context.Context, posterUserID string, postID, reward int64) (models.LedgerEntry, error) {
	if reward <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	return f.adjustUser(ctx, posterUserID, AdjustRequest{
		Amount:      -reward,
		Category:    models.CategoryReward,
		Description: "Reward offered on " + entityLabel(models.EntityCommunityPost, postID),
		Related:     &models.EntityRef{Kind: models.EntityCommunityPost, ID: postID},
	})
}

// AcceptReward pays the bounty to the author of the accepted answer.
func (f *Flows) AcceptReward(ctx context.Context, winnerUserID string, postID, reward int64) (models.LedgerEntry, error) {
	if reward <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	return f.adjustUser(ctx, winnerUserID, AdjustRequest{
		Amount:      reward,
		Category:    models.CategoryReward,
		Description: "Reward received on " + entityLabel(models.EntityCommunityPost, postID),
		Related:     &models.EntityRef{Kind: models.EntityCommunityPost, ID: postID},
	})
}

// RefundReward returns an unclaimed bounty to the poster.
func (f *Flows) RefundReward(ctx context.Context, posterUserID string, postID, reward int64) (models.LedgerEntry, error) {
	if reward <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	return f.adjustUser(ctx, posterUserID, AdjustRequest{
		Amount:      reward,
		Category:    models.CategoryRefund,
		Description: "Reward refunded on " + entityLabel(models.EntityCommunityPost, postID),
		Related:     &models.EntityRef{Kind: models.EntityCommunityPost, ID: postID},
	})
}

func (f *Flows) PurchaseVIP(ctx context.Context, userID string, planID, price int64) (*models.LedgerEntry, error) {
	if price < 0 {
		return nil, ErrInvalidAmount
	}
	if price == 0 {
		return nil, nil
	}
	entry, err := f.adjustUser(ctx, userID, AdjustRequest{
		Amount:      -price,
		Category:    models.CategoryPurchase,
		Description: "Purchased " + entityLabel(models.EntityVIPPlan, planID),
		Related:     &models.EntityRef{Kind: models.EntityVIPPlan, ID: planID},
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (f *Flows) GrantActivityBonus(ctx context.Context, userID string, amount int64, description string) (models.LedgerEntry, error) {
	if amount <= 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	return f.adjustUser(ctx, userID, AdjustRequest{
		Amount:      amount,
		Category:    models.CategoryActivityBonus,
		Description: description,
	})
}

// AdminAdjust records a manual correction with the administrator as operator.
func (f *Flows) AdminAdjust(ctx context.Context, adminUserID, accountID string, amount int64, reason string, requestID *string) (models.LedgerEntry, error) {
	return f.ledger.Adjust(ctx, AdjustRequest{
		AccountID:      accountID,
		Amount:         amount,
		Category:       models.CategoryAdminAdjustment,
		Description:    reason,
		OperatorUserID: stringPtr(adminUserID),
		RequestID:      requestID,
	})
}

func (f *Flows) RegistrationBonus(ctx context.Context, userID string, grant int64) (models.Account, *models.LedgerEntry, error) {
	return f.ledger.OpenAccount(ctx, OpenAccountRequest{
		UserID:       userID,
		InitialGrant: grant,
	})
}

func (f *Flows) adjustUser(ctx context.Context, userID string, req AdjustRequest) (models.LedgerEntry, error) {
	account, err := f.ledger.AccountByUser(ctx, userID)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	req.AccountID = account.ID
	return f.ledger.Adjust(ctx, req)
}
