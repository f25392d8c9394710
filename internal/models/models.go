package models

import (
	"errors"
	"time"
)

var ErrInvalidEntityRef = errors.New("invalid entity reference")

type Category string

const (
	CategoryReward          Category = "reward"
	CategoryPurchase        Category = "purchase"
	CategoryDownload        Category = "download"
	CategoryActivityBonus   Category = "activity_bonus"
	CategoryAdminAdjustment Category = "admin_adjustment"
	CategoryInitialGrant    Category = "initial_grant"
	CategoryRefund          Category = "refund"
	// CategoryRoyalty is the credit leg an author receives when their work is bought or downloaded.
	CategoryRoyalty Category = "royalty"
)

var categories = map[Category]struct{}{
	CategoryReward:          {},
	CategoryPurchase:        {},
	CategoryDownload:        {},
	CategoryActivityBonus:   {},
	CategoryAdminAdjustment: {},
	CategoryInitialGrant:    {},
	CategoryRefund:          {},
	CategoryRoyalty:         {},
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// UserPostable reports whether an account owner may tag a transfer leg with c.
// Grants, bonuses, refunds and admin corrections are minted by the platform only.
func (c Category) UserPostable() bool {
	switch c {
	case CategoryPurchase, CategoryDownload, CategoryReward, CategoryRoyalty:
		return true
	}
	return false
}

type EntityKind string

const (
	EntityCourse        EntityKind = "course"
	EntityGalleryItem   EntityKind = "gallery_item"
	EntityCommunityPost EntityKind = "community_post"
	EntityVIPPlan       EntityKind = "vip_plan"
)

func (k EntityKind) Valid() bool {
	switch k {
	case EntityCourse, EntityGalleryItem, EntityCommunityPost, EntityVIPPlan:
		return true
	default:
		return false
	}
}

// EntityRef points at the platform object that caused a balance movement.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   int64      `json:"id"`
}

func (r EntityRef) Validate() error {
	if !r.Kind.Valid() || r.ID <= 0 {
		return ErrInvalidEntityRef
	}
	return nil
}

// Columns splits a reference into its nullable storage columns.
func (r *EntityRef) Columns() (*string, *int64) {
	if r == nil {
		return nil, nil
	}
	kind := string(r.Kind)
	id := r.ID
	return &kind, &id
}

// EntityRefFromColumns is the inverse of Columns; a half-populated pair yields nil.
func EntityRefFromColumns(kind *string, id *int64) *EntityRef {
	if kind == nil || id == nil {
		return nil
	}
	return &EntityRef{Kind: EntityKind(*kind), ID: *id}
}

type Account struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type LedgerEntry struct {
	ID             int64      `json:"id"`
	AccountID      string     `json:"account_id"`
	Amount         int64      `json:"amount"`
	BalanceAfter   int64      `json:"balance_after"`
	Category       Category   `json:"category"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	Related        *EntityRef `json:"related,omitempty"`
	OperatorUserID *string    `json:"operator_user_id,omitempty"`
	TransferID     *string    `json:"transfer_id,omitempty"`
	RequestID      *string    `json:"request_id,omitempty"`
}

// Reconciliation compares an account's stored balance with what its entries add up to.
type Reconciliation struct {
	AccountID     string `json:"account_id"`
	StoredBalance int64  `json:"stored_balance"`
	LedgerSum     int64  `json:"ledger_sum"`
	Difference    int64  `json:"difference"`
	EntryCount    int64  `json:"entry_count"`
	FirstBrokenID *int64 `json:"first_broken_entry_id,omitempty"`
}

func (r Reconciliation) Consistent() bool {
	return r.Difference == 0 && r.FirstBrokenID == nil
}
