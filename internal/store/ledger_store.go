package store

import (
	"context"
	"time"

	"pointsledger/internal/models"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type LedgerEntryInput struct {
	AccountID      string
	Amount         int64
	BalanceAfter   int64
	Category       models.Category
	Description    string
	Related        *models.EntityRef
	OperatorUserID *string
	TransferID     *string
	RequestID      *string
}

type ledgerRow struct {
	ID             int64     `db:"id"`
	AccountID      string    `db:"account_id"`
	Amount         int64     `db:"amount"`
	BalanceAfter   int64     `db:"balance_after"`
	Category       string    `db:"category"`
	Description    string    `db:"description"`
	CreatedAt      time.Time `db:"created_at"`
	RelatedKind    *string   `db:"related_kind"`
	RelatedID      *int64    `db:"related_id"`
	OperatorUserID *string   `db:"operator_user_id"`
	TransferID     *string   `db:"transfer_id"`
	RequestID      *string   `db:"request_id"`
}

func (r ledgerRow) toModel() models.LedgerEntry {
	return models.LedgerEntry{
		ID:             r.ID,
		AccountID:      r.AccountID,
		Amount:         r.Amount,
		BalanceAfter:   r.BalanceAfter,
		Category:       models.Category(r.Category),
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
		Related:        models.EntityRefFromColumns(r.RelatedKind, r.RelatedID),
		OperatorUserID: r.OperatorUserID,
		TransferID:     r.TransferID,
		RequestID:      r.RequestID,
	}
}

const ledgerColumns = `id, account_id, amount, balance_after, category, description, created_at,
		       related_kind, related_id, operator_user_id, transfer_id, request_id`

// Insert appends one entry. Entries are never updated afterwards.
func (s *LedgerStore) Insert(ctx context.Context, tx Getter, input LedgerEntryInput) (models.LedgerEntry, error) {
	relatedKind, relatedID := input.Related.Columns()
	var row ledgerRow
	err := tx.GetContext(ctx, &row, `
		INSERT INTO ledger_entries (account_id, amount, balance_after, category, description,
		                            related_kind, related_id, operator_user_id, transfer_id, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+ledgerColumns,
		input.AccountID, input.Amount, input.BalanceAfter, string(input.Category), input.Description,
		relatedKind, relatedID, input.OperatorUserID, input.TransferID, input.RequestID,
	)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return row.toModel(), nil
}

// ListByAccount pages through an account's entries, newest first.
func (s *LedgerStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	var rows []ledgerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// ListForReplay returns every entry of the account in creation order.
func (s *LedgerStore) ListForReplay(ctx context.Context, q Selecter, accountID string) ([]models.LedgerEntry, error) {
	var rows []ledgerRow
	err := q.SelectContext(ctx, &rows, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func toModels(rows []ledgerRow) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toModel())
	}
	return entries
}
