package store

import (
	"context"

	"pointsledger/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, user_id, balance, created_at, updated_at`

func (s *AccountStore) Create(ctx context.Context, tx Getter, id, userID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		INSERT INTO accounts (id, user_id, balance)
		VALUES ($1, $2, 0)
		RETURNING `+accountColumns, id, userID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByUserID(ctx context.Context, userID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// GetForUpdate reads the account and holds its row lock until tx ends.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

type reconcileRow struct {
	AccountID     string `db:"account_id"`
	StoredBalance int64  `db:"stored_balance"`
	LedgerSum     int64  `db:"ledger_sum"`
	EntryCount    int64  `db:"entry_count"`
}

// Reconcile compares every stored balance with the sum of its entries.
func (s *AccountStore) Reconcile(ctx context.Context) ([]models.Reconciliation, error) {
	var rows []reconcileRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id,
		       a.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS ledger_sum,
		       COUNT(l.id) AS entry_count
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.balance
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	out := make([]models.Reconciliation, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Reconciliation{
			AccountID:     row.AccountID,
			StoredBalance: row.StoredBalance,
			LedgerSum:     row.LedgerSum,
			Difference:    row.StoredBalance - row.LedgerSum,
			EntryCount:    row.EntryCount,
		})
	}
	return out, nil
}
