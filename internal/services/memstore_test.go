package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"pointsledger/internal/logger"
	"pointsledger/internal/models"
	"pointsledger/internal/store"

	"github.com/lib/pq"
)

var errMemUnsupported = errors.New("memstore: raw SQL not supported")

// memStore is an in-memory backing store that honours row locks the way
// SELECT ... FOR UPDATE does: a locked account blocks other transactions
// until the holder commits or rolls back. Writes become visible on commit.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
	byUser   map[string]string
	entries  []models.LedgerEntry
	audits   []string
	nextID   int64

	// failInsertOn makes Insert fail for the given account, to exercise rollback.
	failInsertOn string
}

type memAccount struct {
	lock sync.Mutex
	row  models.Account
}

type memTx struct {
	store    *memStore
	held     map[string]*memAccount
	created  []models.Account
	balances map[string]int64
	entries  []models.LedgerEntry
	audits   []string
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*memAccount),
		byUser:   make(map[string]string),
	}
}

func (m *memStore) seed(accountID, userID string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.accounts[accountID] = &memAccount{row: models.Account{
		ID: accountID, UserID: userID, Balance: balance, CreatedAt: now, UpdatedAt: now,
	}}
	m.byUser[userID] = accountID
	if balance > 0 {
		m.nextID++
		m.entries = append(m.entries, models.LedgerEntry{
			ID: m.nextID, AccountID: accountID, Amount: balance, BalanceAfter: balance,
			Category: models.CategoryInitialGrant, CreatedAt: now,
		})
	}
}

func (m *memStore) balance(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountID].row.Balance
}

func (m *memStore) entriesFor(accountID string) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, entry := range m.entries {
		if entry.AccountID == accountID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	tx := &memTx{
		store:    m,
		held:     make(map[string]*memAccount),
		balances: make(map[string]int64),
	}
	defer tx.release()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (tx *memTx) commit() {
	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range tx.created {
		m.accounts[account.ID] = &memAccount{row: account}
		m.byUser[account.UserID] = account.ID
	}
	for id, balance := range tx.balances {
		m.accounts[id].row.Balance = balance
		m.accounts[id].row.UpdatedAt = time.Now()
	}
	m.entries = append(m.entries, tx.entries...)
	m.audits = append(m.audits, tx.audits...)
}

func (tx *memTx) release() {
	for _, account := range tx.held {
		account.lock.Unlock()
	}
}

func (tx *memTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errMemUnsupported
}

func (tx *memTx) GetContext(context.Context, any, string, ...any) error {
	return errMemUnsupported
}

func (tx *memTx) SelectContext(context.Context, any, string, ...any) error {
	return errMemUnsupported
}

func asMemTx(tx any) *memTx {
	mt, ok := tx.(*memTx)
	if !ok {
		panic("memstore: foreign transaction")
	}
	return mt
}

func (m *memStore) Create(_ context.Context, tx store.Getter, accountID, userID string) (models.Account, error) {
	mt := asMemTx(tx)
	m.mu.Lock()
	_, taken := m.byUser[userID]
	m.mu.Unlock()
	if taken {
		return models.Account{}, &pq.Error{Code: "23505", Constraint: "accounts_user_id_key"}
	}
	now := time.Now()
	account := models.Account{ID: accountID, UserID: userID, CreatedAt: now, UpdatedAt: now}
	mt.created = append(mt.created, account)
	return account, nil
}

func (m *memStore) GetByID(_ context.Context, accountID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account.row, nil
}

func (m *memStore) GetByUserID(ctx context.Context, userID string) (models.Account, error) {
	m.mu.Lock()
	accountID, ok := m.byUser[userID]
	m.mu.Unlock()
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return m.GetByID(ctx, accountID)
}

func (m *memStore) GetForUpdate(_ context.Context, tx store.Getter, accountID string) (models.Account, error) {
	mt := asMemTx(tx)
	m.mu.Lock()
	account, ok := m.accounts[accountID]
	m.mu.Unlock()
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	if _, held := mt.held[accountID]; !held {
		account.lock.Lock()
		mt.held[accountID] = account
	}
	m.mu.Lock()
	row := account.row
	m.mu.Unlock()
	if staged, ok := mt.balances[accountID]; ok {
		row.Balance = staged
	}
	return row, nil
}

func (m *memStore) UpdateBalance(_ context.Context, tx store.Execer, accountID string, balance int64) error {
	mt := asMemTx(tx)
	if balance < 0 {
		return &pq.Error{Code: "23514", Constraint: "accounts_balance_check"}
	}
	mt.balances[accountID] = balance
	return nil
}

func (m *memStore) Reconcile(context.Context) ([]models.Reconciliation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[string]int64)
	counts := make(map[string]int64)
	for _, entry := range m.entries {
		sums[entry.AccountID] += entry.Amount
		counts[entry.AccountID]++
	}
	out := make([]models.Reconciliation, 0, len(m.accounts))
	for id, account := range m.accounts {
		out = append(out, models.Reconciliation{
			AccountID:     id,
			StoredBalance: account.row.Balance,
			LedgerSum:     sums[id],
			Difference:    account.row.Balance - sums[id],
			EntryCount:    counts[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *memStore) Insert(_ context.Context, tx store.Getter, input store.LedgerEntryInput) (models.LedgerEntry, error) {
	mt := asMemTx(tx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertOn != "" && m.failInsertOn == input.AccountID {
		return models.LedgerEntry{}, errors.New("connection reset by peer")
	}
	if input.RequestID != nil {
		for _, batch := range [][]models.LedgerEntry{m.entries, mt.entries} {
			for _, entry := range batch {
				if entry.AccountID == input.AccountID && entry.RequestID != nil && *entry.RequestID == *input.RequestID {
					return models.LedgerEntry{}, &pq.Error{Code: "23505", Constraint: "ledger_entries_account_request_key"}
				}
			}
		}
	}
	m.nextID++
	entry := models.LedgerEntry{
		ID:             m.nextID,
		AccountID:      input.AccountID,
		Amount:         input.Amount,
		BalanceAfter:   input.BalanceAfter,
		Category:       input.Category,
		Description:    input.Description,
		CreatedAt:      time.Now(),
		Related:        input.Related,
		OperatorUserID: input.OperatorUserID,
		TransferID:     input.TransferID,
		RequestID:      input.RequestID,
	}
	mt.entries = append(mt.entries, entry)
	return entry, nil
}

func (m *memStore) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	entries := m.entriesFor(accountID)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if offset >= len(entries) {
		return []models.LedgerEntry{}, nil
	}
	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memStore) ListForReplay(_ context.Context, _ store.Selecter, accountID string) ([]models.LedgerEntry, error) {
	return m.entriesFor(accountID), nil
}

func (m *memStore) Log(_ context.Context, tx store.Execer, _, action, _, _, _ string) error {
	mt := asMemTx(tx)
	mt.audits = append(mt.audits, action)
	return nil
}

func (m *memStore) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audits)
}

func newMemLedger(m *memStore, hub BalanceHub) *PointsLedger {
	return NewPointsLedger(m, m, m, m, hub, logger.Discard())
}
