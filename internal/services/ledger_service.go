package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"pointsledger/internal/db"
	"pointsledger/internal/models"
	"pointsledger/internal/store"
	"pointsledger/internal/websocket"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxDescriptionLength = 255

type PointsLedger struct {
	txRunner     db.TxRunner
	accountStore AccountStore
	ledgerStore  LedgerStore
	auditStore   AuditStore
	hub          BalanceHub
	logger       *slog.Logger
	tracer       trace.Tracer
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Getter, accountID, userID string) (models.Account, error)
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByUserID(ctx context.Context, userID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
	Reconcile(ctx context.Context) ([]models.Reconciliation, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, tx store.Getter, input store.LedgerEntryInput) (models.LedgerEntry, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error)
	ListForReplay(ctx context.Context, q store.Selecter, accountID string) ([]models.LedgerEntry, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

func NewPointsLedger(txRunner db.TxRunner, accountStore AccountStore, ledgerStore LedgerStore, auditStore AuditStore, hub BalanceHub, logger *slog.Logger) *PointsLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &PointsLedger{
		txRunner:     txRunner,
		accountStore: accountStore,
		ledgerStore:  ledgerStore,
		auditStore:   auditStore,
		hub:          hub,
		logger:       logger,
		tracer:       otel.Tracer("pointsledger/ledger"),
	}
}

type AdjustRequest struct {
	AccountID      string
	Amount         int64
	Category       models.Category
	Description    string
	Related        *models.EntityRef
	OperatorUserID *string
	RequestID      *string
}

type TransferRequest struct {
	FromAccountID     string
	ToAccountID       string
	Amount            int64
	DebitCategory     models.Category
	CreditCategory    models.Category
	DebitDescription  string
	CreditDescription string
	Related           *models.EntityRef
	RequestID         *string
}

type OpenAccountRequest struct {
	UserID       string
	InitialGrant int64
	Description  string
}

// posting is one signed movement on an already locked account.
type posting struct {
	amount      int64
	category    models.Category
	description string
	related     *models.EntityRef
	operator    *string
	transferID  *string
	requestID   *string
}

// Adjust applies a single signed movement to one account.
func (l *PointsLedger) Adjust(ctx context.Context, req AdjustRequest) (models.LedgerEntry, error) {
	if req.Amount == 0 {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	if err := validatePosting(req.Category, req.Description, req.Related); err != nil {
		return models.LedgerEntry{}, err
	}
	ctx, span := l.tracer.Start(ctx, "ledger.Adjust", trace.WithAttributes(
		attribute.String("ledger.account_id", req.AccountID),
		attribute.Int64("ledger.amount", req.Amount),
		attribute.String("ledger.category", string(req.Category)),
	))
	defer span.End()

	var entry models.LedgerEntry
	var owner string
	err := l.txRunner.WithTx(ctx, func(tx store.Tx) error {
		account, err := l.accountStore.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		owner = account.UserID
		entry, err = l.apply(ctx, tx, account, posting{
			amount:      req.Amount,
			category:    req.Category,
			description: req.Description,
			related:     req.Related,
			operator:    req.OperatorUserID,
			requestID:   req.RequestID,
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"entry_id": entry.ID,
			"amount":   entry.Amount,
			"category": entry.Category,
		})
		return l.auditStore.Log(ctx, tx, derefString(req.OperatorUserID), store.AuditActionAdjust, "account", req.AccountID, string(data))
	})
	if err != nil {
		err = translateError(err, ErrDuplicateRequest)
		l.fail(ctx, span, "adjust rejected", err, slog.String("account_id", req.AccountID), slog.Int64("amount", req.Amount))
		return models.LedgerEntry{}, err
	}
	l.notify(owner, entry)
	return entry, nil
}

// Transfer debits one account and credits another in a single commit.
// Both rows are locked in ascending id order so opposite transfers cannot deadlock.
func (l *PointsLedger) Transfer(ctx context.Context, req TransferRequest) (models.LedgerEntry, models.LedgerEntry, error) {
	if req.Amount <= 0 {
		return models.LedgerEntry{}, models.LedgerEntry{}, ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return models.LedgerEntry{}, models.LedgerEntry{}, ErrSelfTransfer
	}
	if err := validatePosting(req.DebitCategory, req.DebitDescription, req.Related); err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}
	if err := validatePosting(req.CreditCategory, req.CreditDescription, nil); err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}
	ctx, span := l.tracer.Start(ctx, "ledger.Transfer", trace.WithAttributes(
		attribute.String("ledger.from_account_id", req.FromAccountID),
		attribute.String("ledger.to_account_id", req.ToAccountID),
		attribute.Int64("ledger.amount", req.Amount),
	))
	defer span.End()

	var debit, credit models.LedgerEntry
	var fromOwner, toOwner string
	err := l.txRunner.WithTx(ctx, func(tx store.Tx) error {
		fromAccount, toAccount, err := lockTwoAccounts(ctx, tx, l.accountStore, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}
		fromOwner, toOwner = fromAccount.UserID, toAccount.UserID
		transferID := uuid.NewString()
		// Both legs record the paying party as operator.
		operator := fromAccount.UserID
		debit, err = l.apply(ctx, tx, fromAccount, posting{
			amount:      -req.Amount,
			category:    req.DebitCategory,
			description: req.DebitDescription,
			related:     req.Related,
			operator:    &operator,
			transferID:  &transferID,
			requestID:   req.RequestID,
		})
		if err != nil {
			return err
		}
		// The idempotency key belongs to the payer; the credit leg is found via transfer_id.
		credit, err = l.apply(ctx, tx, toAccount, posting{
			amount:      req.Amount,
			category:    req.CreditCategory,
			description: req.CreditDescription,
			related:     req.Related,
			operator:    &operator,
			transferID:  &transferID,
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"transfer_id":     transferID,
			"from_account_id": req.FromAccountID,
			"to_account_id":   req.ToAccountID,
			"amount":          req.Amount,
		})
		return l.auditStore.Log(ctx, tx, operator, store.AuditActionTransfer, "transfer", transferID, string(data))
	})
	if err != nil {
		err = translateError(err, ErrDuplicateRequest)
		l.fail(ctx, span, "transfer rejected", err,
			slog.String("from_account_id", req.FromAccountID),
			slog.String("to_account_id", req.ToAccountID),
			slog.Int64("amount", req.Amount),
		)
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}
	l.notify(fromOwner, debit)
	l.notify(toOwner, credit)
	return debit, credit, nil
}

// OpenAccount creates the account of a newly registered user, with an initial grant entry when the grant is positive.
func (l *PointsLedger) OpenAccount(ctx context.Context, req OpenAccountRequest) (models.Account, *models.LedgerEntry, error) {
	if req.InitialGrant < 0 {
		return models.Account{}, nil, ErrInvalidAmount
	}
	if req.UserID == "" || utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		return models.Account{}, nil, ErrInvalidRequest
	}
	description := req.Description
	if description == "" {
		description = "Registration bonus"
	}
	ctx, span := l.tracer.Start(ctx, "ledger.OpenAccount", trace.WithAttributes(
		attribute.String("ledger.user_id", req.UserID),
		attribute.Int64("ledger.initial_grant", req.InitialGrant),
	))
	defer span.End()

	var account models.Account
	var grant *models.LedgerEntry
	err := l.txRunner.WithTx(ctx, func(tx store.Tx) error {
		var err error
		account, err = l.accountStore.Create(ctx, tx, uuid.NewString(), req.UserID)
		if err != nil {
			return err
		}
		if req.InitialGrant > 0 {
			entry, err := l.apply(ctx, tx, account, posting{
				amount:      req.InitialGrant,
				category:    models.CategoryInitialGrant,
				description: description,
			})
			if err != nil {
				return err
			}
			grant = &entry
			account.Balance = entry.BalanceAfter
		}
		data, _ := json.Marshal(map[string]any{
			"user_id":       req.UserID,
			"initial_grant": req.InitialGrant,
		})
		return l.auditStore.Log(ctx, tx, "", store.AuditActionOpen, "account", account.ID, string(data))
	})
	if err != nil {
		err = translateError(err, ErrAccountExists)
		l.fail(ctx, span, "open account failed", err, slog.String("user_id", req.UserID))
		return models.Account{}, nil, err
	}
	if grant != nil {
		l.notify(account.UserID, *grant)
	}
	return account, grant, nil
}

// apply is the single-account step shared by Adjust, Transfer and OpenAccount.
// The account row must already be locked by tx.
func (l *PointsLedger) apply(ctx context.Context, tx store.Tx, account models.Account, p posting) (models.LedgerEntry, error) {
	newBalance := account.Balance + p.amount
	if p.amount > 0 && newBalance < account.Balance {
		return models.LedgerEntry{}, ErrInvalidAmount
	}
	if newBalance < 0 {
		return models.LedgerEntry{}, ErrInsufficientBalance
	}
	if err := l.accountStore.UpdateBalance(ctx, tx, account.ID, newBalance); err != nil {
		return models.LedgerEntry{}, err
	}
	return l.ledgerStore.Insert(ctx, tx, store.LedgerEntryInput{
		AccountID:      account.ID,
		Amount:         p.amount,
		BalanceAfter:   newBalance,
		Category:       p.category,
		Description:    p.description,
		Related:        p.related,
		OperatorUserID: p.operator,
		TransferID:     p.transferID,
		RequestID:      p.requestID,
	})
}

func (l *PointsLedger) Account(ctx context.Context, accountID string) (models.Account, error) {
	account, err := l.accountStore.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, readError(err)
	}
	return account, nil
}

func (l *PointsLedger) AccountByUser(ctx context.Context, userID string) (models.Account, error) {
	account, err := l.accountStore.GetByUserID(ctx, userID)
	if err != nil {
		return models.Account{}, readError(err)
	}
	return account, nil
}

// Entries pages through an account's history, newest first.
func (l *PointsLedger) Entries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	if _, err := l.Account(ctx, accountID); err != nil {
		return nil, err
	}
	entries, err := l.ledgerStore.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, readError(err)
	}
	return entries, nil
}

// Verify replays an account's entries in creation order under the row lock and
// compares the running sum with every balance_after and with the stored balance.
func (l *PointsLedger) Verify(ctx context.Context, accountID string) (models.Reconciliation, error) {
	var result models.Reconciliation
	err := l.txRunner.WithTx(ctx, func(tx store.Tx) error {
		account, err := l.accountStore.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		entries, err := l.ledgerStore.ListForReplay(ctx, tx, accountID)
		if err != nil {
			return err
		}
		result = replay(account, entries)
		return nil
	})
	if err != nil {
		return models.Reconciliation{}, readError(err)
	}
	if !result.Consistent() {
		l.logger.Error("ledger replay mismatch",
			slog.String("account_id", accountID),
			slog.Int64("stored_balance", result.StoredBalance),
			slog.Int64("ledger_sum", result.LedgerSum),
		)
	}
	return result, nil
}

// ReconcileAll compares every stored balance with the sum of its entries.
func (l *PointsLedger) ReconcileAll(ctx context.Context) ([]models.Reconciliation, error) {
	rows, err := l.accountStore.Reconcile(ctx)
	if err != nil {
		return nil, readError(err)
	}
	return rows, nil
}

func replay(account models.Account, entries []models.LedgerEntry) models.Reconciliation {
	result := models.Reconciliation{
		AccountID:     account.ID,
		StoredBalance: account.Balance,
		EntryCount:    int64(len(entries)),
	}
	var running int64
	for _, entry := range entries {
		running += entry.Amount
		if result.FirstBrokenID == nil && entry.BalanceAfter != running {
			id := entry.ID
			result.FirstBrokenID = &id
		}
	}
	result.LedgerSum = running
	result.Difference = account.Balance - running
	return result
}

func (l *PointsLedger) notify(userID string, entry models.LedgerEntry) {
	if l.hub == nil || userID == "" {
		return
	}
	l.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		AccountID: entry.AccountID,
		UserID:    userID,
		Balance:   entry.BalanceAfter,
		Amount:    entry.Amount,
		EntryID:   entry.ID,
		Category:  string(entry.Category),
	})
}

func (l *PointsLedger) fail(ctx context.Context, span trace.Span, msg string, err error, attrs ...slog.Attr) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	level := slog.LevelInfo
	if errors.Is(err, ErrLedgerUnavailable) {
		level = slog.LevelError
	}
	args := make([]any, 0, len(attrs)+1)
	for _, attr := range attrs {
		args = append(args, attr)
	}
	args = append(args, slog.String("error", err.Error()))
	l.logger.Log(ctx, level, msg, args...)
}

func validatePosting(category models.Category, description string, related *models.EntityRef) error {
	if !category.Valid() {
		return ErrInvalidRequest
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return ErrInvalidRequest
	}
	if related != nil && related.Validate() != nil {
		return ErrInvalidRequest
	}
	return nil
}

func lockTwoAccounts(ctx context.Context, tx store.Getter, accountStore AccountStore, firstID, secondID string) (models.Account, models.Account, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	leftAccount, err := accountStore.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	rightAccount, err := accountStore.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if firstID == leftID {
		return leftAccount, rightAccount, nil
	}
	return rightAccount, leftAccount, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringPtr(value string) *string {
	return &value
}

func entityLabel(kind models.EntityKind, id int64) string {
	return string(kind) + " #" + strconv.FormatInt(id, 10)
}
