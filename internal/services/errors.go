package services

import (
	"database/sql"
	"errors"
	"fmt"

	"pointsledger/internal/db"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSelfTransfer        = errors.New("cannot transfer to the same account")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrInvalidRequest      = errors.New("invalid ledger request")
	ErrDuplicateRequest    = errors.New("duplicate request id")
	ErrAccountExists       = errors.New("account already exists")
)

// domainErrors pass through unchanged; everything else is a storage failure.
var domainErrors = []error{
	ErrInvalidAmount,
	ErrSelfTransfer,
	ErrInsufficientBalance,
	ErrAccountNotFound,
	ErrInvalidRequest,
	ErrDuplicateRequest,
	ErrAccountExists,
}

// translateError maps a failure inside a ledger transaction onto the sentinel taxonomy.
// onUnique is returned for unique violations; the caller knows which constraint it can hit.
func translateError(err, onUnique error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	if db.IsUniqueViolation(err) {
		return onUnique
	}
	return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
}

func readError(err error) error {
	return translateError(err, ErrLedgerUnavailable)
}
