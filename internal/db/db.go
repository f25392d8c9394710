package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"pointsledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrRetryLimit = errors.New("transaction retry limit exceeded")

type TxRunner interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error
}

type Options struct {
	Isolation   sql.IsolationLevel
	MaxAttempts int
}

type SQLXTxRunner struct {
	db   *sqlx.DB
	opts Options
}

func NewTxRunner(db *sqlx.DB, opts Options) SQLXTxRunner {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return SQLXTxRunner{db: db, opts: opts}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return WithTx(ctx, r.db, r.opts, fn)
}

func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// ParseIsolation maps a config value such as "serializable" to a sql isolation level.
func ParseIsolation(raw string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "default":
		return sql.LevelDefault, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", raw)
	}
}

// WithTx runs fn in a transaction. An error from fn or from commit leaves nothing behind;
// only serialization and deadlock failures are retried, and only when opts allow it.
func WithTx(ctx context.Context, db *sqlx.DB, opts Options, fn func(store.Tx) error) error {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; ; attempt++ {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: opts.Isolation})
		if err != nil {
			return err
		}
		err = fn(tx)
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			if maxAttempts > 1 {
				return fmt.Errorf("%w: %w", ErrRetryLimit, err)
			}
			return err
		}
		sleepWithBackoff(ctx, attempt)
	}
}

// IsRetryable reports serialization failures and detected deadlocks.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// IsUniqueViolation reports a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}

func sleepWithBackoff(ctx context.Context, attempt int) {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
