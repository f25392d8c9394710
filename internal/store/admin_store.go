package store

import (
	"context"
	"database/sql"
	"errors"
)

// Roles checked by the admin middleware. Super admins hold every role implicitly.
const (
	RoleAdjustPoints = "CanAdjustPoints"
	RoleViewLedger   = "CanViewLedger"
)

type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

// IsAdmin returns (isAdmin, isSuper). A user without an admins row is not an error.
func (s *AdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `SELECT is_super FROM admins WHERE user_id = $1`, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, false, nil
	case err != nil:
		return false, false, err
	}
	return true, isSuper, nil
}

func (s *AdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var granted bool
	if err := s.db.GetContext(ctx, &granted, `
		SELECT EXISTS (
			SELECT 1 FROM admin_roles WHERE admin_user_id = $1 AND role = $2
		)
	`, userID, role); err != nil {
		return false, err
	}
	return granted, nil
}

// EnsureSuperAdmin creates or promotes userID to super admin. Safe to repeat.
func (s *AdminStore) EnsureSuperAdmin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (user_id, is_super)
		VALUES ($1, true)
		ON CONFLICT (user_id) DO UPDATE SET is_super = true
	`, userID)
	return err
}
