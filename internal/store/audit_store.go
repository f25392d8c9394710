package store

import (
	"context"
	"time"
)

const (
	AuditActionAdjust   = "points.adjust"
	AuditActionTransfer = "points.transfer"
	AuditActionOpen     = "points.open_account"
)

// KnownAuditAction reports whether action is one the ledger writes.
func KnownAuditAction(action string) bool {
	switch action {
	case AuditActionAdjust, AuditActionTransfer, AuditActionOpen:
		return true
	}
	return false
}

type AuditStore struct {
	db DB
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log records an action inside tx. An empty actorID is stored as NULL (system action).
func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID, data string) error {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES (gen_random_uuid()::text, $1, $2, $3, $4, $5)
	`, actor, action, entityType, entityID, data)
	return err
}

// List pages through the audit trail, newest first. An empty action matches every row.
func (s *AuditStore) List(ctx context.Context, action string, limit, offset int) ([]AuditLog, error) {
	rows := []AuditLog{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data::text AS data, created_at
		FROM audit_logs
		WHERE $1 = '' OR action = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, action, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
