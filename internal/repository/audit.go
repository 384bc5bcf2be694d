package repository

import (
	"context"
	"database/sql"

	"pawpay/internal/domain"
)

// AuditRepository appends immutable audit rows. There is deliberately no
// update or delete.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

func (r *AuditRepository) Append(ctx context.Context, ex Executor, e *domain.AuditLogEntry) error {
	query := `INSERT INTO audit_log (id, entity_type, entity_id, action, old_value, new_value, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.ex(ex).ExecContext(ctx, query,
		e.ID, e.EntityType, e.EntityID, e.Action, e.OldValue, e.NewValue, e.ActorType, e.ActorID, e.CreatedAt,
	)
	return err
}

func (r *AuditRepository) ListByEntity(ctx context.Context, ex Executor, entityType, entityID string) ([]domain.AuditLogEntry, error) {
	query := `SELECT id, entity_type, entity_id, action, old_value, new_value, actor_type, actor_id, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at`
	rows, err := r.ex(ex).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &oldValue, &newValue, &e.ActorType, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if oldValue.Valid {
			e.OldValue = &oldValue.String
		}
		if newValue.Valid {
			e.NewValue = &newValue.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
