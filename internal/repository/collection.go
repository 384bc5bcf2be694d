package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type CollectionRepository struct {
	db *sql.DB
}

func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

const collectionColumns = `id, plan_id, stage, started_at, last_escalated_at, next_escalation_at, created_at, updated_at`

func scanCollection(scan func(dest ...any) error) (*domain.SoftCollection, error) {
	var c domain.SoftCollection
	var lastEscalatedAt, nextEscalationAt sql.NullTime
	err := scan(
		&c.ID, &c.PlanID, &c.Stage, &c.StartedAt, &lastEscalatedAt, &nextEscalationAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastEscalatedAt.Valid {
		c.LastEscalatedAt = &lastEscalatedAt.Time
	}
	if nextEscalationAt.Valid {
		c.NextEscalationAt = &nextEscalationAt.Time
	}
	return &c, nil
}

func (r *CollectionRepository) Create(ctx context.Context, ex Executor, c *domain.SoftCollection) error {
	query := `INSERT INTO soft_collections (id, plan_id, stage, started_at, last_escalated_at, next_escalation_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := r.ex(ex).ExecContext(ctx, query,
		c.ID, c.PlanID, c.Stage, c.StartedAt, c.LastEscalatedAt, c.NextEscalationAt, c.CreatedAt,
	)
	return err
}

// FindActiveByPlan returns the open collection record of a plan, or nil.
func (r *CollectionRepository) FindActiveByPlan(ctx context.Context, ex Executor, planID string) (*domain.SoftCollection, error) {
	query := `SELECT ` + collectionColumns + ` FROM soft_collections
		WHERE plan_id = $1 AND stage IN ('day_1_reminder', 'day_7_followup', 'day_14_final')`
	row := r.ex(ex).QueryRowContext(ctx, query, planID)
	c, err := scanCollection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListDueForEscalation returns open records whose next escalation time has
// passed.
func (r *CollectionRepository) ListDueForEscalation(ctx context.Context, ex Executor, asOf time.Time) ([]domain.SoftCollection, error) {
	query := `SELECT ` + collectionColumns + ` FROM soft_collections
		WHERE stage IN ('day_1_reminder', 'day_7_followup', 'day_14_final')
		AND next_escalation_at IS NOT NULL AND next_escalation_at <= $1
		ORDER BY next_escalation_at`
	rows, err := r.ex(ex).QueryContext(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SoftCollection
	for rows.Next() {
		c, err := scanCollection(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CollectionRepository) SetStage(ctx context.Context, ex Executor, id string, stage domain.CollectionStage, nextEscalationAt *time.Time, now time.Time) error {
	query := `UPDATE soft_collections SET stage = $2, last_escalated_at = $3, next_escalation_at = $4, updated_at = $3
		WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, id, stage, now, nextEscalationAt)
	return err
}
