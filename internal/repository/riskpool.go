package repository

import (
	"context"
	"database/sql"

	"pawpay/internal/domain"
)

// RiskPoolRepository is append-only: entries are never updated or deleted,
// and the balance is always derived on read.
type RiskPoolRepository struct {
	db *sql.DB
}

func NewRiskPoolRepository(db *sql.DB) *RiskPoolRepository {
	return &RiskPoolRepository{db: db}
}

func (r *RiskPoolRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

func (r *RiskPoolRepository) Append(ctx context.Context, ex Executor, e *domain.RiskPoolEntry) error {
	query := `INSERT INTO risk_pool_entries (id, plan_id, type, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.ex(ex).ExecContext(ctx, query, e.ID, e.PlanID, e.Type, e.AmountCents, e.CreatedAt)
	return err
}

// Balance aggregates contributions + recoveries - claims.
func (r *RiskPoolRepository) Balance(ctx context.Context, ex Executor) (int64, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN type = 'claim' THEN -amount_cents ELSE amount_cents END), 0)
		FROM risk_pool_entries`
	var balance int64
	if err := r.ex(ex).QueryRowContext(ctx, query).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// OutstandingExposure sums the unpaid guarantee exposure across plans that
// are still collecting.
func (r *RiskPoolRepository) OutstandingExposure(ctx context.Context, ex Executor) (int64, error) {
	query := `SELECT COALESCE(SUM(remaining_cents), 0) FROM plans
		WHERE status IN ('pending', 'deposit_paid', 'active')`
	var exposure int64
	if err := r.ex(ex).QueryRowContext(ctx, query).Scan(&exposure); err != nil {
		return 0, err
	}
	return exposure, nil
}

func (r *RiskPoolRepository) ListByPlan(ctx context.Context, ex Executor, planID string) ([]domain.RiskPoolEntry, error) {
	query := `SELECT id, plan_id, type, amount_cents, created_at FROM risk_pool_entries
		WHERE plan_id = $1 ORDER BY created_at`
	rows, err := r.ex(ex).QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RiskPoolEntry
	for rows.Next() {
		var e domain.RiskPoolEntry
		if err := rows.Scan(&e.ID, &e.PlanID, &e.Type, &e.AmountCents, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
