package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

const planColumns = `id, clinic_id, owner_id, total_bill_cents, fee_cents, total_with_fee_cents,
	deposit_cents, installment_cents, num_installments, remaining_cents, status,
	deposit_paid_at, completed_at, next_payment_at, created_at, updated_at`

func scanPlan(scan func(dest ...any) error) (*domain.Plan, error) {
	var p domain.Plan
	var depositPaidAt, completedAt, nextPaymentAt sql.NullTime
	err := scan(
		&p.ID, &p.ClinicID, &p.OwnerID, &p.TotalBillCents, &p.FeeCents, &p.TotalWithFeeCents,
		&p.DepositCents, &p.InstallmentCents, &p.NumInstallments, &p.RemainingCents, &p.Status,
		&depositPaidAt, &completedAt, &nextPaymentAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if depositPaidAt.Valid {
		p.DepositPaidAt = &depositPaidAt.Time
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	if nextPaymentAt.Valid {
		p.NextPaymentAt = &nextPaymentAt.Time
	}
	return &p, nil
}

func (r *PlanRepository) Create(ctx context.Context, ex Executor, p *domain.Plan) error {
	query := `INSERT INTO plans (id, clinic_id, owner_id, total_bill_cents, fee_cents, total_with_fee_cents,
			deposit_cents, installment_cents, num_installments, remaining_cents, status,
			next_payment_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`
	_, err := r.ex(ex).ExecContext(ctx, query,
		p.ID, p.ClinicID, p.OwnerID, p.TotalBillCents, p.FeeCents, p.TotalWithFeeCents,
		p.DepositCents, p.InstallmentCents, p.NumInstallments, p.RemainingCents, p.Status,
		p.NextPaymentAt, p.CreatedAt,
	)
	return err
}

func (r *PlanRepository) GetByID(ctx context.Context, ex Executor, id string) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	row := r.ex(ex).QueryRowContext(ctx, query, id)
	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "plan", ID: id}
	}
	return p, err
}

// SetStatus moves a plan between lifecycle states and stamps the matching
// timestamp column for deposit_paid / completed transitions.
func (r *PlanRepository) SetStatus(ctx context.Context, ex Executor, id string, status domain.PlanStatus, now time.Time) error {
	query := `UPDATE plans SET status = $2, updated_at = $3,
		deposit_paid_at = CASE WHEN $2 = 'deposit_paid' OR $2 = 'active' THEN COALESCE(deposit_paid_at, $3) ELSE deposit_paid_at END,
		completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END
		WHERE id = $1`
	res, err := r.ex(ex).ExecContext(ctx, query, id, status, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "plan", ID: id}
	}
	return nil
}

// ApplyPayment decrements the outstanding balance and refreshes the next
// scheduled payment marker after a success.
func (r *PlanRepository) ApplyPayment(ctx context.Context, ex Executor, id string, amountCents int64, nextPaymentAt *time.Time, now time.Time) error {
	query := `UPDATE plans SET remaining_cents = GREATEST(remaining_cents - $2, 0),
		next_payment_at = $3, updated_at = $4 WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, id, amountCents, nextPaymentAt, now)
	return err
}

// ListDelinquentWithoutCollection returns active plans that have a payment
// overdue past the grace cutoff and no open soft-collection record.
func (r *PlanRepository) ListDelinquentWithoutCollection(ctx context.Context, ex Executor, cutoff time.Time) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans p
		WHERE p.status IN ('deposit_paid', 'active')
		AND EXISTS (
			SELECT 1 FROM payments pm
			WHERE pm.plan_id = p.id AND pm.status IN ('pending', 'failed', 'retried') AND pm.scheduled_at < $1
		)
		AND NOT EXISTS (
			SELECT 1 FROM soft_collections sc
			WHERE sc.plan_id = p.id AND sc.stage IN ('day_1_reminder', 'day_7_followup', 'day_14_final')
		)`

	rows, err := r.ex(ex).QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
