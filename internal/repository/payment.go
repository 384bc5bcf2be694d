package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

const paymentColumns = `id, plan_id, type, sequence_num, amount_cents, status, retry_count,
	scheduled_at, processed_at, failure_reason, processor_ref, created_at, updated_at`

func scanPayment(scan func(dest ...any) error) (*domain.Payment, error) {
	var p domain.Payment
	var seq sql.NullInt64
	var processedAt sql.NullTime
	var failureReason, processorRef sql.NullString
	err := scan(
		&p.ID, &p.PlanID, &p.Type, &seq, &p.AmountCents, &p.Status, &p.RetryCount,
		&p.ScheduledAt, &processedAt, &failureReason, &processorRef, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if seq.Valid {
		n := int(seq.Int64)
		p.SequenceNum = &n
	}
	if processedAt.Valid {
		p.ProcessedAt = &processedAt.Time
	}
	if failureReason.Valid {
		p.FailureReason = &failureReason.String
	}
	if processorRef.Valid {
		p.ProcessorRef = &processorRef.String
	}
	return &p, nil
}

// CreateBatch inserts the whole payment schedule of a plan. Runs inside the
// enrollment transaction so partial schedules are never visible.
func (r *PaymentRepository) CreateBatch(ctx context.Context, ex Executor, payments []domain.Payment) error {
	query := `INSERT INTO payments (id, plan_id, type, sequence_num, amount_cents, status, retry_count, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	for i := range payments {
		p := &payments[i]
		var seq any
		if p.SequenceNum != nil {
			seq = *p.SequenceNum
		}
		if _, err := r.ex(ex).ExecContext(ctx, query,
			p.ID, p.PlanID, p.Type, seq, p.AmountCents, p.Status, p.RetryCount, p.ScheduledAt, p.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, ex Executor, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	row := r.ex(ex).QueryRowContext(ctx, query, id)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "payment", ID: id}
	}
	return p, err
}

// GetByProcessorRef is the sole entry point from external callbacks.
func (r *PaymentRepository) GetByProcessorRef(ctx context.Context, ex Executor, ref string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE processor_ref = $1`
	row := r.ex(ex).QueryRowContext(ctx, query, ref)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "payment", ID: ref}
	}
	return p, err
}

func (r *PaymentRepository) ListByPlan(ctx context.Context, ex Executor, planID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE plan_id = $1 ORDER BY scheduled_at`
	rows, err := r.ex(ex).QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListDue returns pending payments whose scheduled date has passed, oldest
// first, for the due-charge sweep.
func (r *PaymentRepository) ListDue(ctx context.Context, ex Executor, asOf time.Time, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND scheduled_at <= $1 ORDER BY scheduled_at LIMIT $2`
	rows, err := r.ex(ex).QueryContext(ctx, query, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) SetStatus(ctx context.Context, ex Executor, id string, status domain.PaymentStatus, now time.Time) error {
	query := `UPDATE payments SET status = $2, updated_at = $3,
		processed_at = CASE WHEN $2 = 'succeeded' THEN $3 ELSE processed_at END
		WHERE id = $1`
	res, err := r.ex(ex).ExecContext(ctx, query, id, status, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "payment", ID: id}
	}
	return nil
}

func (r *PaymentRepository) SetProcessorRef(ctx context.Context, ex Executor, id, ref string, now time.Time) error {
	query := `UPDATE payments SET processor_ref = $2, updated_at = $3 WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, id, ref, now)
	return err
}

// MarkFailed records the failure reason and bumps the retry counter.
func (r *PaymentRepository) MarkFailed(ctx context.Context, ex Executor, id string, status domain.PaymentStatus, reason string, now time.Time) error {
	query := `UPDATE payments SET status = $2, failure_reason = $3, retry_count = retry_count + 1, updated_at = $4
		WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, id, status, reason, now)
	return err
}

// WriteOffByPlan terminates every non-final payment of a plan; used by
// cancellation and default.
func (r *PaymentRepository) WriteOffByPlan(ctx context.Context, ex Executor, planID string, now time.Time) error {
	query := `UPDATE payments SET status = 'written_off', updated_at = $2
		WHERE plan_id = $1 AND status NOT IN ('succeeded', 'written_off')`
	_, err := r.ex(ex).ExecContext(ctx, query, planID, now)
	return err
}

// OutstandingByPlan sums the amounts not yet collected for a plan.
func (r *PaymentRepository) OutstandingByPlan(ctx context.Context, ex Executor, planID string) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		WHERE plan_id = $1 AND status NOT IN ('succeeded', 'written_off')`
	var total int64
	if err := r.ex(ex).QueryRowContext(ctx, query, planID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
