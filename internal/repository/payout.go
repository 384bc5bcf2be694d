package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type PayoutRepository struct {
	db *sql.DB
}

func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

const payoutColumns = `id, clinic_id, plan_id, payment_id, amount_cents, clinic_share_cents,
	transfer_id, status, last_error, created_at, updated_at`

func scanPayout(scan func(dest ...any) error) (*domain.Payout, error) {
	var p domain.Payout
	var transferID, lastError sql.NullString
	err := scan(
		&p.ID, &p.ClinicID, &p.PlanID, &p.PaymentID, &p.AmountCents, &p.ClinicShareCents,
		&transferID, &p.Status, &lastError, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if transferID.Valid {
		p.TransferID = &transferID.String
	}
	if lastError.Valid {
		p.LastError = &lastError.String
	}
	return &p, nil
}

// Create inserts a payout row. The payment_id unique constraint is the
// race guard: a concurrent duplicate surfaces as a unique violation, which
// callers map to ConflictError.
func (r *PayoutRepository) Create(ctx context.Context, ex Executor, p *domain.Payout) error {
	query := `INSERT INTO payouts (id, clinic_id, plan_id, payment_id, amount_cents, clinic_share_cents, transfer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	_, err := r.ex(ex).ExecContext(ctx, query,
		p.ID, p.ClinicID, p.PlanID, p.PaymentID, p.AmountCents, p.ClinicShareCents,
		p.TransferID, p.Status, p.CreatedAt,
	)
	if IsUniqueViolation(err) {
		return &domain.ConflictError{Message: "payout already exists for payment " + p.PaymentID}
	}
	return err
}

func (r *PayoutRepository) GetByID(ctx context.Context, ex Executor, id string) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`
	row := r.ex(ex).QueryRowContext(ctx, query, id)
	p, err := scanPayout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "payout", ID: id}
	}
	return p, err
}

// FindByPaymentID returns the payout for a payment if one exists, nil
// otherwise.
func (r *PayoutRepository) FindByPaymentID(ctx context.Context, ex Executor, paymentID string) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE payment_id = $1`
	row := r.ex(ex).QueryRowContext(ctx, query, paymentID)
	p, err := scanPayout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *PayoutRepository) ListPending(ctx context.Context, ex Executor) ([]domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE status = 'pending' ORDER BY created_at`
	rows, err := r.ex(ex).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PayoutRepository) MarkSucceeded(ctx context.Context, ex Executor, id, transferID string, now time.Time) error {
	query := `UPDATE payouts SET status = 'succeeded', transfer_id = $2, last_error = NULL, updated_at = $3 WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, id, transferID, now)
	return err
}

func (r *PayoutRepository) MarkFailed(ctx context.Context, ex Executor, id, reason string, now time.Time) error {
	query := `UPDATE payouts SET status = 'failed', last_error = $2, updated_at = $3 WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, id, reason, now)
	return err
}
