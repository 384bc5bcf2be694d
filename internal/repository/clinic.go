package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type ClinicRepository struct {
	db *sql.DB
}

func NewClinicRepository(db *sql.DB) *ClinicRepository {
	return &ClinicRepository{db: db}
}

func (r *ClinicRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

func (r *ClinicRepository) Create(ctx context.Context, ex Executor, c *domain.Clinic) error {
	query := `INSERT INTO clinics (id, name, email, status, payout_account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`
	_, err := r.ex(ex).ExecContext(ctx, query, c.ID, c.Name, c.Email, c.Status, c.PayoutAccountID, c.CreatedAt)
	return err
}

func (r *ClinicRepository) GetByID(ctx context.Context, ex Executor, id string) (*domain.Clinic, error) {
	query := `SELECT id, name, email, status, payout_account_id, created_at, updated_at
		FROM clinics WHERE id = $1`

	var c domain.Clinic
	var payoutAccount sql.NullString
	err := r.ex(ex).QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Status, &payoutAccount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "clinic", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if payoutAccount.Valid {
		c.PayoutAccountID = &payoutAccount.String
	}
	return &c, nil
}

func (r *ClinicRepository) SetStatus(ctx context.Context, ex Executor, id string, status domain.ClinicStatus, now time.Time) error {
	query := `UPDATE clinics SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.ex(ex).ExecContext(ctx, query, id, status, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "clinic", ID: id}
	}
	return nil
}

func (r *ClinicRepository) SetPayoutAccount(ctx context.Context, ex Executor, id, accountRef string, now time.Time) error {
	query := `UPDATE clinics SET payout_account_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.ex(ex).ExecContext(ctx, query, id, accountRef, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "clinic", ID: id}
	}
	return nil
}
