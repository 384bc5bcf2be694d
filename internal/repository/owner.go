package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type OwnerRepository struct {
	db *sql.DB
}

func NewOwnerRepository(db *sql.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

func (r *OwnerRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

const ownerColumns = `id, clinic_id, email, full_name, phone, pet_name, customer_ref, payment_method_ref, created_at, updated_at`

func scanOwner(row *sql.Row) (*domain.Owner, error) {
	var o domain.Owner
	var customerRef, paymentMethodRef sql.NullString
	err := row.Scan(
		&o.ID, &o.ClinicID, &o.Email, &o.FullName, &o.Phone, &o.PetName,
		&customerRef, &paymentMethodRef, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerRef.Valid {
		o.CustomerRef = &customerRef.String
	}
	if paymentMethodRef.Valid {
		o.PaymentMethodRef = &paymentMethodRef.String
	}
	return &o, nil
}

// FindByClinicEmail returns the owner for a (clinic, email) pair, or a
// NotFoundError; enrollment reuses owners per clinic+email.
func (r *OwnerRepository) FindByClinicEmail(ctx context.Context, ex Executor, clinicID, email string) (*domain.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE clinic_id = $1 AND email = $2`
	o, err := scanOwner(r.ex(ex).QueryRowContext(ctx, query, clinicID, email))
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "owner", ID: email}
	}
	return o, err
}

func (r *OwnerRepository) GetByID(ctx context.Context, ex Executor, id string) (*domain.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE id = $1`
	o, err := scanOwner(r.ex(ex).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "owner", ID: id}
	}
	return o, err
}

func (r *OwnerRepository) Create(ctx context.Context, ex Executor, o *domain.Owner) error {
	query := `INSERT INTO owners (id, clinic_id, email, full_name, phone, pet_name, customer_ref, payment_method_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	_, err := r.ex(ex).ExecContext(ctx, query,
		o.ID, o.ClinicID, o.Email, o.FullName, o.Phone, o.PetName,
		o.CustomerRef, o.PaymentMethodRef, o.CreatedAt,
	)
	return err
}

// UpdateContact refreshes the mutable contact fields of a reused owner.
func (r *OwnerRepository) UpdateContact(ctx context.Context, ex Executor, o *domain.Owner, now time.Time) error {
	query := `UPDATE owners SET full_name = $2, phone = $3, pet_name = $4, updated_at = $5 WHERE id = $1`
	_, err := r.ex(ex).ExecContext(ctx, query, o.ID, o.FullName, o.Phone, o.PetName, now)
	return err
}
