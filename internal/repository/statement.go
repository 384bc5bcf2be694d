package repository

import (
	"context"
	"database/sql"
	"time"

	"pawpay/internal/domain"
)

type StatementRepository struct {
	db *sql.DB
}

func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

func (r *StatementRepository) ex(ex Executor) Executor {
	if ex != nil {
		return ex
	}
	return r.db
}

// ListLines returns the settled payments of a clinic in [from, to), joined
// with owner and payout context, oldest first.
func (r *StatementRepository) ListLines(ctx context.Context, ex Executor, clinicID string, from, to time.Time) ([]domain.StatementLine, error) {
	query := `SELECT
			pm.id, pm.plan_id, o.full_name, o.email, o.pet_name,
			pm.type, pm.sequence_num, pm.amount_cents, pm.processed_at,
			po.amount_cents, po.transfer_id
		FROM payments pm
		JOIN plans pl ON pl.id = pm.plan_id
		JOIN owners o ON o.id = pl.owner_id
		LEFT JOIN payouts po ON po.payment_id = pm.id AND po.status = 'succeeded'
		WHERE pl.clinic_id = $1
			AND pm.status = 'succeeded'
			AND pm.processed_at >= $2 AND pm.processed_at < $3
		ORDER BY pm.processed_at`

	rows, err := r.ex(ex).QueryContext(ctx, query, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StatementLine
	for rows.Next() {
		var line domain.StatementLine
		var seq sql.NullInt64
		var processedAt sql.NullTime
		var payoutCents sql.NullInt64
		var transferID sql.NullString
		if err := rows.Scan(
			&line.PaymentID, &line.PlanID, &line.OwnerName, &line.OwnerEmail, &line.PetName,
			&line.Type, &seq, &line.AmountCents, &processedAt,
			&payoutCents, &transferID,
		); err != nil {
			return nil, err
		}
		if seq.Valid {
			n := int(seq.Int64)
			line.SequenceNum = &n
		}
		if processedAt.Valid {
			line.ProcessedAt = &processedAt.Time
		}
		if payoutCents.Valid {
			line.PayoutAmountCents = &payoutCents.Int64
		}
		if transferID.Valid {
			line.TransferID = &transferID.String
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
