package domain

import "time"

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutSucceeded PayoutStatus = "succeeded"
	PayoutFailed    PayoutStatus = "failed"
)

// Payout is the transfer of a clinic's share of one succeeded payment.
// payments.id is unique across payouts: at most one payout per payment.
type Payout struct {
	ID        string
	ClinicID  string
	PlanID    string
	PaymentID string

	AmountCents      int64 // amount transferred to the clinic
	ClinicShareCents int64 // bonus share included in AmountCents

	TransferID *string
	Status     PayoutStatus
	LastError  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
