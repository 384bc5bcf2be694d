package domain

import "time"

// StatementLine is one settled payment of a clinic statement, flattened with
// its owner and payout context for export.
type StatementLine struct {
	PaymentID   string
	PlanID      string
	OwnerName   string
	OwnerEmail  string
	PetName     string
	Type        PaymentType
	SequenceNum *int
	AmountCents int64
	ProcessedAt *time.Time

	PayoutAmountCents *int64
	TransferID        *string
}
