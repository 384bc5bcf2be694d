package domain

import "time"

type PlanStatus string

const (
	PlanPending     PlanStatus = "pending"
	PlanDepositPaid PlanStatus = "deposit_paid"
	PlanActive      PlanStatus = "active"
	PlanCompleted   PlanStatus = "completed"
	PlanCancelled   PlanStatus = "cancelled"
	PlanDefaulted   PlanStatus = "defaulted"
)

// Plan is one owner's financing agreement for one vet bill. It is the unit
// of risk-pool and payout accounting.
//
// Invariants: TotalWithFeeCents = TotalBillCents + FeeCents, and the sum of
// the scheduled payments equals TotalWithFeeCents exactly (the last
// installment absorbs rounding).
type Plan struct {
	ID       string
	ClinicID string
	OwnerID  string

	TotalBillCents    int64
	FeeCents          int64
	TotalWithFeeCents int64
	DepositCents      int64
	InstallmentCents  int64
	NumInstallments   int
	RemainingCents    int64

	Status PlanStatus

	DepositPaidAt *time.Time
	CompletedAt   *time.Time
	NextPaymentAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payable reports whether payments succeeding under this plan are eligible
// for clinic payout.
func (p *Plan) Payable() bool {
	return p.Status == PlanActive || p.Status == PlanDepositPaid
}
