package domain

import "time"

type PaymentType string

const (
	PaymentDeposit     PaymentType = "deposit"
	PaymentInstallment PaymentType = "installment"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRetried    PaymentStatus = "retried"
	PaymentWrittenOff PaymentStatus = "written_off"
)

// Payment is one scheduled charge under a plan. Created in a batch by the
// enrollment engine, mutated only by the payment lifecycle.
type Payment struct {
	ID          string
	PlanID      string
	Type        PaymentType
	SequenceNum *int // nil for the deposit
	AmountCents int64

	Status     PaymentStatus
	RetryCount int

	ScheduledAt   time.Time
	ProcessedAt   *time.Time
	FailureReason *string

	// reference id assigned by the external processor; callbacks resolve
	// back to the payment through it
	ProcessorRef *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TerminalFailure reports whether the payment can no longer be retried.
func (p *Payment) TerminalFailure() bool {
	return p.Status == PaymentWrittenOff
}
