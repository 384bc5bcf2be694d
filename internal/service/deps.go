package service

import (
	"context"
	"time"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/money"
	"pawpay/internal/repository"
)

// Transactor runs a function inside one atomic transaction. The Executor it
// hands to fn is passed down into every repository call that must share the
// transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(ex repository.Executor) error) error
}

type ClinicStore interface {
	Create(ctx context.Context, ex repository.Executor, c *domain.Clinic) error
	GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Clinic, error)
	SetStatus(ctx context.Context, ex repository.Executor, id string, status domain.ClinicStatus, now time.Time) error
	SetPayoutAccount(ctx context.Context, ex repository.Executor, id, accountRef string, now time.Time) error
}

type OwnerStore interface {
	FindByClinicEmail(ctx context.Context, ex repository.Executor, clinicID, email string) (*domain.Owner, error)
	GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Owner, error)
	Create(ctx context.Context, ex repository.Executor, o *domain.Owner) error
	UpdateContact(ctx context.Context, ex repository.Executor, o *domain.Owner, now time.Time) error
}

type PlanStore interface {
	Create(ctx context.Context, ex repository.Executor, p *domain.Plan) error
	GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Plan, error)
	SetStatus(ctx context.Context, ex repository.Executor, id string, status domain.PlanStatus, now time.Time) error
	ApplyPayment(ctx context.Context, ex repository.Executor, id string, amountCents int64, nextPaymentAt *time.Time, now time.Time) error
	ListDelinquentWithoutCollection(ctx context.Context, ex repository.Executor, cutoff time.Time) ([]domain.Plan, error)
}

type PaymentStore interface {
	CreateBatch(ctx context.Context, ex repository.Executor, payments []domain.Payment) error
	GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Payment, error)
	GetByProcessorRef(ctx context.Context, ex repository.Executor, ref string) (*domain.Payment, error)
	ListByPlan(ctx context.Context, ex repository.Executor, planID string) ([]domain.Payment, error)
	ListDue(ctx context.Context, ex repository.Executor, asOf time.Time, limit int) ([]domain.Payment, error)
	SetStatus(ctx context.Context, ex repository.Executor, id string, status domain.PaymentStatus, now time.Time) error
	SetProcessorRef(ctx context.Context, ex repository.Executor, id, ref string, now time.Time) error
	MarkFailed(ctx context.Context, ex repository.Executor, id string, status domain.PaymentStatus, reason string, now time.Time) error
	WriteOffByPlan(ctx context.Context, ex repository.Executor, planID string, now time.Time) error
	OutstandingByPlan(ctx context.Context, ex repository.Executor, planID string) (int64, error)
}

type PayoutStore interface {
	Create(ctx context.Context, ex repository.Executor, p *domain.Payout) error
	GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Payout, error)
	FindByPaymentID(ctx context.Context, ex repository.Executor, paymentID string) (*domain.Payout, error)
	ListPending(ctx context.Context, ex repository.Executor) ([]domain.Payout, error)
	MarkSucceeded(ctx context.Context, ex repository.Executor, id, transferID string, now time.Time) error
	MarkFailed(ctx context.Context, ex repository.Executor, id, reason string, now time.Time) error
}

type RiskPoolStore interface {
	Append(ctx context.Context, ex repository.Executor, e *domain.RiskPoolEntry) error
	Balance(ctx context.Context, ex repository.Executor) (int64, error)
	OutstandingExposure(ctx context.Context, ex repository.Executor) (int64, error)
}

type CollectionStore interface {
	Create(ctx context.Context, ex repository.Executor, c *domain.SoftCollection) error
	FindActiveByPlan(ctx context.Context, ex repository.Executor, planID string) (*domain.SoftCollection, error)
	ListDueForEscalation(ctx context.Context, ex repository.Executor, asOf time.Time) ([]domain.SoftCollection, error)
	SetStage(ctx context.Context, ex repository.Executor, id string, stage domain.CollectionStage, nextEscalationAt *time.Time, now time.Time) error
}

type AuditStore interface {
	Append(ctx context.Context, ex repository.Executor, e *domain.AuditLogEntry) error
}

// PaymentProcessor is the external payment rail. Implementations live
// outside this core; callbacks come back through the payment lifecycle.
type PaymentProcessor interface {
	ChargeDeposit(ctx context.Context, customerRef string, amountCents int64) (clients.ChargeResult, error)
	ChargeInstallment(ctx context.Context, customerRef string, amountCents int64, paymentMethodRef string) (clients.ChargeResult, error)
	Transfer(ctx context.Context, destinationRef string, amountCents int64, idempotencyKey string, metadata map[string]string) (string, error)
}

// BillingPolicy collects the configured economics and scheduling knobs.
type BillingPolicy struct {
	Rates money.Rates

	MinBillCents int64
	MaxBillCents int64

	NumInstallments     int
	InstallmentInterval time.Duration

	MaxPaymentRetries int
	PayoutBatchSize   int

	OverdueGrace time.Duration
}

// DefaultBillingPolicy mirrors the production defaults.
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		Rates:               money.DefaultRates(),
		MinBillCents:        50_000,
		MaxBillCents:        2_000_000,
		NumInstallments:     6,
		InstallmentInterval: 30 * 24 * time.Hour,
		MaxPaymentRetries:   3,
		PayoutBatchSize:     5,
		OverdueGrace:        3 * 24 * time.Hour,
	}
}
