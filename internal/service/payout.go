package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

// PayoutSweepResult is one item of a sweep summary.
type PayoutSweepResult struct {
	PayoutID   string `json:"payout_id"`
	Status     string `json:"status"`
	TransferID string `json:"transfer_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PayoutSweepSummary is the contract a scheduler polls or logs after a
// background sweep.
type PayoutSweepSummary struct {
	Processed int                 `json:"processed"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []PayoutSweepResult `json:"results"`
}

// PayoutService computes payout breakdowns for succeeded payments and
// executes clinic transfers exactly once. The payment_id uniqueness
// constraint on payouts is the duplicate guard; every transfer carries an
// idempotency key derived from the payout id so retried sweeps cannot
// double-pay.
type PayoutService struct {
	db        Transactor
	clinics   ClinicStore
	plans     PlanStore
	payments  PaymentStore
	payouts   PayoutStore
	audit     *AuditLogger
	processor PaymentProcessor
	events    *clients.WebSocketClient
	policy    BillingPolicy
	log       *zap.Logger
}

func NewPayoutService(
	db Transactor,
	clinics ClinicStore,
	plans PlanStore,
	payments PaymentStore,
	payouts PayoutStore,
	audit *AuditLogger,
	processor PaymentProcessor,
	events *clients.WebSocketClient,
	policy BillingPolicy,
	log *zap.Logger,
) *PayoutService {
	return &PayoutService{
		db:        db,
		clinics:   clinics,
		plans:     plans,
		payments:  payments,
		payouts:   payouts,
		audit:     audit,
		processor: processor,
		events:    events,
		policy:    policy,
		log:       log,
	}
}

func transferIdempotencyKey(payoutID string) string {
	return "payout_" + payoutID
}

// ProcessClinicPayout pays a clinic its share of one succeeded payment.
// The payout row and the transfer confirmation are persisted atomically;
// a duplicate call fails with ConflictError before any second transfer.
func (s *PayoutService) ProcessClinicPayout(ctx context.Context, paymentID string, actor domain.Actor) (*domain.Payout, error) {
	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentSucceeded {
		return nil, &domain.StateError{Entity: "payment", ID: paymentID, Message: "payment has not succeeded"}
	}

	plan, err := s.plans.GetByID(ctx, nil, payment.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Payable() && plan.Status != domain.PlanCompleted {
		return nil, &domain.StateError{Entity: "plan", ID: plan.ID, Message: fmt.Sprintf("plan status %s is not payable", plan.Status)}
	}

	clinic, err := s.clinics.GetByID(ctx, nil, plan.ClinicID)
	if err != nil {
		return nil, err
	}
	if !clinic.PayoutCapable() {
		return nil, &domain.StateError{Entity: "clinic", ID: clinic.ID, Message: "clinic has no payout account"}
	}

	if existing, err := s.payouts.FindByPaymentID(ctx, nil, paymentID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &domain.ConflictError{Message: "payout already exists for payment " + paymentID}
	}

	breakdown, err := s.policy.Rates.PayoutBreakdown(payment.AmountCents)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payout := &domain.Payout{
		ID:               uuid.NewString(),
		ClinicID:         clinic.ID,
		PlanID:           plan.ID,
		PaymentID:        paymentID,
		AmountCents:      breakdown.TransferCents,
		ClinicShareCents: breakdown.ClinicShareCents,
		Status:           domain.PayoutPending,
		CreatedAt:        now,
	}

	var transferID string
	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		// the unique payment_id insert is the race guard: a concurrent
		// payout for the same payment fails here, before any transfer
		if err := s.payouts.Create(ctx, ex, payout); err != nil {
			return err
		}

		transferID, err = s.processor.Transfer(ctx, *clinic.PayoutAccountID, breakdown.TransferCents,
			transferIdempotencyKey(payout.ID), map[string]string{
				"payout_id":  payout.ID,
				"plan_id":    plan.ID,
				"payment_id": paymentID,
			})
		if err != nil {
			return err
		}

		if err := s.payouts.MarkSucceeded(ctx, ex, payout.ID, transferID, now); err != nil {
			return err
		}

		s.audit.Record(ctx, actor, "payout", payout.ID, "executed", nil, map[string]any{
			"payment_id":         paymentID,
			"clinic_id":          clinic.ID,
			"amount_cents":       breakdown.TransferCents,
			"clinic_share_cents": breakdown.ClinicShareCents,
			"transfer_id":        transferID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	payout.Status = domain.PayoutSucceeded
	payout.TransferID = &transferID

	_ = s.events.NotifyPayoutEvent(ctx, clinic.ID, payout.ID, "succeeded", payout.AmountCents, transferID)
	s.log.Info("clinic payout executed",
		zap.String("payout_id", payout.ID),
		zap.String("clinic_id", clinic.ID),
		zap.Int64("amount_cents", payout.AmountCents),
	)
	return payout, nil
}

// ProcessPendingPayouts sweeps all pending payouts in fixed-size concurrent
// batches. Each payout settles in its own transaction so one failure never
// blocks or rolls back the others.
func (s *PayoutService) ProcessPendingPayouts(ctx context.Context) (*PayoutSweepSummary, error) {
	pending, err := s.payouts.ListPending(ctx, nil)
	if err != nil {
		return nil, err
	}

	summary := &PayoutSweepSummary{Processed: len(pending)}
	if len(pending) == 0 {
		return summary, nil
	}

	batchSize := s.policy.PayoutBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var mu sync.Mutex
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			payout := pending[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				result := s.settlePendingPayout(ctx, &payout)

				mu.Lock()
				summary.Results = append(summary.Results, result)
				if result.Status == string(domain.PayoutSucceeded) {
					summary.Succeeded++
				} else {
					summary.Failed++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	s.log.Info("payout sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// settlePendingPayout re-resolves the clinic account and executes one
// transfer. Failures are recorded on the payout row, never propagated.
func (s *PayoutService) settlePendingPayout(ctx context.Context, payout *domain.Payout) PayoutSweepResult {
	result := PayoutSweepResult{PayoutID: payout.ID}

	clinic, err := s.clinics.GetByID(ctx, nil, payout.ClinicID)
	if err == nil && !clinic.PayoutCapable() {
		err = &domain.StateError{Entity: "clinic", ID: payout.ClinicID, Message: "clinic has no payout account"}
	}

	now := time.Now().UTC()
	var transferID string
	if err == nil {
		transferID, err = s.processor.Transfer(ctx, *clinic.PayoutAccountID, payout.AmountCents,
			transferIdempotencyKey(payout.ID), map[string]string{
				"payout_id":  payout.ID,
				"plan_id":    payout.PlanID,
				"payment_id": payout.PaymentID,
			})
	}

	if err != nil {
		result.Status = string(domain.PayoutFailed)
		result.Error = err.Error()

		if txErr := s.db.Transact(ctx, func(ex repository.Executor) error {
			if err := s.payouts.MarkFailed(ctx, ex, payout.ID, result.Error, now); err != nil {
				return err
			}
			s.audit.Record(ctx, domain.SystemActor, "payout", payout.ID, "failed", nil,
				map[string]any{"error": result.Error},
			)
			return nil
		}); txErr != nil {
			s.log.Error("record payout failure", zap.String("payout_id", payout.ID), zap.Error(txErr))
		}
		return result
	}

	result.Status = string(domain.PayoutSucceeded)
	result.TransferID = transferID

	if txErr := s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.payouts.MarkSucceeded(ctx, ex, payout.ID, transferID, now); err != nil {
			return err
		}
		s.audit.Record(ctx, domain.SystemActor, "payout", payout.ID, "executed", nil, map[string]any{
			"transfer_id":  transferID,
			"amount_cents": payout.AmountCents,
		})
		return nil
	}); txErr != nil {
		s.log.Error("record payout success", zap.String("payout_id", payout.ID), zap.Error(txErr))
	}

	_ = s.events.NotifyPayoutEvent(ctx, payout.ClinicID, payout.ID, result.Status, payout.AmountCents, transferID)
	return result
}
