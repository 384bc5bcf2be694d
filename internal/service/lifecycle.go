package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

// PaymentLifecycleService drives payments through
// pending -> processing -> succeeded | failed -> retried | written_off in
// response to processor callbacks. Handlers are idempotent: webhook
// deliveries repeat, and a repeated terminal callback must be a no-op.
//
// Payout execution is deliberately not triggered here; "money received" and
// "money paid out" stay independently retryable.
type PaymentLifecycleService struct {
	db          Transactor
	plans       PlanStore
	payments    PaymentStore
	owners      OwnerStore
	riskPool    *RiskPoolService
	collections CollectionStore
	audit       *AuditLogger
	processor   PaymentProcessor
	notifier    *clients.NotificationPublisher
	events      *clients.WebSocketClient
	policy      BillingPolicy
	log         *zap.Logger
}

func NewPaymentLifecycleService(
	db Transactor,
	plans PlanStore,
	payments PaymentStore,
	owners OwnerStore,
	riskPool *RiskPoolService,
	collections CollectionStore,
	audit *AuditLogger,
	processor PaymentProcessor,
	notifier *clients.NotificationPublisher,
	events *clients.WebSocketClient,
	policy BillingPolicy,
	log *zap.Logger,
) *PaymentLifecycleService {
	return &PaymentLifecycleService{
		db:          db,
		plans:       plans,
		payments:    payments,
		owners:      owners,
		riskPool:    riskPool,
		collections: collections,
		audit:       audit,
		processor:   processor,
		notifier:    notifier,
		events:      events,
		policy:      policy,
		log:         log,
	}
}

// FindPaymentByProcessorRef resolves a processor callback reference to a
// payment; the sole entry point from external callbacks.
func (s *PaymentLifecycleService) FindPaymentByProcessorRef(ctx context.Context, ref string) (*domain.Payment, error) {
	return s.payments.GetByProcessorRef(ctx, nil, ref)
}

// HandlePaymentSuccess settles a payment and applies the plan side effects:
// deposit success activates the plan, the last installment completes it, and
// the bill-equivalent portion feeds the risk pool. Idempotent on repeated
// delivery.
func (s *PaymentLifecycleService) HandlePaymentSuccess(ctx context.Context, paymentID, externalRef string, actor domain.Actor) error {
	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return err
	}
	if payment.Status == domain.PaymentSucceeded {
		return nil
	}

	now := time.Now().UTC()
	var (
		plan          *domain.Plan
		planCompleted bool
		planActivated bool
	)

	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		// re-read inside the transaction: a concurrent delivery may have
		// settled the payment already
		payment, err = s.payments.GetByID(ctx, ex, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentSucceeded {
			return nil
		}

		if externalRef != "" && (payment.ProcessorRef == nil || *payment.ProcessorRef != externalRef) {
			if err := s.payments.SetProcessorRef(ctx, ex, paymentID, externalRef, now); err != nil {
				return err
			}
		}
		if err := s.payments.SetStatus(ctx, ex, paymentID, domain.PaymentSucceeded, now); err != nil {
			return err
		}

		plan, err = s.plans.GetByID(ctx, ex, payment.PlanID)
		if err != nil {
			return err
		}

		if payment.Type == domain.PaymentDeposit && plan.Status == domain.PlanPending {
			if err := s.plans.SetStatus(ctx, ex, plan.ID, domain.PlanActive, now); err != nil {
				return err
			}
			planActivated = true
			s.audit.Record(ctx, actor, "plan", plan.ID, "activated",
				map[string]any{"status": domain.PlanPending},
				map[string]any{"status": domain.PlanActive},
			)
		}

		// completion is computed against the same snapshot as the update
		all, err := s.payments.ListByPlan(ctx, ex, plan.ID)
		if err != nil {
			return err
		}
		// a written-off payment is uncollected money, not a settled one:
		// the plan stays open so collections can claim the shortfall
		var nextPaymentAt *time.Time
		settled := true
		for i := range all {
			p := &all[i]
			if p.ID == paymentID || p.Status == domain.PaymentSucceeded {
				continue
			}
			settled = false
			if nextPaymentAt == nil || p.ScheduledAt.Before(*nextPaymentAt) {
				t := p.ScheduledAt
				nextPaymentAt = &t
			}
		}

		if err := s.plans.ApplyPayment(ctx, ex, plan.ID, payment.AmountCents, nextPaymentAt, now); err != nil {
			return err
		}

		if settled && plan.Status != domain.PlanDefaulted && plan.Status != domain.PlanCancelled {
			if err := s.plans.SetStatus(ctx, ex, plan.ID, domain.PlanCompleted, now); err != nil {
				return err
			}
			planCompleted = true
			s.audit.Record(ctx, actor, "plan", plan.ID, "completed", nil,
				map[string]any{"status": domain.PlanCompleted},
			)
		}

		// risk pool: the bill-equivalent portion of the payment either
		// contributes normally or, after a default claim, counts as recovery
		breakdown, err := s.policy.Rates.PayoutBreakdown(payment.AmountCents)
		if err != nil {
			return err
		}
		if plan.Status == domain.PlanDefaulted {
			if err := s.riskPool.RecordRecovery(ctx, ex, plan.ID, breakdown.BillPortionCents, actor); err != nil {
				return err
			}
		} else if contribution := s.policy.Rates.Contribution(breakdown.BillPortionCents); contribution > 0 {
			if err := s.riskPool.Contribute(ctx, ex, plan.ID, contribution, actor); err != nil {
				return err
			}
		}

		// a recovered payment closes the open collection cycle
		if collection, err := s.collections.FindActiveByPlan(ctx, ex, plan.ID); err != nil {
			return err
		} else if collection != nil {
			if err := s.collections.SetStage(ctx, ex, collection.ID, domain.StageCancelled, nil, now); err != nil {
				return err
			}
			s.audit.Record(ctx, actor, "soft_collection", collection.ID, "cancelled",
				map[string]any{"stage": collection.Stage},
				map[string]any{"stage": domain.StageCancelled},
			)
		}

		s.audit.Record(ctx, actor, "payment", paymentID, "succeeded",
			map[string]any{"status": payment.Status},
			map[string]any{"status": domain.PaymentSucceeded, "processor_ref": externalRef},
		)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "payment.succeeded", map[string]any{
		"payment_id": paymentID,
		"plan_id":    payment.PlanID,
	})
	if plan != nil {
		_ = s.events.NotifyPaymentEvent(ctx, plan.ClinicID, plan.ID, paymentID, "succeeded", payment.AmountCents)
		if planActivated {
			_ = s.events.NotifyPlanEvent(ctx, plan.ClinicID, plan.ID, "active")
		}
		if planCompleted {
			s.publish(ctx, "plan.completed", map[string]any{"plan_id": plan.ID})
			_ = s.events.NotifyPlanEvent(ctx, plan.ClinicID, plan.ID, "completed")
		}
	}
	return nil
}

// HandlePaymentFailure records a failed charge. Exceeding the retry budget
// turns the failure into a terminal write-off. No-op when the payment is
// already settled or written off.
func (s *PaymentLifecycleService) HandlePaymentFailure(ctx context.Context, paymentID, reason string, actor domain.Actor) error {
	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return err
	}
	if payment.Status == domain.PaymentSucceeded || payment.Status == domain.PaymentWrittenOff {
		return nil
	}

	now := time.Now().UTC()
	status := domain.PaymentFailed
	if payment.RetryCount >= s.policy.MaxPaymentRetries {
		status = domain.PaymentWrittenOff
	}

	var plan *domain.Plan
	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		payment, err = s.payments.GetByID(ctx, ex, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentSucceeded || payment.Status == domain.PaymentWrittenOff {
			return nil
		}

		if err := s.payments.MarkFailed(ctx, ex, paymentID, status, reason, now); err != nil {
			return err
		}

		plan, err = s.plans.GetByID(ctx, ex, payment.PlanID)
		if err != nil {
			return err
		}

		s.audit.Record(ctx, actor, "payment", paymentID, "failed",
			map[string]any{"status": payment.Status},
			map[string]any{"status": status, "reason": reason, "retry_count": payment.RetryCount + 1},
		)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "payment.failed", map[string]any{
		"payment_id":  paymentID,
		"plan_id":     payment.PlanID,
		"reason":      reason,
		"written_off": status == domain.PaymentWrittenOff,
	})
	if plan != nil {
		_ = s.events.NotifyPaymentEvent(ctx, plan.ClinicID, plan.ID, paymentID, string(status), payment.AmountCents)
	}
	return nil
}

// RetryPayment re-attempts a failed charge through the processor.
func (s *PaymentLifecycleService) RetryPayment(ctx context.Context, paymentID string, actor domain.Actor) error {
	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != domain.PaymentFailed {
		return &domain.StateError{Entity: "payment", ID: paymentID, Message: "only failed payments can be retried"}
	}

	plan, err := s.plans.GetByID(ctx, nil, payment.PlanID)
	if err != nil {
		return err
	}
	owner, err := s.owners.GetByID(ctx, nil, plan.OwnerID)
	if err != nil {
		return err
	}
	if owner.CustomerRef == nil {
		return &domain.StateError{Entity: "owner", ID: owner.ID, Message: "owner has no payment instrument on file"}
	}

	now := time.Now().UTC()
	if err := s.payments.SetStatus(ctx, nil, paymentID, domain.PaymentRetried, now); err != nil {
		return err
	}

	result, err := s.charge(ctx, payment, owner)
	if err != nil {
		// restore failed so the payment stays retryable
		if revertErr := s.payments.SetStatus(ctx, nil, paymentID, domain.PaymentFailed, time.Now().UTC()); revertErr != nil {
			s.log.Error("failed to restore payment status after charge error",
				zap.String("payment_id", paymentID),
				zap.Error(revertErr),
			)
		}
		return err
	}

	return s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.payments.SetProcessorRef(ctx, ex, paymentID, result.Ref, now); err != nil {
			return err
		}
		if err := s.payments.SetStatus(ctx, ex, paymentID, domain.PaymentProcessing, now); err != nil {
			return err
		}
		s.audit.Record(ctx, actor, "payment", paymentID, "retried", nil,
			map[string]any{"processor_ref": result.Ref},
		)
		return nil
	})
}

// ChargeDuePayments finds pending payments whose scheduled date has passed
// and submits them to the processor. Per-item failures are logged and do not
// stop the sweep; the count of submitted charges is returned.
func (s *PaymentLifecycleService) ChargeDuePayments(ctx context.Context, limit int) (int, error) {
	due, err := s.payments.ListDue(ctx, nil, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for i := range due {
		payment := &due[i]
		if err := s.chargeDuePayment(ctx, payment); err != nil {
			s.log.Warn("due charge failed",
				zap.String("payment_id", payment.ID),
				zap.String("plan_id", payment.PlanID),
				zap.Error(err),
			)
			continue
		}
		submitted++
	}
	return submitted, nil
}

func (s *PaymentLifecycleService) chargeDuePayment(ctx context.Context, payment *domain.Payment) error {
	plan, err := s.plans.GetByID(ctx, nil, payment.PlanID)
	if err != nil {
		return err
	}
	switch plan.Status {
	case domain.PlanPending, domain.PlanDepositPaid, domain.PlanActive:
	default:
		return nil // nothing to charge on terminal plans
	}

	owner, err := s.owners.GetByID(ctx, nil, plan.OwnerID)
	if err != nil {
		return err
	}
	if owner.CustomerRef == nil {
		return &domain.StateError{Entity: "owner", ID: owner.ID, Message: "owner has no payment instrument on file"}
	}

	result, err := s.charge(ctx, payment, owner)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.payments.SetProcessorRef(ctx, ex, payment.ID, result.Ref, now); err != nil {
			return err
		}
		return s.payments.SetStatus(ctx, ex, payment.ID, domain.PaymentProcessing, now)
	})
}

func (s *PaymentLifecycleService) charge(ctx context.Context, payment *domain.Payment, owner *domain.Owner) (clients.ChargeResult, error) {
	if payment.Type == domain.PaymentDeposit {
		return s.processor.ChargeDeposit(ctx, *owner.CustomerRef, payment.AmountCents)
	}
	var method string
	if owner.PaymentMethodRef != nil {
		method = *owner.PaymentMethodRef
	}
	return s.processor.ChargeInstallment(ctx, *owner.CustomerRef, payment.AmountCents, method)
}

func (s *PaymentLifecycleService) publish(ctx context.Context, event string, payload map[string]any) {
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		s.log.Warn("publish failed", zap.String("event", event), zap.Error(err))
	}
}
