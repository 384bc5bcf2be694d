package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

// OwnerInput is the owner data submitted with an enrollment.
type OwnerInput struct {
	Email            string
	FullName         string
	Phone            string
	PetName          string
	CustomerRef      string
	PaymentMethodRef string
}

// EnrollmentResult identifies everything created by one enrollment.
type EnrollmentResult struct {
	PlanID     string   `json:"plan_id"`
	OwnerID    string   `json:"owner_id"`
	PaymentIDs []string `json:"payment_ids"`
}

// EnrollmentSummary composes plan, owner, clinic, and schedule for reads.
type EnrollmentSummary struct {
	Plan     *domain.Plan     `json:"plan"`
	Owner    *domain.Owner    `json:"owner"`
	Clinic   *domain.Clinic   `json:"clinic"`
	Payments []domain.Payment `json:"payments"`
}

// EnrollmentService creates financing plans: owner find-or-create, plan row,
// full payment schedule, and the risk-pool contribution, all in one
// transaction. Partial plans must never exist.
type EnrollmentService struct {
	db       Transactor
	clinics  ClinicStore
	owners   OwnerStore
	plans    PlanStore
	payments PaymentStore
	riskPool *RiskPoolService
	audit    *AuditLogger
	notifier *clients.NotificationPublisher
	policy   BillingPolicy
	log      *zap.Logger
}

func NewEnrollmentService(
	db Transactor,
	clinics ClinicStore,
	owners OwnerStore,
	plans PlanStore,
	payments PaymentStore,
	riskPool *RiskPoolService,
	audit *AuditLogger,
	notifier *clients.NotificationPublisher,
	policy BillingPolicy,
	log *zap.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		db:       db,
		clinics:  clinics,
		owners:   owners,
		plans:    plans,
		payments: payments,
		riskPool: riskPool,
		audit:    audit,
		notifier: notifier,
		policy:   policy,
		log:      log,
	}
}

// CreateEnrollment validates the bill, resolves the clinic, and materializes
// the plan with its schedule atomically.
func (s *EnrollmentService) CreateEnrollment(ctx context.Context, clinicID string, ownerData OwnerInput, billAmountCents int64, actor domain.Actor, now time.Time) (*EnrollmentResult, error) {
	if billAmountCents < s.policy.MinBillCents || billAmountCents > s.policy.MaxBillCents {
		return nil, &domain.ValidationError{
			Field:   "bill_amount_cents",
			Message: fmt.Sprintf("bill must be between %d and %d cents", s.policy.MinBillCents, s.policy.MaxBillCents),
		}
	}
	if ownerData.Email == "" {
		return nil, &domain.ValidationError{Field: "email", Message: "owner email is required"}
	}

	clinic, err := s.clinics.GetByID(ctx, nil, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic.Status != domain.ClinicActive {
		return nil, &domain.StateError{Entity: "clinic", ID: clinicID, Message: "clinic is not active"}
	}

	amounts, err := s.policy.Rates.PlanAmounts(billAmountCents, s.policy.NumInstallments)
	if err != nil {
		return nil, err
	}

	var result EnrollmentResult
	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		owner, err := s.findOrCreateOwner(ctx, ex, clinicID, ownerData, now)
		if err != nil {
			return err
		}

		firstInstallmentAt := now.Add(s.policy.InstallmentInterval)
		plan := &domain.Plan{
			ID:                uuid.NewString(),
			ClinicID:          clinicID,
			OwnerID:           owner.ID,
			TotalBillCents:    billAmountCents,
			FeeCents:          amounts.FeeCents,
			TotalWithFeeCents: amounts.TotalWithFeeCents,
			DepositCents:      amounts.DepositCents,
			InstallmentCents:  amounts.InstallmentCents,
			NumInstallments:   amounts.NumInstallments,
			RemainingCents:    amounts.TotalWithFeeCents,
			Status:            domain.PlanPending,
			NextPaymentAt:     &firstInstallmentAt,
			CreatedAt:         now,
		}
		if err := s.plans.Create(ctx, ex, plan); err != nil {
			return fmt.Errorf("create plan: %w", err)
		}

		schedule := buildSchedule(plan.ID, amounts.DepositCents, amounts.InstallmentCents, amounts.LastInstallmentCents, amounts.NumInstallments, now, s.policy.InstallmentInterval)
		if err := s.payments.CreateBatch(ctx, ex, schedule); err != nil {
			return fmt.Errorf("create payment schedule: %w", err)
		}

		contribution := s.policy.Rates.Contribution(amounts.TotalWithFeeCents)
		if err := s.riskPool.Contribute(ctx, ex, plan.ID, contribution, actor); err != nil {
			return err
		}

		s.audit.Record(ctx, actor, "plan", plan.ID, "created", nil, map[string]any{
			"clinic_id":            clinicID,
			"owner_id":             owner.ID,
			"total_bill_cents":     billAmountCents,
			"total_with_fee_cents": amounts.TotalWithFeeCents,
			"deposit_cents":        amounts.DepositCents,
			"num_installments":     amounts.NumInstallments,
		})

		result.PlanID = plan.ID
		result.OwnerID = owner.ID
		for _, p := range schedule {
			result.PaymentIDs = append(result.PaymentIDs, p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, "enrollment.created", map[string]any{
		"plan_id":   result.PlanID,
		"clinic_id": clinicID,
		"owner_id":  result.OwnerID,
	}); err != nil {
		s.log.Warn("publish enrollment.created failed", zap.String("plan_id", result.PlanID), zap.Error(err))
	}

	s.log.Info("enrollment created",
		zap.String("plan_id", result.PlanID),
		zap.String("clinic_id", clinicID),
		zap.Int64("bill_cents", billAmountCents),
	)
	return &result, nil
}

func (s *EnrollmentService) findOrCreateOwner(ctx context.Context, ex repository.Executor, clinicID string, in OwnerInput, now time.Time) (*domain.Owner, error) {
	owner, err := s.owners.FindByClinicEmail(ctx, ex, clinicID, in.Email)
	if err == nil {
		owner.FullName = in.FullName
		owner.Phone = in.Phone
		owner.PetName = in.PetName
		if err := s.owners.UpdateContact(ctx, ex, owner, now); err != nil {
			return nil, fmt.Errorf("update owner contact: %w", err)
		}
		return owner, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	owner = &domain.Owner{
		ID:        uuid.NewString(),
		ClinicID:  clinicID,
		Email:     in.Email,
		FullName:  in.FullName,
		Phone:     in.Phone,
		PetName:   in.PetName,
		CreatedAt: now,
	}
	if in.CustomerRef != "" {
		owner.CustomerRef = &in.CustomerRef
	}
	if in.PaymentMethodRef != "" {
		owner.PaymentMethodRef = &in.PaymentMethodRef
	}
	if err := s.owners.Create(ctx, ex, owner); err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	return owner, nil
}

// buildSchedule lays out deposit + N installments on a fixed cadence. The
// last installment absorbs the rounding remainder so the schedule sums to
// the plan total exactly.
func buildSchedule(planID string, depositCents, installmentCents, lastInstallmentCents int64, numInstallments int, now time.Time, interval time.Duration) []domain.Payment {
	schedule := make([]domain.Payment, 0, numInstallments+1)

	schedule = append(schedule, domain.Payment{
		ID:          uuid.NewString(),
		PlanID:      planID,
		Type:        domain.PaymentDeposit,
		AmountCents: depositCents,
		Status:      domain.PaymentPending,
		ScheduledAt: now,
		CreatedAt:   now,
	})

	for i := 1; i <= numInstallments; i++ {
		amount := installmentCents
		if i == numInstallments {
			amount = lastInstallmentCents
		}
		seq := i
		schedule = append(schedule, domain.Payment{
			ID:          uuid.NewString(),
			PlanID:      planID,
			Type:        domain.PaymentInstallment,
			SequenceNum: &seq,
			AmountCents: amount,
			Status:      domain.PaymentPending,
			ScheduledAt: now.Add(time.Duration(i) * interval),
			CreatedAt:   now,
		})
	}

	return schedule
}

// GetEnrollmentSummary read-composes plan + owner + clinic + payments.
func (s *EnrollmentService) GetEnrollmentSummary(ctx context.Context, planID string) (*EnrollmentSummary, error) {
	plan, err := s.plans.GetByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	owner, err := s.owners.GetByID(ctx, nil, plan.OwnerID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.clinics.GetByID(ctx, nil, plan.ClinicID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByPlan(ctx, nil, planID)
	if err != nil {
		return nil, err
	}

	return &EnrollmentSummary{Plan: plan, Owner: owner, Clinic: clinic, Payments: payments}, nil
}

// CancelEnrollment is only legal before any money has moved: the plan must
// still be pending. Once a deposit clears, default/write-off flows apply
// instead.
func (s *EnrollmentService) CancelEnrollment(ctx context.Context, planID string, actor domain.Actor) error {
	plan, err := s.plans.GetByID(ctx, nil, planID)
	if err != nil {
		return err
	}
	if plan.Status != domain.PlanPending {
		return &domain.StateError{Entity: "plan", ID: planID, Message: "only pending plans can be cancelled"}
	}

	now := time.Now().UTC()
	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.plans.SetStatus(ctx, ex, planID, domain.PlanCancelled, now); err != nil {
			return err
		}
		if err := s.payments.WriteOffByPlan(ctx, ex, planID, now); err != nil {
			return err
		}
		s.audit.Record(ctx, actor, "plan", planID, "cancelled",
			map[string]any{"status": domain.PlanPending},
			map[string]any{"status": domain.PlanCancelled},
		)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("enrollment cancelled", zap.String("plan_id", planID), zap.String("actor_id", actor.ID))
	return nil
}
