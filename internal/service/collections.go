package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

const collectionStageInterval = 7 * 24 * time.Hour

// CollectionsService runs the soft-collections workflow: plans that stay
// overdue past the grace window get an escalating reminder sequence, and the
// final stage converts the plan into a default with a risk-pool claim.
type CollectionsService struct {
	db          Transactor
	plans       PlanStore
	payments    PaymentStore
	collections CollectionStore
	riskPool    *RiskPoolService
	audit       *AuditLogger
	notifier    *clients.NotificationPublisher
	events      *clients.WebSocketClient
	policy      BillingPolicy
	log         *zap.Logger
}

func NewCollectionsService(
	db Transactor,
	plans PlanStore,
	payments PaymentStore,
	collections CollectionStore,
	riskPool *RiskPoolService,
	audit *AuditLogger,
	notifier *clients.NotificationPublisher,
	events *clients.WebSocketClient,
	policy BillingPolicy,
	log *zap.Logger,
) *CollectionsService {
	return &CollectionsService{
		db:          db,
		plans:       plans,
		payments:    payments,
		collections: collections,
		riskPool:    riskPool,
		audit:       audit,
		notifier:    notifier,
		events:      events,
		policy:      policy,
		log:         log,
	}
}

// OpenDelinquentCollections finds plans whose next payment is overdue past
// the grace window and have no active collection, and opens a day-1 reminder
// for each. Returns how many collections were opened.
func (s *CollectionsService) OpenDelinquentCollections(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.policy.OverdueGrace)
	delinquent, err := s.plans.ListDelinquentWithoutCollection(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, plan := range delinquent {
		if err := s.openCollection(ctx, &plan, now); err != nil {
			s.log.Error("open collection", zap.String("plan_id", plan.ID), zap.Error(err))
			continue
		}
		opened++
	}

	if opened > 0 {
		s.log.Info("collections opened", zap.Int("count", opened))
	}
	return opened, nil
}

func (s *CollectionsService) openCollection(ctx context.Context, plan *domain.Plan, now time.Time) error {
	next := now.Add(6 * 24 * time.Hour) // day-1 reminder escalates on day 7
	collection := &domain.SoftCollection{
		ID:               uuid.NewString(),
		PlanID:           plan.ID,
		Stage:            domain.StageDay1Reminder,
		StartedAt:        now,
		NextEscalationAt: &next,
		CreatedAt:        now,
	}

	err := s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.collections.Create(ctx, ex, collection); err != nil {
			return err
		}
		s.audit.Record(ctx, domain.SystemActor, "collection", collection.ID, "opened", nil, map[string]any{
			"plan_id": plan.ID,
			"stage":   domain.StageDay1Reminder,
		})
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.Publish(ctx, "collection.reminder", map[string]any{
		"collection_id": collection.ID,
		"plan_id":       plan.ID,
		"owner_id":      plan.OwnerID,
		"stage":         domain.StageDay1Reminder,
	}); err != nil {
		s.log.Warn("publish collection.reminder failed", zap.String("plan_id", plan.ID), zap.Error(err))
	}
	return nil
}

// EscalateDueCollections advances every collection whose escalation time has
// arrived. Day-1 moves to day-7, day-7 to day-14, and a day-14 collection
// that is still unpaid converts the plan into a default. Returns counts of
// escalated and defaulted collections.
func (s *CollectionsService) EscalateDueCollections(ctx context.Context, now time.Time) (escalated, defaulted int, err error) {
	due, err := s.collections.ListDueForEscalation(ctx, nil, now)
	if err != nil {
		return 0, 0, err
	}

	for _, collection := range due {
		switch collection.Stage {
		case domain.StageDay1Reminder, domain.StageDay7Followup:
			if err := s.advanceStage(ctx, &collection, now); err != nil {
				s.log.Error("escalate collection", zap.String("collection_id", collection.ID), zap.Error(err))
				continue
			}
			escalated++
		case domain.StageDay14Final:
			if err := s.defaultPlan(ctx, &collection, now); err != nil {
				s.log.Error("default plan", zap.String("collection_id", collection.ID), zap.Error(err))
				continue
			}
			defaulted++
		}
	}
	return escalated, defaulted, nil
}

func (s *CollectionsService) advanceStage(ctx context.Context, collection *domain.SoftCollection, now time.Time) error {
	var nextStage domain.CollectionStage
	switch collection.Stage {
	case domain.StageDay1Reminder:
		nextStage = domain.StageDay7Followup
	case domain.StageDay7Followup:
		nextStage = domain.StageDay14Final
	default:
		return &domain.StateError{Entity: "collection", ID: collection.ID, Message: "stage cannot be advanced"}
	}

	next := now.Add(collectionStageInterval)
	err := s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.collections.SetStage(ctx, ex, collection.ID, nextStage, &next, now); err != nil {
			return err
		}
		s.audit.Record(ctx, domain.SystemActor, "collection", collection.ID, "escalated",
			map[string]any{"stage": collection.Stage},
			map[string]any{"stage": nextStage},
		)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.Publish(ctx, "collection.reminder", map[string]any{
		"collection_id": collection.ID,
		"plan_id":       collection.PlanID,
		"stage":         nextStage,
	}); err != nil {
		s.log.Warn("publish collection.reminder failed", zap.String("collection_id", collection.ID), zap.Error(err))
	}
	return nil
}

// defaultPlan closes out a collection whose final notice expired: the
// outstanding balance is claimed from the risk pool, the plan is marked
// defaulted, and unsettled payments are written off, all atomically.
func (s *CollectionsService) defaultPlan(ctx context.Context, collection *domain.SoftCollection, now time.Time) error {
	plan, err := s.plans.GetByID(ctx, nil, collection.PlanID)
	if err != nil {
		return err
	}
	if !plan.Payable() {
		// already completed, cancelled, or defaulted elsewhere; just close
		return s.db.Transact(ctx, func(ex repository.Executor) error {
			return s.collections.SetStage(ctx, ex, collection.ID, domain.StageCancelled, nil, now)
		})
	}

	var outstanding int64
	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		outstanding, err = s.payments.OutstandingByPlan(ctx, ex, plan.ID)
		if err != nil {
			return err
		}
		if outstanding > 0 {
			if err := s.riskPool.Claim(ctx, ex, plan.ID, outstanding, domain.SystemActor); err != nil {
				return err
			}
		}
		if err := s.plans.SetStatus(ctx, ex, plan.ID, domain.PlanDefaulted, now); err != nil {
			return err
		}
		if err := s.payments.WriteOffByPlan(ctx, ex, plan.ID, now); err != nil {
			return err
		}
		if err := s.collections.SetStage(ctx, ex, collection.ID, domain.StageCompleted, nil, now); err != nil {
			return err
		}
		s.audit.Record(ctx, domain.SystemActor, "plan", plan.ID, "defaulted",
			map[string]any{"status": plan.Status},
			map[string]any{"status": domain.PlanDefaulted, "claimed_cents": outstanding},
		)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.Publish(ctx, "plan.defaulted", map[string]any{
		"plan_id":       plan.ID,
		"clinic_id":     plan.ClinicID,
		"claimed_cents": outstanding,
	}); err != nil {
		s.log.Warn("publish plan.defaulted failed", zap.String("plan_id", plan.ID), zap.Error(err))
	}
	_ = s.events.NotifyPlanEvent(ctx, plan.ClinicID, plan.ID, "defaulted")

	s.log.Info("plan defaulted",
		zap.String("plan_id", plan.ID),
		zap.Int64("claimed_cents", outstanding),
	)
	return nil
}

// CancelCollection closes the active collection for a plan after a recovery
// payment lands. Safe to call when none exists.
func (s *CollectionsService) CancelCollection(ctx context.Context, ex repository.Executor, planID string, now time.Time) error {
	collection, err := s.collections.FindActiveByPlan(ctx, ex, planID)
	if err != nil || collection == nil {
		return err
	}
	return s.collections.SetStage(ctx, ex, collection.ID, domain.StageCancelled, nil, now)
}
