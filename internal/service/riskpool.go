package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

// RiskPoolService maintains the shared default-insurance pool. Every write
// is an appended ledger entry plus one audit event; balance and health are
// derived on read, never cached.
type RiskPoolService struct {
	entries RiskPoolStore
	audit   *AuditLogger
	log     *zap.Logger
}

func NewRiskPoolService(entries RiskPoolStore, audit *AuditLogger, log *zap.Logger) *RiskPoolService {
	return &RiskPoolService{entries: entries, audit: audit, log: log}
}

// Contribute records a contribution for a plan. The executor lets callers
// fold the entry into a larger atomic operation; pass nil to run standalone.
func (s *RiskPoolService) Contribute(ctx context.Context, ex repository.Executor, planID string, amountCents int64, actor domain.Actor) error {
	return s.append(ctx, ex, planID, domain.RiskPoolContribution, amountCents, actor)
}

// Claim draws on the pool for a defaulted plan's outstanding balance.
func (s *RiskPoolService) Claim(ctx context.Context, ex repository.Executor, planID string, amountCents int64, actor domain.Actor) error {
	return s.append(ctx, ex, planID, domain.RiskPoolClaim, amountCents, actor)
}

// RecordRecovery restores funds recovered after a claim.
func (s *RiskPoolService) RecordRecovery(ctx context.Context, ex repository.Executor, planID string, amountCents int64, actor domain.Actor) error {
	return s.append(ctx, ex, planID, domain.RiskPoolRecovery, amountCents, actor)
}

func (s *RiskPoolService) append(ctx context.Context, ex repository.Executor, planID string, typ domain.RiskPoolEntryType, amountCents int64, actor domain.Actor) error {
	if amountCents <= 0 {
		return &domain.RangeError{Message: fmt.Sprintf("risk pool %s must be positive cents, got %d", typ, amountCents)}
	}

	entry := &domain.RiskPoolEntry{
		ID:          uuid.NewString(),
		PlanID:      planID,
		Type:        typ,
		AmountCents: amountCents,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.entries.Append(ctx, ex, entry); err != nil {
		return fmt.Errorf("append risk pool %s: %w", typ, err)
	}

	s.audit.Record(ctx, actor, "risk_pool_entry", entry.ID, string(typ), nil, map[string]any{
		"plan_id":      planID,
		"amount_cents": amountCents,
	})
	return nil
}

// Balance is the derived pool balance: contributions + recoveries - claims.
func (s *RiskPoolService) Balance(ctx context.Context) (int64, error) {
	return s.entries.Balance(ctx, nil)
}

// Health divides the balance by the outstanding guarantee exposure across
// collecting plans. Coverage is 0 when there is no exposure.
func (s *RiskPoolService) Health(ctx context.Context) (domain.RiskPoolHealth, error) {
	balance, err := s.entries.Balance(ctx, nil)
	if err != nil {
		return domain.RiskPoolHealth{}, err
	}
	exposure, err := s.entries.OutstandingExposure(ctx, nil)
	if err != nil {
		return domain.RiskPoolHealth{}, err
	}

	health := domain.RiskPoolHealth{
		BalanceCents:  balance,
		ExposureCents: exposure,
	}
	if exposure > 0 {
		health.CoverageRatio = float64(balance) / float64(exposure)
	}
	return health, nil
}
