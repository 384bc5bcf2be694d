package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"pawpay/internal/domain"
)

func newRiskPoolService(m *memStore) *RiskPoolService {
	log := zap.NewNop()
	audit := NewAuditLogger(auditStore{m}, log)
	return NewRiskPoolService(riskPoolStore{m}, audit, log)
}

func TestRiskPoolBalance(t *testing.T) {
	m := newMemStore()
	svc := newRiskPoolService(m)
	ctx := context.Background()

	if err := svc.Contribute(ctx, nil, "plan-1", 1_272, testActor); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if err := svc.RecordRecovery(ctx, nil, "plan-1", 15_900, testActor); err != nil {
		t.Fatalf("RecordRecovery: %v", err)
	}
	if err := svc.Claim(ctx, nil, "plan-1", 31_800, testActor); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	balance, err := svc.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != -14_628 {
		t.Errorf("balance = %d, want -14628 (1272 + 15900 - 31800)", balance)
	}
}

func TestRiskPoolRejectsNonPositiveAmounts(t *testing.T) {
	m := newMemStore()
	svc := newRiskPoolService(m)
	ctx := context.Background()

	if err := svc.Contribute(ctx, nil, "plan-1", 0, testActor); !domain.IsRange(err) {
		t.Errorf("contribute 0: err = %v, want RangeError", err)
	}
	if err := svc.Claim(ctx, nil, "plan-1", -5, testActor); !domain.IsRange(err) {
		t.Errorf("claim -5: err = %v, want RangeError", err)
	}
	if len(m.riskEntries) != 0 {
		t.Errorf("entries = %d, want 0", len(m.riskEntries))
	}
}

func TestRiskPoolHealth(t *testing.T) {
	m := newMemStore()
	svc := newRiskPoolService(m)
	ctx := context.Background()

	// no exposure: coverage defined as 0
	health, err := svc.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.CoverageRatio != 0 {
		t.Errorf("coverage with no exposure = %f, want 0", health.CoverageRatio)
	}

	m.plans["plan-1"] = domain.Plan{ID: "plan-1", Status: domain.PlanActive, RemainingCents: 100_000}
	m.plans["plan-2"] = domain.Plan{ID: "plan-2", Status: domain.PlanCompleted, RemainingCents: 0}
	if err := svc.Contribute(ctx, nil, "plan-1", 25_000, testActor); err != nil {
		t.Fatalf("Contribute: %v", err)
	}

	health, err = svc.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.BalanceCents != 25_000 {
		t.Errorf("balance = %d, want 25000", health.BalanceCents)
	}
	if health.ExposureCents != 100_000 {
		t.Errorf("exposure = %d, want 100000 (completed plans excluded)", health.ExposureCents)
	}
	if health.CoverageRatio != 0.25 {
		t.Errorf("coverage = %f, want 0.25", health.CoverageRatio)
	}
}
