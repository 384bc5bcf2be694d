package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"pawpay/internal/domain"
)

func newCollectionsService(m *memStore) *CollectionsService {
	log := zap.NewNop()
	audit := NewAuditLogger(auditStore{m}, log)
	riskPool := NewRiskPoolService(riskPoolStore{m}, audit, log)
	return NewCollectionsService(
		m, planStore{m}, paymentStore{m}, collectionStore{m}, riskPool,
		audit, nil, nil, DefaultBillingPolicy(), log,
	)
}

// seedOverduePlan activates a plan whose next payment is overdue past the
// grace window.
func seedOverduePlan(t *testing.T, m *memStore, overdueBy time.Duration) string {
	t.Helper()
	result := seedEnrolledPlan(t, m)
	plan := m.plans[result.PlanID]
	plan.Status = domain.PlanActive
	due := time.Now().UTC().Add(-overdueBy)
	plan.NextPaymentAt = &due
	m.plans[result.PlanID] = plan
	return result.PlanID
}

func activeCollectionFor(m *memStore, planID string) *domain.SoftCollection {
	for _, c := range m.collections {
		if c.PlanID == planID && c.ActiveStage() {
			found := c
			return &found
		}
	}
	return nil
}

func TestOpenDelinquentCollections(t *testing.T) {
	m := newMemStore()
	planID := seedOverduePlan(t, m, 10*24*time.Hour)
	svc := newCollectionsService(m)
	now := time.Now().UTC()

	opened, err := svc.OpenDelinquentCollections(context.Background(), now)
	if err != nil {
		t.Fatalf("OpenDelinquentCollections: %v", err)
	}
	if opened != 1 {
		t.Fatalf("opened = %d, want 1", opened)
	}

	collection := activeCollectionFor(m, planID)
	if collection == nil {
		t.Fatal("no active collection created")
	}
	if collection.Stage != domain.StageDay1Reminder {
		t.Errorf("stage = %s, want day_1_reminder", collection.Stage)
	}
	if collection.NextEscalationAt == nil {
		t.Fatal("next escalation not set")
	}
	if want := now.Add(6 * 24 * time.Hour); !collection.NextEscalationAt.Equal(want) {
		t.Errorf("next escalation = %v, want %v", collection.NextEscalationAt, want)
	}

	// a second sweep must not duplicate the collection
	opened, err = svc.OpenDelinquentCollections(context.Background(), now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if opened != 0 {
		t.Errorf("second sweep opened = %d, want 0", opened)
	}
}

func TestOpenDelinquentCollectionsHonorsGrace(t *testing.T) {
	m := newMemStore()
	seedOverduePlan(t, m, 24*time.Hour) // overdue, but inside the 3-day grace
	svc := newCollectionsService(m)

	opened, err := svc.OpenDelinquentCollections(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("OpenDelinquentCollections: %v", err)
	}
	if opened != 0 {
		t.Errorf("opened = %d, want 0 within grace window", opened)
	}
}

func TestEscalateDueCollections(t *testing.T) {
	m := newMemStore()
	planID := seedOverduePlan(t, m, 10*24*time.Hour)
	svc := newCollectionsService(m)
	now := time.Now().UTC()

	if _, err := svc.OpenDelinquentCollections(context.Background(), now); err != nil {
		t.Fatalf("open: %v", err)
	}

	// day 7: first escalation is due
	later := now.Add(6 * 24 * time.Hour)
	escalated, defaulted, err := svc.EscalateDueCollections(context.Background(), later)
	if err != nil {
		t.Fatalf("EscalateDueCollections: %v", err)
	}
	if escalated != 1 || defaulted != 0 {
		t.Fatalf("escalated/defaulted = %d/%d, want 1/0", escalated, defaulted)
	}

	collection := activeCollectionFor(m, planID)
	if collection.Stage != domain.StageDay7Followup {
		t.Errorf("stage = %s, want day_7_followup", collection.Stage)
	}
	if want := later.Add(7 * 24 * time.Hour); !collection.NextEscalationAt.Equal(want) {
		t.Errorf("next escalation = %v, want %v", collection.NextEscalationAt, want)
	}

	// not yet due again
	escalated, defaulted, err = svc.EscalateDueCollections(context.Background(), later.Add(time.Hour))
	if err != nil {
		t.Fatalf("early escalation: %v", err)
	}
	if escalated != 0 || defaulted != 0 {
		t.Errorf("early escalation = %d/%d, want 0/0", escalated, defaulted)
	}
}

func TestFinalStageDefaultsPlan(t *testing.T) {
	m := newMemStore()
	planID := seedOverduePlan(t, m, 20*24*time.Hour)
	svc := newCollectionsService(m)
	now := time.Now().UTC()

	collectionID := "col-1"
	escalation := now.Add(-time.Hour)
	m.collections[collectionID] = domain.SoftCollection{
		ID:               collectionID,
		PlanID:           planID,
		Stage:            domain.StageDay14Final,
		StartedAt:        now.Add(-14 * 24 * time.Hour),
		NextEscalationAt: &escalation,
	}

	outstanding, err := paymentStore{m}.OutstandingByPlan(context.Background(), nil, planID)
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if outstanding == 0 {
		t.Fatal("test setup: plan has no outstanding balance")
	}

	escalated, defaulted, err := svc.EscalateDueCollections(context.Background(), now)
	if err != nil {
		t.Fatalf("EscalateDueCollections: %v", err)
	}
	if escalated != 0 || defaulted != 1 {
		t.Fatalf("escalated/defaulted = %d/%d, want 0/1", escalated, defaulted)
	}

	if got := m.plans[planID].Status; got != domain.PlanDefaulted {
		t.Errorf("plan status = %s, want defaulted", got)
	}
	if got := m.collections[collectionID].Stage; got != domain.StageCompleted {
		t.Errorf("collection stage = %s, want completed", got)
	}

	// the claim covers the full outstanding balance
	var claim *domain.RiskPoolEntry
	for i := range m.riskEntries {
		if m.riskEntries[i].Type == domain.RiskPoolClaim {
			claim = &m.riskEntries[i]
		}
	}
	if claim == nil {
		t.Fatal("no risk pool claim recorded")
	}
	if claim.AmountCents != outstanding {
		t.Errorf("claim = %d, want %d", claim.AmountCents, outstanding)
	}

	// every unsettled payment is written off
	for _, p := range m.payments {
		if p.PlanID == planID && p.Status != domain.PaymentSucceeded && p.Status != domain.PaymentWrittenOff {
			t.Errorf("payment %s left in status %s", p.ID, p.Status)
		}
	}
}

func TestFinalStageOnSettledPlanJustCloses(t *testing.T) {
	m := newMemStore()
	planID := seedOverduePlan(t, m, 20*24*time.Hour)
	plan := m.plans[planID]
	plan.Status = domain.PlanCompleted
	m.plans[planID] = plan
	svc := newCollectionsService(m)
	now := time.Now().UTC()

	escalation := now.Add(-time.Hour)
	m.collections["col-1"] = domain.SoftCollection{
		ID:               "col-1",
		PlanID:           planID,
		Stage:            domain.StageDay14Final,
		NextEscalationAt: &escalation,
	}

	_, defaulted, err := svc.EscalateDueCollections(context.Background(), now)
	if err != nil {
		t.Fatalf("EscalateDueCollections: %v", err)
	}
	if defaulted != 1 {
		t.Fatalf("defaulted = %d, want 1 (counted but closed without claim)", defaulted)
	}
	if got := m.plans[planID].Status; got != domain.PlanCompleted {
		t.Errorf("plan status = %s, want untouched completed", got)
	}
	if got := m.collections["col-1"].Stage; got != domain.StageCancelled {
		t.Errorf("collection stage = %s, want cancelled", got)
	}
	for _, e := range m.riskEntries {
		if e.Type == domain.RiskPoolClaim {
			t.Error("unexpected risk pool claim on settled plan")
		}
	}
}
