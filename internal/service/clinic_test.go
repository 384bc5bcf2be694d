package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"pawpay/internal/domain"
)

func newClinicService(m *memStore) *ClinicService {
	log := zap.NewNop()
	audit := NewAuditLogger(auditStore{m}, log)
	return NewClinicService(m, m, audit, log)
}

func TestClinicOnboarding(t *testing.T) {
	m := newMemStore()
	svc := newClinicService(m)
	ctx := context.Background()

	clinic, err := svc.CreateClinic(ctx, ClinicInput{Name: "Happy Paws", Email: "billing@happypaws.test"}, testActor)
	if err != nil {
		t.Fatalf("CreateClinic: %v", err)
	}
	if clinic.Status != domain.ClinicPending {
		t.Errorf("status = %s, want pending", clinic.Status)
	}

	// activation before a payout account exists is illegal
	if err := svc.ActivateClinic(ctx, clinic.ID, testActor); !domain.IsState(err) {
		t.Fatalf("activate without account: err = %v, want StateError", err)
	}

	if err := svc.SetPayoutAccount(ctx, clinic.ID, "acct_123", testActor); err != nil {
		t.Fatalf("SetPayoutAccount: %v", err)
	}
	if err := svc.ActivateClinic(ctx, clinic.ID, testActor); err != nil {
		t.Fatalf("ActivateClinic: %v", err)
	}
	if got := m.clinics[clinic.ID].Status; got != domain.ClinicActive {
		t.Errorf("status = %s, want active", got)
	}

	// repeated activation is a no-op
	if err := svc.ActivateClinic(ctx, clinic.ID, testActor); err != nil {
		t.Errorf("repeat activation: %v", err)
	}
}

func TestCreateClinicValidation(t *testing.T) {
	svc := newClinicService(newMemStore())
	if _, err := svc.CreateClinic(context.Background(), ClinicInput{Email: "x@y.test"}, testActor); !domain.IsValidation(err) {
		t.Errorf("missing name: err = %v, want ValidationError", err)
	}
	if _, err := svc.CreateClinic(context.Background(), ClinicInput{Name: "Paws"}, testActor); !domain.IsValidation(err) {
		t.Errorf("missing email: err = %v, want ValidationError", err)
	}
}

func TestSuspendClinic(t *testing.T) {
	m := newMemStore()
	seedActiveClinic(m, "clinic-1")
	svc := newClinicService(m)

	if err := svc.SuspendClinic(context.Background(), "clinic-1", "chargebacks", testActor); err != nil {
		t.Fatalf("SuspendClinic: %v", err)
	}
	if got := m.clinics["clinic-1"].Status; got != domain.ClinicSuspended {
		t.Errorf("status = %s, want suspended", got)
	}

	// suspended clinics cannot take a new payout account
	if err := svc.SetPayoutAccount(context.Background(), "clinic-1", "acct_new", testActor); !domain.IsState(err) {
		t.Errorf("err = %v, want StateError", err)
	}
}
