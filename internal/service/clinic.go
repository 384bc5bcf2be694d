package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

// ClinicInput is the data submitted when onboarding a clinic.
type ClinicInput struct {
	Name  string
	Email string
}

// ClinicService handles clinic onboarding: a clinic starts pending, gains a
// payout account, and only then can be activated for enrollments.
type ClinicService struct {
	db      Transactor
	clinics ClinicStore
	audit   *AuditLogger
	log     *zap.Logger
}

func NewClinicService(db Transactor, clinics ClinicStore, audit *AuditLogger, log *zap.Logger) *ClinicService {
	return &ClinicService{db: db, clinics: clinics, audit: audit, log: log}
}

func (s *ClinicService) CreateClinic(ctx context.Context, in ClinicInput, actor domain.Actor) (*domain.Clinic, error) {
	if in.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "clinic name is required"}
	}
	if in.Email == "" {
		return nil, &domain.ValidationError{Field: "email", Message: "clinic email is required"}
	}

	now := time.Now().UTC()
	clinic := &domain.Clinic{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Status:    domain.ClinicPending,
		CreatedAt: now,
	}

	err := s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.clinics.Create(ctx, ex, clinic); err != nil {
			return err
		}
		s.audit.Record(ctx, actor, "clinic", clinic.ID, "created", nil, map[string]any{
			"name":  clinic.Name,
			"email": clinic.Email,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("clinic created", zap.String("clinic_id", clinic.ID), zap.String("name", clinic.Name))
	return clinic, nil
}

func (s *ClinicService) GetClinic(ctx context.Context, id string) (*domain.Clinic, error) {
	return s.clinics.GetByID(ctx, nil, id)
}

// SetPayoutAccount attaches the processor account transfers settle into.
func (s *ClinicService) SetPayoutAccount(ctx context.Context, clinicID, accountRef string, actor domain.Actor) error {
	if accountRef == "" {
		return &domain.ValidationError{Field: "payout_account_id", Message: "payout account reference is required"}
	}

	clinic, err := s.clinics.GetByID(ctx, nil, clinicID)
	if err != nil {
		return err
	}
	if clinic.Status == domain.ClinicSuspended {
		return &domain.StateError{Entity: "clinic", ID: clinicID, Message: "clinic is suspended"}
	}

	now := time.Now().UTC()
	return s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.clinics.SetPayoutAccount(ctx, ex, clinicID, accountRef, now); err != nil {
			return err
		}
		s.audit.Record(ctx, actor, "clinic", clinicID, "payout_account_set",
			map[string]any{"payout_account_id": clinic.PayoutAccountID},
			map[string]any{"payout_account_id": accountRef},
		)
		return nil
	})
}

// ActivateClinic opens the clinic for enrollments. A payout account must
// exist first so succeeded payments can always settle.
func (s *ClinicService) ActivateClinic(ctx context.Context, clinicID string, actor domain.Actor) error {
	clinic, err := s.clinics.GetByID(ctx, nil, clinicID)
	if err != nil {
		return err
	}
	if clinic.Status == domain.ClinicActive {
		return nil
	}
	if !clinic.PayoutCapable() {
		return &domain.StateError{Entity: "clinic", ID: clinicID, Message: "clinic has no payout account"}
	}

	now := time.Now().UTC()
	err = s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.clinics.SetStatus(ctx, ex, clinicID, domain.ClinicActive, now); err != nil {
			return err
		}
		s.audit.Record(ctx, actor, "clinic", clinicID, "activated",
			map[string]any{"status": clinic.Status},
			map[string]any{"status": domain.ClinicActive},
		)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("clinic activated", zap.String("clinic_id", clinicID))
	return nil
}

// SuspendClinic blocks new enrollments and payouts for a clinic.
func (s *ClinicService) SuspendClinic(ctx context.Context, clinicID, reason string, actor domain.Actor) error {
	clinic, err := s.clinics.GetByID(ctx, nil, clinicID)
	if err != nil {
		return err
	}
	if clinic.Status == domain.ClinicSuspended {
		return nil
	}

	now := time.Now().UTC()
	return s.db.Transact(ctx, func(ex repository.Executor) error {
		if err := s.clinics.SetStatus(ctx, ex, clinicID, domain.ClinicSuspended, now); err != nil {
			return err
		}
		s.audit.Record(ctx, actor, "clinic", clinicID, "suspended",
			map[string]any{"status": clinic.Status},
			map[string]any{"status": domain.ClinicSuspended, "reason": reason},
		)
		return nil
	})
}
