package domain

import "time"

type ClinicStatus string

const (
	ClinicPending   ClinicStatus = "pending"
	ClinicActive    ClinicStatus = "active"
	ClinicSuspended ClinicStatus = "suspended"
)

type Clinic struct {
	ID              string
	Name            string
	Email           string
	Status          ClinicStatus
	PayoutAccountID *string // external processor sub-account, nil until onboarding completes

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PayoutCapable reports whether clinic payouts can be executed.
func (c *Clinic) PayoutCapable() bool {
	return c.PayoutAccountID != nil && *c.PayoutAccountID != ""
}
