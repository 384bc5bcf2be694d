package domain

import "time"

// Owner is a pet owner, unique per (clinic, email).
type Owner struct {
	ID       string
	ClinicID string
	Email    string
	FullName string
	Phone    string
	PetName  string

	// external payment instrument references
	CustomerRef      *string
	PaymentMethodRef *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
