package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type CreateClinicRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type SetPayoutAccountRequest struct {
	PayoutAccountID string `json:"payout_account_id" validate:"required"`
}

type SuspendClinicRequest struct {
	Reason string `json:"reason"`
}

type CreateEnrollmentRequest struct {
	ClinicID        string `json:"clinic_id" validate:"required"`
	BillAmountCents int64  `json:"bill_amount_cents" validate:"required,gt=0"`

	Owner struct {
		Email            string `json:"email" validate:"required,email"`
		FullName         string `json:"full_name" validate:"required"`
		Phone            string `json:"phone"`
		PetName          string `json:"pet_name"`
		CustomerRef      string `json:"customer_ref"`
		PaymentMethodRef string `json:"payment_method_ref"`
	} `json:"owner" validate:"required"`
}

type ProcessorWebhookRequest struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required,oneof=payment.succeeded payment.failed"`

	Data struct {
		ProcessorRef  string `json:"processor_ref" validate:"required"`
		FailureReason string `json:"failure_reason"`
	} `json:"data"`
}

type StartStatementRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// Period parses the statement bounds as YYYY-MM-DD dates in UTC.
func (r *StartStatementRequest) Period() (from, to time.Time, err error) {
	from, err = time.ParseInLocation("2006-01-02", r.From, time.UTC)
	if err != nil {
		return from, to, fmt.Errorf("from must be YYYY-MM-DD: %w", err)
	}
	to, err = time.ParseInLocation("2006-01-02", r.To, time.UTC)
	if err != nil {
		return from, to, fmt.Errorf("to must be YYYY-MM-DD: %w", err)
	}
	return from, to, nil
}

// DecodeAndValidate parses the JSON body into dst and runs struct
// validation. The returned error is safe to echo to the caller.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return errors.New(validationMessage(invalid))
		}
		return errors.New("invalid request")
	}
	return nil
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fieldName(fe)))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fieldName(fe)))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", fieldName(fe), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fieldName(fe), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fieldName(fe)))
		}
	}
	return strings.Join(parts, "; ")
}

func fieldName(fe validator.FieldError) string {
	// StructNamespace like "CreateEnrollmentRequest.Owner.Email" -> "owner.email"
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}
