package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pawpay/internal/service"
	"pawpay/internal/transport/auth"
)

func (h *Handler) createEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	result, err := h.enrollments.CreateEnrollment(r.Context(), req.ClinicID, service.OwnerInput{
		Email:            req.Owner.Email,
		FullName:         req.Owner.FullName,
		Phone:            req.Owner.Phone,
		PetName:          req.Owner.PetName,
		CustomerRef:      req.Owner.CustomerRef,
		PaymentMethodRef: req.Owner.PaymentMethodRef,
	}, req.BillAmountCents, actor, time.Now().UTC())
	if err != nil {
		h.log.Warn("create enrollment failed",
			zap.String("clinic_id", req.ClinicID),
			zap.Error(err),
		)
		DomainError(w, err)
		return
	}

	SuccessCreated(w, "enrollment created", result)
}

func (h *Handler) getEnrollment(w http.ResponseWriter, r *http.Request) {
	summary, err := h.enrollments.GetEnrollmentSummary(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "", summary)
}

func (h *Handler) cancelEnrollment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	planID := chi.URLParam(r, "plan_id")
	if err := h.enrollments.CancelEnrollment(r.Context(), planID, actor); err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "enrollment cancelled", nil)
}

func (h *Handler) retryPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	paymentID := chi.URLParam(r, "payment_id")
	if err := h.lifecycle.RetryPayment(r.Context(), paymentID, actor); err != nil {
		h.log.Warn("retry payment failed", zap.String("payment_id", paymentID), zap.Error(err))
		DomainError(w, err)
		return
	}
	SuccessAccepted(w, "charge submitted", map[string]interface{}{
		"payment_id": paymentID,
	})
}
