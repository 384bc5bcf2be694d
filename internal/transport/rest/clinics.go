package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pawpay/internal/service"
	"pawpay/internal/transport/auth"
)

func (h *Handler) createClinic(w http.ResponseWriter, r *http.Request) {
	var req CreateClinicRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	clinic, err := h.clinics.CreateClinic(r.Context(), service.ClinicInput{
		Name:  req.Name,
		Email: req.Email,
	}, actor)
	if err != nil {
		h.log.Warn("create clinic failed", zap.Error(err))
		DomainError(w, err)
		return
	}

	SuccessCreated(w, "clinic created", map[string]interface{}{
		"clinic_id": clinic.ID,
		"status":    clinic.Status,
	})
}

func (h *Handler) getClinic(w http.ResponseWriter, r *http.Request) {
	clinic, err := h.clinics.GetClinic(r.Context(), chi.URLParam(r, "clinic_id"))
	if err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "", clinic)
}

func (h *Handler) setPayoutAccount(w http.ResponseWriter, r *http.Request) {
	var req SetPayoutAccountRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	clinicID := chi.URLParam(r, "clinic_id")
	if err := h.clinics.SetPayoutAccount(r.Context(), clinicID, req.PayoutAccountID, actor); err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "payout account set", nil)
}

func (h *Handler) activateClinic(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	clinicID := chi.URLParam(r, "clinic_id")
	if err := h.clinics.ActivateClinic(r.Context(), clinicID, actor); err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "clinic activated", nil)
}

func (h *Handler) suspendClinic(w http.ResponseWriter, r *http.Request) {
	var req SuspendClinicRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	clinicID := chi.URLParam(r, "clinic_id")
	if err := h.clinics.SuspendClinic(r.Context(), clinicID, req.Reason, actor); err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "clinic suspended", nil)
}
