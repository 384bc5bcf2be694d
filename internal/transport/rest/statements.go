package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) startStatement(w http.ResponseWriter, r *http.Request) {
	var req StartStatementRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	from, to, err := req.Period()
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	clinicID := chi.URLParam(r, "clinic_id")
	statementID, err := h.statements.StartStatement(r.Context(), clinicID, from, to)
	if err != nil {
		h.log.Warn("start statement failed", zap.String("clinic_id", clinicID), zap.Error(err))
		DomainError(w, err)
		return
	}

	SuccessAccepted(w, "statement queued", map[string]interface{}{
		"statement_id": statementID,
	})
}

func (h *Handler) listStatements(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinic_id")
	statements, err := h.statements.ListStatements(r.Context(), clinicID)
	if err != nil {
		ErrorInternal(w, "internal error")
		return
	}
	Success(w, "", statements)
}

func (h *Handler) getStatement(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinic_id")
	statementID := chi.URLParam(r, "statement_id")

	status, err := h.statements.GetStatement(r.Context(), statementID, clinicID)
	if err != nil {
		DomainError(w, err)
		return
	}
	Success(w, "", status)
}
