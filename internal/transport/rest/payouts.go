package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pawpay/internal/transport/auth"
)

func (h *Handler) processPayout(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActor(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	paymentID := chi.URLParam(r, "payment_id")
	payout, err := h.payouts.ProcessClinicPayout(r.Context(), paymentID, actor)
	if err != nil {
		h.log.Warn("payout failed", zap.String("payment_id", paymentID), zap.Error(err))
		DomainError(w, err)
		return
	}

	SuccessCreated(w, "payout executed", map[string]interface{}{
		"payout_id":    payout.ID,
		"amount_cents": payout.AmountCents,
		"transfer_id":  payout.TransferID,
	})
}

func (h *Handler) sweepPayouts(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetActor(r.Context()); err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	summary, err := h.payouts.ProcessPendingPayouts(r.Context())
	if err != nil {
		h.log.Error("payout sweep failed", zap.Error(err))
		ErrorInternal(w, "sweep failed")
		return
	}
	Success(w, "sweep finished", summary)
}

func (h *Handler) riskPoolBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.riskPool.Balance(r.Context())
	if err != nil {
		ErrorInternal(w, "internal error")
		return
	}
	Success(w, "", map[string]interface{}{
		"balance_cents": balance,
	})
}

func (h *Handler) riskPoolHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.riskPool.Health(r.Context())
	if err != nil {
		ErrorInternal(w, "internal error")
		return
	}
	Success(w, "", map[string]interface{}{
		"balance_cents":  health.BalanceCents,
		"exposure_cents": health.ExposureCents,
		"coverage_ratio": health.CoverageRatio,
	})
}
