package rest

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"pawpay/internal/domain"
)

const webhookDedupeTTL = 24 * time.Hour

// processorWebhook handles payment.succeeded / payment.failed deliveries
// from the external processor. The lifecycle handlers are idempotent on
// their own; the redis SetNX only short-circuits repeated deliveries early.
func (h *Handler) processorWebhook(w http.ResponseWriter, r *http.Request) {
	var req ProcessorWebhookRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	if h.redis != nil {
		fresh, err := h.redis.SetNX(r.Context(), "webhook:"+req.ID, 1, webhookDedupeTTL)
		if err != nil {
			h.log.Warn("webhook dedupe check failed", zap.String("event_id", req.ID), zap.Error(err))
		} else if !fresh {
			Success(w, "duplicate delivery ignored", nil)
			return
		}
	}

	payment, err := h.lifecycle.FindPaymentByProcessorRef(r.Context(), req.Data.ProcessorRef)
	if err != nil {
		// acknowledge unknown refs: the processor retries forever otherwise
		if domain.IsNotFound(err) {
			h.log.Warn("webhook for unknown payment",
				zap.String("event_id", req.ID),
				zap.String("processor_ref", req.Data.ProcessorRef),
			)
			Success(w, "unknown payment reference ignored", nil)
			return
		}
		ErrorInternal(w, "internal error")
		return
	}

	switch req.Type {
	case "payment.succeeded":
		err = h.lifecycle.HandlePaymentSuccess(r.Context(), payment.ID, req.Data.ProcessorRef, domain.SystemActor)
	case "payment.failed":
		err = h.lifecycle.HandlePaymentFailure(r.Context(), payment.ID, req.Data.FailureReason, domain.SystemActor)
	}
	if err != nil {
		h.log.Error("webhook processing failed",
			zap.String("event_id", req.ID),
			zap.String("type", req.Type),
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		ErrorInternal(w, "internal error")
		return
	}

	Success(w, "processed", map[string]interface{}{
		"payment_id": payment.ID,
	})
}
