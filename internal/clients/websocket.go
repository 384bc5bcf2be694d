package clients

import (
	"context"
	"fmt"

	ws "pawpay/internal/transport/websocket"
)

// WebSocketClient pushes live financing events to a clinic's dashboard.
// All notifications are best-effort; a nil client or hub is a no-op.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

// NotifyPaymentEvent announces a payment transition (succeeded, failed,
// written_off) under a clinic's plan.
func (c *WebSocketClient) NotifyPaymentEvent(ctx context.Context, clinicID, planID, paymentID, status string, amountCents int64) error {
	if c == nil || c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "payment_" + status,
		Channel: fmt.Sprintf("clinic_plan_activity#%s", clinicID),
		Data: map[string]interface{}{
			"plan_id":      planID,
			"payment_id":   paymentID,
			"status":       status,
			"amount_cents": amountCents,
		},
	}

	c.hub.Broadcast(clinicID, message)
	return nil
}

// NotifyPlanEvent announces a plan transition (activated, completed,
// defaulted, cancelled).
func (c *WebSocketClient) NotifyPlanEvent(ctx context.Context, clinicID, planID, status string) error {
	if c == nil || c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "plan_" + status,
		Channel: fmt.Sprintf("clinic_plan_activity#%s", clinicID),
		Data: map[string]interface{}{
			"plan_id": planID,
			"status":  status,
		},
	}

	c.hub.Broadcast(clinicID, message)
	return nil
}

// NotifyPayoutEvent announces an executed or failed clinic payout.
func (c *WebSocketClient) NotifyPayoutEvent(ctx context.Context, clinicID, payoutID, status string, amountCents int64, transferID string) error {
	if c == nil || c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "payout_" + status,
		Channel: fmt.Sprintf("clinic_payouts#%s", clinicID),
		Data: map[string]interface{}{
			"payout_id":    payoutID,
			"status":       status,
			"amount_cents": amountCents,
			"transfer_id":  transferID,
		},
	}

	c.hub.Broadcast(clinicID, message)
	return nil
}

// NotifyStatementReady tells a clinic its statement export finished.
func (c *WebSocketClient) NotifyStatementReady(ctx context.Context, clinicID, statementID, url, filename string) error {
	if c == nil || c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "statement_ready",
		Channel: fmt.Sprintf("clinic_statements#%s", clinicID),
		Data: map[string]interface{}{
			"id":       statementID,
			"url":      url,
			"filename": filename,
		},
	}

	c.hub.Broadcast(clinicID, message)
	return nil
}

// NotifyStatementFailed tells a clinic its statement export failed.
func (c *WebSocketClient) NotifyStatementFailed(ctx context.Context, clinicID, statementID, errMsg string) error {
	if c == nil || c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "statement_failed",
		Channel: fmt.Sprintf("clinic_statements#%s", clinicID),
		Data: map[string]interface{}{
			"id":      statementID,
			"message": errMsg,
		},
	}

	c.hub.Broadcast(clinicID, message)
	return nil
}
