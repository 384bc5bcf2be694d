package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pawpay/internal/domain"
)

// ChargeResult is the processor's answer to a charge request. Ref is the
// processor's own reference id; asynchronous callbacks are keyed by it.
type ChargeResult struct {
	Ref    string `json:"reference"`
	Status string `json:"status"`
}

type ProcessorConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ProcessorClient talks to the external payment processor over its JSON
// API. It implements the charge and transfer primitives the ledger
// orchestrates; success/failure arrives later through webhooks.
type ProcessorClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewProcessorClient(cfg ProcessorConfig) *ProcessorClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ProcessorClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *ProcessorClient) ChargeDeposit(ctx context.Context, customerRef string, amountCents int64) (ChargeResult, error) {
	body := map[string]any{
		"customer":     customerRef,
		"amount_cents": amountCents,
		"kind":         "deposit",
	}
	var res ChargeResult
	if err := c.post(ctx, "/v1/charges", "", body, &res); err != nil {
		return ChargeResult{}, &domain.ExternalServiceError{Op: "charge deposit", Err: err}
	}
	return res, nil
}

func (c *ProcessorClient) ChargeInstallment(ctx context.Context, customerRef string, amountCents int64, paymentMethodRef string) (ChargeResult, error) {
	body := map[string]any{
		"customer":     customerRef,
		"amount_cents": amountCents,
		"kind":         "installment",
	}
	if paymentMethodRef != "" {
		body["payment_method"] = paymentMethodRef
	}
	var res ChargeResult
	if err := c.post(ctx, "/v1/charges", "", body, &res); err != nil {
		return ChargeResult{}, &domain.ExternalServiceError{Op: "charge installment", Err: err}
	}
	return res, nil
}

// Transfer moves funds to a clinic sub-account. The idempotency key makes
// retried sweeps safe: the processor deduplicates on it.
func (c *ProcessorClient) Transfer(ctx context.Context, destinationRef string, amountCents int64, idempotencyKey string, metadata map[string]string) (string, error) {
	body := map[string]any{
		"destination":  destinationRef,
		"amount_cents": amountCents,
		"metadata":     metadata,
	}
	var res struct {
		TransferID string `json:"transfer_id"`
	}
	if err := c.post(ctx, "/v1/transfers", idempotencyKey, body, &res); err != nil {
		return "", &domain.ExternalServiceError{Op: "transfer", Err: err}
	}
	return res.TransferID, nil
}

func (c *ProcessorClient) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("processor returned %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
