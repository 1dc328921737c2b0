package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayClient talks to the external payment gateway. Both calls are keyed by
// the payment reference and are safe to repeat: Initiate returns the same
// checkout session for a known reference, Verify is a read.
type GatewayClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type InitiatePaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	PayerName  string          `json:"payer_name"`
	PayerPhone string          `json:"payer_phone"`
	Reference  string          `json:"reference"`
}

type initiatePaymentResponse struct {
	CheckoutUrl string `json:"checkout_url"`
}

func (c *GatewayClient) Initiate(ctx context.Context, req InitiatePaymentRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal initiate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/checkout", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build initiate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to initiate payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status code from gateway checkout: %d", resp.StatusCode)
	}

	var out initiatePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}

	return out.CheckoutUrl, nil
}

type verifyPaymentResponse struct {
	Paid bool `json:"paid"`
}

// Verify asks the gateway whether the payment behind the reference has been
// collected. Only an explicit "paid" answer is a confirmation; an unknown
// reference reads as not paid, and any transport or server error is returned
// as-is for the caller to retry later.
func (c *GatewayClient) Verify(ctx context.Context, reference string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/payments/"+reference, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build verify request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("failed to verify payment: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("unexpected status code from gateway verify: %d", resp.StatusCode)
	}

	var out verifyPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return out.Paid, nil
}
