/**
 * @description
 * This package provides a client for a remote fraud-service. The reference
 * deployment runs risk scoring as its own service behind POST /fraud/check;
 * this client lets the orchestrator consume it over HTTP with a bounded
 * timeout instead of the in-process engine.
 */
package fraudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumenbank/transaction-service/internal/risk"
)

// Client is a client for the fraud service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new fraud service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	FromAccountID  string `json:"fromAccountId"`
	ToAccountID    string `json:"toAccountId"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	IsNewRecipient bool   `json:"isNewRecipient,omitempty"`
}

// Evaluate calls the fraud service and returns its assessment. Any transport
// or decode failure is returned to the caller, which treats the gate as
// unavailable and fails closed. The call is deliberately not retried: it is
// immediately followed by a settlement decision.
func (c *Client) Evaluate(ctx context.Context, in risk.Input) (risk.Assessment, error) {
	if c.baseURL == "" {
		return risk.Assessment{}, fmt.Errorf("fraud service base url is empty")
	}

	payload := checkRequest{
		FromAccountID:  in.FromAccountID,
		ToAccountID:    in.ToAccountID,
		Amount:         in.Amount.String(),
		Currency:       in.Currency,
		IsNewRecipient: in.IsNewRecipient,
	}
	if !in.Timestamp.IsZero() {
		payload.Timestamp = in.Timestamp.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return risk.Assessment{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/fraud/check", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return risk.Assessment{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return risk.Assessment{}, fmt.Errorf("failed to execute request to fraud service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return risk.Assessment{}, fmt.Errorf("fraud service returned error status %d", resp.StatusCode)
	}

	var assessment risk.Assessment
	if err := json.NewDecoder(resp.Body).Decode(&assessment); err != nil {
		return risk.Assessment{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if assessment.Reasons == nil {
		assessment.Reasons = []string{}
	}

	switch assessment.Decision {
	case risk.DecisionAllow, risk.DecisionFlag, risk.DecisionBlock:
	default:
		return risk.Assessment{}, fmt.Errorf("fraud service returned unknown decision %q", assessment.Decision)
	}

	return assessment, nil
}
