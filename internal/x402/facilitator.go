package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rolegate/rolegate/internal/retry"
)

// Facilitator is the outbound interface the grant flow depends on.
// Verify is a dry-run signature/balance check; Settle moves funds.
type Facilitator interface {
	Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error)
}

// FacilitatorClient talks to a remote x402 facilitator over HTTP.
type FacilitatorClient struct {
	baseURL    string
	httpClient *http.Client

	// VerifyTimeout and SettleTimeout bound each facilitator call when the
	// caller's context has no deadline of its own.
	VerifyTimeout time.Duration
	SettleTimeout time.Duration

	// VerifyRetries is the number of extra attempts for verify calls that
	// fail at the transport level (request never delivered). Settle is
	// never retried: a transport error after the request left this process
	// is ambiguous and retrying could double-charge.
	VerifyRetries int
}

// Compile-time interface check
var _ Facilitator = (*FacilitatorClient)(nil)

// NewFacilitatorClient creates a client for the given facilitator base URL.
func NewFacilitatorClient(baseURL string) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		VerifyTimeout: 30 * time.Second,
		SettleTimeout: 60 * time.Second,
		VerifyRetries: 2,
	}
}

// WithHTTPClient sets a custom HTTP client (for testing).
func (c *FacilitatorClient) WithHTTPClient(hc *http.Client) *FacilitatorClient {
	c.httpClient = hc
	return c
}

// facilitatorRequest is the envelope both endpoints accept.
type facilitatorRequest struct {
	X402Version         int                  `json:"x402Version"`
	PaymentPayload      *PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *PaymentRequirements `json:"paymentRequirements"`
}

// Verify checks a payment authorization without executing it.
func (c *FacilitatorClient) Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error) {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("x402: marshal verify request: %w", err)
	}

	var resp VerifyResponse
	err = retry.Do(ctx, c.VerifyRetries+1, 200*time.Millisecond, func() error {
		return c.post(ctx, "/verify", body, c.VerifyTimeout, &resp, ErrVerificationFailed)
	})
	if err != nil {
		return nil, err
	}

	if resp.Payer == "" {
		resp.Payer = payload.Payer()
	}
	return &resp, nil
}

// Settle executes a verified payment on-chain. Attempted at most once.
func (c *FacilitatorClient) Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error) {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("x402: marshal settle request: %w", err)
	}

	var resp SettleResponse
	if err := c.post(ctx, "/settle", body, c.SettleTimeout, &resp, ErrSettlementFailed); err != nil {
		return nil, err
	}

	if resp.Payer == "" {
		resp.Payer = payload.Payer()
	}
	return &resp, nil
}

// post sends a JSON request to the facilitator and decodes the response.
// Transport failures are wrapped in ErrFacilitatorUnavailable; non-200
// statuses are wrapped in baseErr with the facilitator's reason when present.
func (c *FacilitatorClient) post(ctx context.Context, path string, body []byte, timeout time.Duration, out interface{}, baseErr error) error {
	reqCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("x402: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFacilitatorUnavailable, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return retry.Permanent(parseErrorResponse(httpResp, baseErr))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("x402: decode %s response: %w", path, err))
	}
	return nil
}

// parseErrorResponse extracts a reason code from a non-200 facilitator reply.
func parseErrorResponse(resp *http.Response, baseErr error) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errBody map[string]interface{}
	if err := json.Unmarshal(raw, &errBody); err == nil {
		if reason, ok := errBody["invalidReason"].(string); ok && reason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", baseErr, resp.StatusCode, reason)
		}
		if reason, ok := errBody["errorReason"].(string); ok && reason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", baseErr, resp.StatusCode, reason)
		}
	}

	if len(raw) > 0 && len(raw) < 500 {
		return fmt.Errorf("%w: status %d, body: %s", baseErr, resp.StatusCode, string(raw))
	}
	return fmt.Errorf("%w: status %d", baseErr, resp.StatusCode)
}
