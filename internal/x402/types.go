// Package x402 implements the server side of the x402 payment protocol:
// the 402 challenge types, the X-Payment header codec, and the client
// for the external facilitator that verifies and settles payments.
package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version embedded in every envelope.
const Version = 1

// Errors
var (
	ErrMalformedPayment       = errors.New("x402: invalid or malformed payment header")
	ErrFacilitatorUnavailable = errors.New("x402: facilitator unavailable")
	ErrVerificationFailed     = errors.New("x402: payment verification failed")
	ErrSettlementFailed       = errors.New("x402: payment settlement failed")
)

// PaymentRequirements is one acceptable payment option, advertised in the
// "accepts" array of a 402 response. Amounts are atomic units of the asset.
type PaymentRequirements struct {
	Scheme            string       `json:"scheme"`
	Network           string       `json:"network"`
	MaxAmountRequired string       `json:"maxAmountRequired"`
	Resource          string       `json:"resource"`
	Description       string       `json:"description"`
	MimeType          string       `json:"mimeType"`
	PayTo             string       `json:"payTo"`
	MaxTimeoutSeconds int          `json:"maxTimeoutSeconds"`
	Asset             string       `json:"asset"`
	OutputSchema      OutputSchema `json:"outputSchema"`
	// Extra carries the asset's EIP-712 signing domain (name, version) so
	// the facilitator can validate the typed-data signature.
	Extra ExtraDomain `json:"extra"`
}

// OutputSchema describes the shape of the gated resource's response.
type OutputSchema struct {
	Input  SchemaInput  `json:"input"`
	Output SchemaOutput `json:"output"`
}

type SchemaInput struct {
	Type   string `json:"type"`
	Method string `json:"method"`
}

type SchemaOutput struct {
	Success SchemaField `json:"success"`
}

type SchemaField struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ExtraDomain is the EIP-712 domain metadata of the fee token.
type ExtraDomain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PaymentPayload is the decoded X-Payment header for the "exact" EVM scheme.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEVMPayload `json:"payload"`
}

// ExactEVMPayload carries the EIP-3009 transferWithAuthorization data
// signed by the payer.
type ExactEVMPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Authorization holds the transferWithAuthorization parameters.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// Payer returns the payer address carried in the authorization.
func (p *PaymentPayload) Payer() string {
	return p.Payload.Authorization.From
}

// VerifyResponse is returned by the facilitator /verify endpoint.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is returned by the facilitator /settle endpoint.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
}

// PaymentRequired is the JSON body of every 402 response.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Payer       string                `json:"payer,omitempty"`
}

// DecodePayment decodes a base64 X-Payment header value into a payload.
// A decode failure is a client error, never retried.
func DecodePayment(header string) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}
	payload.X402Version = Version
	return &payload, nil
}

// EncodePayment encodes a payload into an X-Payment header value.
// Used by tests and client tooling.
func EncodePayment(payload *PaymentPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("x402: marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SettleResponseHeader encodes a settlement receipt for the
// X-Payment-Response header.
func SettleResponseHeader(resp *SettleResponse) (string, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("x402: marshal settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// FindMatchingRequirements selects the requirement whose scheme and network
// match the decoded payload. Returns nil if no exact match exists; callers
// fall back to the first requirement (a deliberate permissiveness policy).
func FindMatchingRequirements(accepts []PaymentRequirements, payload *PaymentPayload) *PaymentRequirements {
	for i := range accepts {
		if accepts[i].Scheme == payload.Scheme && accepts[i].Network == payload.Network {
			return &accepts[i]
		}
	}
	return nil
}

// SelectRequirement matches the payload against accepts, falling back to
// the first entry when nothing matches exactly.
func SelectRequirement(accepts []PaymentRequirements, payload *PaymentPayload) (*PaymentRequirements, error) {
	if len(accepts) == 0 {
		return nil, errors.New("x402: no payment requirements to match")
	}
	if match := FindMatchingRequirements(accepts, payload); match != nil {
		return match, nil
	}
	return &accepts[0], nil
}
