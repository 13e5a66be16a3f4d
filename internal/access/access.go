// Package access is the entitlement grant engine. It validates a purchase
// request, prices it, challenges the caller for payment over the x402
// protocol, verifies and settles the payment through the facilitator, and
// finally applies the Discord role and records the grant.
package access

import (
	"errors"
	"fmt"

	"github.com/rolegate/rolegate/internal/x402"
)

// Errors
var (
	ErrInsufficientBalance = errors.New("access: custodial balance below price")
	ErrUnsupportedPrice    = errors.New("access: price cannot be expressed on this network")
	ErrGrantFailed         = errors.New("access: role grant failed after settlement")
)

// Request is one grant attempt. PaymentHeader carries the raw X-Payment
// value when the caller is resubmitting with a signed payment.
type Request struct {
	DiscordID     string
	GuildID       string
	DiscordRoleID string
	Network       string
	DurationSec   int64
	InvoiceToken  string
	PaymentHeader string
	// Resource is the URL of the gated endpoint, echoed into the challenge.
	Resource string
}

// PaymentRequiredError is returned whenever the request must be answered
// with a 402: no payment attached, malformed payment, verification or
// settlement rejection. Accepts carries the current challenge set so the
// client can retry with a correctly priced payment.
type PaymentRequiredError struct {
	Reason  string
	Payer   string
	Accepts []x402.PaymentRequirements
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("access: payment required: %s", e.Reason)
}

// Body renders the error as the standard 402 response payload.
func (e *PaymentRequiredError) Body() *x402.PaymentRequired {
	return &x402.PaymentRequired{
		X402Version: x402.Version,
		Error:       e.Reason,
		Accepts:     e.Accepts,
		Payer:       e.Payer,
	}
}
