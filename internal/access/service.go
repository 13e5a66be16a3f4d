package access

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rolegate/rolegate/internal/grant"
	"github.com/rolegate/rolegate/internal/idgen"
	"github.com/rolegate/rolegate/internal/invoice"
	"github.com/rolegate/rolegate/internal/logging"
	"github.com/rolegate/rolegate/internal/metrics"
	"github.com/rolegate/rolegate/internal/network"
	"github.com/rolegate/rolegate/internal/platform"
	"github.com/rolegate/rolegate/internal/principal"
	"github.com/rolegate/rolegate/internal/role"
	"github.com/rolegate/rolegate/internal/tenant"
	"github.com/rolegate/rolegate/internal/x402"
)

// BalanceSource reads a custodial wallet's USDC balance.
type BalanceSource interface {
	Balance(ctx context.Context, net *network.Network, address string) (*big.Int, error)
}

// Service drives a grant attempt from validation through settlement to
// role delivery. All collaborators are injected; none are reached through
// package-level state.
type Service struct {
	tenants     tenant.Store
	roles       role.Store
	networks    network.Store
	grants      grant.Store
	principals  *principal.Service
	invoices    *invoice.Service
	facilitator x402.Facilitator
	balances    BalanceSource
	granter     platform.Granter

	now func() time.Time
}

func NewService(
	tenants tenant.Store,
	roles role.Store,
	networks network.Store,
	grants grant.Store,
	principals *principal.Service,
	invoices *invoice.Service,
	facilitator x402.Facilitator,
	balances BalanceSource,
	granter platform.Granter,
) *Service {
	return &Service{
		tenants:     tenants,
		roles:       roles,
		networks:    networks,
		grants:      grants,
		principals:  principals,
		invoices:    invoices,
		facilitator: facilitator,
		balances:    balances,
		granter:     granter,
		now:         time.Now,
	}
}

// Result is a completed grant. SettleHeader carries the encoded settlement
// receipt for the X-Payment-Response header; empty when no payment moved
// inline (free rails, invoice redemptions).
type Result struct {
	Grant        *grant.Grant
	SettleHeader string
}

// Grant runs the purchase state machine for one request.
//
// Order of side effects is fixed: verify, settle, role grant, grant record,
// quota decrement, invoice consume. Settlement is attempted at most once;
// a failed settlement never reaches the role grant.
func (s *Service) Grant(ctx context.Context, req *Request) (*Result, error) {
	now := s.now()

	ten, err := s.tenants.GetByGuild(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	if !ten.SubscriptionActive(now) {
		return nil, tenant.ErrSubscriptionExpired
	}
	if !ten.HasQuota() {
		return nil, tenant.ErrQuotaExhausted
	}
	// Delivery capability is a precondition: never collect a payment that
	// cannot be followed by a role grant.
	if !s.granter.Ready() {
		return nil, platform.ErrUnavailable
	}

	rl, err := s.roles.GetByDiscordRole(ctx, ten.ID, req.DiscordRoleID)
	if err != nil {
		return nil, err
	}
	net, err := s.networks.GetByName(ctx, req.Network)
	if err != nil {
		return nil, err
	}

	price, err := rl.PriceFor(req.DurationSec)
	if err != nil {
		return nil, err
	}

	prn, err := s.principals.Ensure(ctx, req.DiscordID, "")
	if err != nil {
		return nil, fmt.Errorf("resolve principal: %w", err)
	}

	var matched *invoice.Invoice
	if req.InvoiceToken != "" {
		matched, err = s.invoices.Redeem(ctx, req.InvoiceToken, prn.ID, ten.ID, rl.ID, req.DurationSec)
		if err != nil {
			return nil, err
		}
	}

	var (
		settled      *x402.SettleResponse
		settleHeader string
	)
	switch {
	case net.FreeRail:
		// Free rails waive payment collection entirely.
	case matched != nil:
		// An invoice is pre-committed intent; payment for it is collected
		// by the invoice's own payment flow, not inline here.
	default:
		settled, err = s.collectPayment(ctx, req, ten, rl, net, prn, price)
		if err != nil {
			metrics.GrantsTotal.WithLabelValues("payment_required", net.Name).Inc()
			return nil, err
		}
		settleHeader, err = x402.SettleResponseHeader(settled)
		if err != nil {
			return nil, err
		}
	}

	// The claim is atomic: of two requests racing on the same token, one
	// wins the delete and the other reads the invoice as already gone.
	if matched != nil {
		claimed, err := s.invoices.Consume(ctx, matched.ID)
		if err != nil {
			return nil, fmt.Errorf("claim invoice: %w", err)
		}
		if !claimed {
			return nil, invoice.ErrInvoiceNotFound
		}
		metrics.InvoicesRedeemedTotal.Inc()
	}

	g, err := s.deliver(ctx, req, ten, rl, net, prn, price, settled, now)
	if err != nil {
		// The claim cannot be rolled back once won; surface the burned
		// token so an operator can re-issue the invoice.
		if matched != nil && errors.Is(err, ErrGrantFailed) {
			metrics.ReconciliationRequiredTotal.Inc()
			logging.L(ctx).Error("consumed invoice without role grant, reconciliation required",
				"invoiceId", matched.ID,
				"invoiceToken", matched.Token,
				"principalId", prn.ID,
				"tenantId", ten.ID,
			)
		}
		return nil, err
	}

	metrics.GrantsTotal.WithLabelValues("granted", net.Name).Inc()
	logging.L(ctx).Info("entitlement granted",
		"grantId", g.ID,
		"principalId", prn.ID,
		"tenantId", ten.ID,
		"roleId", rl.ID,
		"network", net.Name,
		"durationSec", req.DurationSec,
		"txn", g.TxnHash,
	)
	return &Result{Grant: g, SettleHeader: settleHeader}, nil
}

// collectPayment runs the inline x402 payment leg: balance precheck,
// challenge, verify, settle. Every rejection carries the current accepts
// set so the client can retry with a fresh payment.
func (s *Service) collectPayment(
	ctx context.Context,
	req *Request,
	ten *tenant.Tenant,
	rl *role.Role,
	net *network.Network,
	prn *principal.Principal,
	price *big.Int,
) (*x402.SettleResponse, error) {
	wal, err := s.principals.EnsureWallet(ctx, prn, net)
	if err != nil {
		return nil, fmt.Errorf("provision wallet: %w", err)
	}
	bal, err := s.balances.Balance(ctx, net, wal.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("balance check on %s: %w", net.Name, err)
	}
	if bal.Cmp(price) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, price)
	}

	reqmt, err := BuildRequirements(net, price, ten.ReceiverEVMAddress, req.Resource,
		describePurchase(rl.Name, req.DurationSec, price))
	if err != nil {
		return nil, err
	}
	accepts := []x402.PaymentRequirements{*reqmt}

	if req.PaymentHeader == "" {
		return nil, &PaymentRequiredError{Reason: "payment required", Accepts: accepts}
	}

	payload, err := x402.DecodePayment(req.PaymentHeader)
	if err != nil {
		return nil, &PaymentRequiredError{Reason: "invalid payment header", Accepts: accepts}
	}
	selected, err := x402.SelectRequirement(accepts, payload)
	if err != nil {
		return nil, &PaymentRequiredError{Reason: err.Error(), Accepts: accepts}
	}

	vr, err := s.facilitator.Verify(ctx, payload, selected)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("unavailable").Inc()
		logging.L(ctx).Error("facilitator verify failed", "error", err)
		return nil, &PaymentRequiredError{Reason: "payment verification unavailable", Accepts: accepts}
	}
	if !vr.IsValid {
		metrics.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		return nil, &PaymentRequiredError{Reason: vr.InvalidReason, Payer: vr.Payer, Accepts: accepts}
	}
	metrics.PaymentVerificationsTotal.WithLabelValues("valid").Inc()

	// One settle attempt per payment. A retry here could charge twice.
	start := s.now()
	sr, err := s.facilitator.Settle(ctx, payload, selected)
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PaymentSettlementsTotal.WithLabelValues("unavailable").Inc()
		logging.L(ctx).Error("facilitator settle failed", "payer", payload.Payer(), "error", err)
		return nil, &PaymentRequiredError{Reason: "payment settlement failed", Payer: payload.Payer(), Accepts: accepts}
	}
	if !sr.Success {
		metrics.PaymentSettlementsTotal.WithLabelValues("rejected").Inc()
		return nil, &PaymentRequiredError{Reason: sr.ErrorReason, Payer: sr.Payer, Accepts: accepts}
	}
	metrics.PaymentSettlementsTotal.WithLabelValues("settled").Inc()
	return sr, nil
}

// deliver applies the role, records the grant, and charges the tenant's
// quota. By the time it runs, any inline payment has already settled:
// a failure past this point cannot be rolled back on-chain and is logged
// as a reconciliation event.
func (s *Service) deliver(
	ctx context.Context,
	req *Request,
	ten *tenant.Tenant,
	rl *role.Role,
	net *network.Network,
	prn *principal.Principal,
	price *big.Int,
	settled *x402.SettleResponse,
	now time.Time,
) (*grant.Grant, error) {
	if err := s.granter.GrantRole(ctx, ten.GuildID, prn.DiscordID, rl.DiscordRoleID); err != nil {
		if settled != nil {
			metrics.ReconciliationRequiredTotal.Inc()
			logging.L(ctx).Error("settled payment without role grant, reconciliation required",
				"txn", settled.Transaction,
				"payer", settled.Payer,
				"amount", price.String(),
				"principalId", prn.ID,
				"tenantId", ten.ID,
				"error", err,
			)
		}
		metrics.GrantsTotal.WithLabelValues("platform_failed", net.Name).Inc()
		return nil, fmt.Errorf("%w: %w", ErrGrantFailed, err)
	}

	g := &grant.Grant{
		ID:          idgen.WithPrefix("grt_"),
		PrincipalID: prn.ID,
		TenantID:    ten.ID,
		RoleID:      rl.ID,
		NetworkID:   net.ID,
		DurationSec: req.DurationSec,
		ExpiresAt:   now.Add(time.Duration(req.DurationSec) * time.Second).UTC(),
		Amount:      price.String(),
		CreatedAt:   now.UTC(),
	}
	if net.FreeRail {
		g.Amount = "0"
	}
	if settled != nil {
		g.Payer = settled.Payer
		g.TxnHash = settled.Transaction
	}
	if err := s.grants.Create(ctx, g); err != nil {
		logging.L(ctx).Error("grant record write failed after role was applied",
			"grantId", g.ID, "txn", g.TxnHash, "error", err)
		return nil, fmt.Errorf("record grant: %w", err)
	}

	if !net.FreeRail {
		if err := s.tenants.ConsumeTxn(ctx, ten.ID); err != nil && !errors.Is(err, tenant.ErrQuotaExhausted) {
			// Advisory counter; the grant stands either way.
			logging.L(ctx).Warn("quota decrement failed", "tenantId", ten.ID, "error", err)
		}
	}
	return g, nil
}
