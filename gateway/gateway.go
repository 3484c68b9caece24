// Package gateway contains the payment gateway drivers. A driver turns a
// pending transaction into a hand-off payload (form POST or redirect) and
// verifies the outcome with the gateway once the customer returns.
package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

var (
	ErrInvalidHandoffPayload = errors.New("invalid handoff payload")
	ErrConfigUnavailable     = errors.New("gateway configuration unavailable")
	// ErrPaymentNotCompleted is a definitive gateway verdict: the gateway
	// answered and reports the payment did not complete (or the amounts
	// disagree). Distinct from transport errors, where the outcome is unknown
	// and the payment may still be retried.
	ErrPaymentNotCompleted = errors.New("payment not completed")
)

type HandoffKind string

const (
	// HandoffFormPost submits a hidden form to the gateway; every field must
	// be forwarded verbatim because gateways validate the exact field set.
	HandoffFormPost HandoffKind = "form_post"
	// HandoffRedirect navigates the browser to a gateway-issued URL.
	HandoffRedirect HandoffKind = "redirect"
	// HandoffNone applies to offline methods; completion is recorded locally.
	HandoffNone HandoffKind = "none"
)

// Handoff is the one-way navigation payload. Once executed the customer's
// page is gone; the correlation record is the only way back.
type Handoff struct {
	Kind        HandoffKind       `json:"kind"`
	PaymentURL  string            `json:"payment_url,omitempty"`
	FormFields  map[string]string `json:"payment_data,omitempty"`
	ProviderRef string            `json:"provider_ref,omitempty"`
}

// Validate rejects a malformed payload before any navigation is produced so
// the caller can recover without having left the page.
func (h *Handoff) Validate() error {
	switch h.Kind {
	case HandoffFormPost:
		if h.PaymentURL == "" {
			return errors.Wrap(ErrInvalidHandoffPayload, "missing payment_url")
		}
		if len(h.FormFields) == 0 {
			return errors.Wrap(ErrInvalidHandoffPayload, "empty form fields")
		}
	case HandoffRedirect:
		if h.PaymentURL == "" {
			return errors.Wrap(ErrInvalidHandoffPayload, "missing payment_url")
		}
	case HandoffNone:
	default:
		return errors.Wrapf(ErrInvalidHandoffPayload, "unknown handoff kind %q", h.Kind)
	}
	return nil
}

type VerifyRequest struct {
	// CorrelationID is the gateway-facing id resolved by the verifier
	// (Khalti pidx, eSewa oid).
	CorrelationID  string
	TransactionUID string
	// ExpectedAmount is the transaction amount in NPR recorded at initiation.
	ExpectedAmount float64
	// Params are the raw gateway redirect query parameters.
	Params url.Values
}

type VerifyResult struct {
	// GatewayPaymentID is the gateway's own payment identifier.
	GatewayPaymentID string
	// GatewayTransactionID is the gateway transaction/reference id.
	GatewayTransactionID string
	Message              string
}

type Driver interface {
	Method() models.PaymentMethod
	// Initiate returns the hand-off payload for a pending transaction. It
	// performs no navigation itself.
	Initiate(ctx context.Context, tx *models.Transaction) (*Handoff, error)
	// Verify confirms the payment with the gateway. Called at most once per
	// correlation id; the verifier owns that guarantee.
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// PublicConfig is the browser-safe part of a gateway's configuration.
type PublicConfig struct {
	Gateway    models.PaymentMethod `json:"gateway"`
	PublicKey  string               `json:"public_key,omitempty"`
	IsTestMode bool                 `json:"is_test_mode"`
}

// CallbackParams maps one gateway's redirect query parameters onto the
// canonical fields the verifier works with. One table entry per gateway keeps
// the verification algorithm generic instead of a hand-written copy per
// gateway.
type CallbackParams struct {
	// RefParam carries the correlation id.
	RefParam string
	// StatusParam carries the gateway-reported status; empty when the
	// gateway reports none and verification must always be attempted.
	StatusParam string
	// AmountParam carries the amount echo.
	AmountParam string
	// GatewayTxParam carries the gateway's own transaction id.
	GatewayTxParam string
	// OrderParam carries our transaction uid echoed back by the gateway,
	// used to find the transaction when the stored record is gone.
	OrderParam string
}

var callbackParams = map[models.PaymentMethod]CallbackParams{
	models.MethodKhalti: {
		RefParam:       "pidx",
		StatusParam:    "status",
		AmountParam:    "amount",
		GatewayTxParam: "transaction_id",
		OrderParam:     "purchase_order_id",
	},
	models.MethodEsewa: {
		RefParam:       "oid",
		StatusParam:    "",
		AmountParam:    "amt",
		GatewayTxParam: "refId",
		OrderParam:     "oid",
	},
}

func ParamsFor(method models.PaymentMethod) (CallbackParams, bool) {
	p, ok := callbackParams[method]
	return p, ok
}

// ClassifyStatus interprets a gateway-reported redirect status. A terminal
// non-success status means the gateway itself says the payment did not
// complete, so there is nothing to verify. The message is shown to the
// customer as-is, together with the no-deduction note.
func ClassifyStatus(status string) (proceed bool, message string) {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "", "completed":
		return true, ""
	case "user canceled", "canceled", "cancelled":
		return false, "Payment was cancelled"
	case "expired":
		return false, "Payment session expired"
	case "refunded":
		return false, "Payment was refunded"
	case "pending":
		return false, "Payment is still pending"
	default:
		return false, "Payment " + strings.ToLower(status)
	}
}
