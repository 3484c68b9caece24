package gateway

import (
	"testing"

	"github.com/pkg/errors"
)

func TestHandoffValidate_FormPost(t *testing.T) {
	h := &Handoff{Kind: HandoffFormPost, PaymentURL: "https://uat.esewa.com.np/epay/main",
		FormFields: map[string]string{"amt": "100"}}
	if err := h.Validate(); err != nil {
		t.Errorf("valid form post payload rejected: %v", err)
	}

	missing := &Handoff{Kind: HandoffFormPost, FormFields: map[string]string{"amt": "100"}}
	if err := missing.Validate(); !errors.Is(err, ErrInvalidHandoffPayload) {
		t.Errorf("expected ErrInvalidHandoffPayload for missing url, got %v", err)
	}

	empty := &Handoff{Kind: HandoffFormPost, PaymentURL: "https://uat.esewa.com.np/epay/main"}
	if err := empty.Validate(); !errors.Is(err, ErrInvalidHandoffPayload) {
		t.Errorf("expected ErrInvalidHandoffPayload for empty fields, got %v", err)
	}
}

func TestHandoffValidate_Redirect(t *testing.T) {
	h := &Handoff{Kind: HandoffRedirect, PaymentURL: "https://pay.khalti.com/?pidx=abc"}
	if err := h.Validate(); err != nil {
		t.Errorf("valid redirect payload rejected: %v", err)
	}

	missing := &Handoff{Kind: HandoffRedirect}
	if err := missing.Validate(); !errors.Is(err, ErrInvalidHandoffPayload) {
		t.Errorf("expected ErrInvalidHandoffPayload, got %v", err)
	}
}

func TestHandoffValidate_None(t *testing.T) {
	h := &Handoff{Kind: HandoffNone}
	if err := h.Validate(); err != nil {
		t.Errorf("no-op payload rejected: %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status  string
		proceed bool
		message string
	}{
		{"", true, ""},
		{"Completed", true, ""},
		{"completed", true, ""},
		{"User canceled", false, "Payment was cancelled"},
		{"canceled", false, "Payment was cancelled"},
		{"Expired", false, "Payment session expired"},
		{"Refunded", false, "Payment was refunded"},
		{"Pending", false, "Payment is still pending"},
		{"Initiated", false, "Payment initiated"},
	}

	for _, tc := range tests {
		proceed, message := ClassifyStatus(tc.status)
		if proceed != tc.proceed {
			t.Errorf("ClassifyStatus(%q) proceed = %v, want %v", tc.status, proceed, tc.proceed)
		}
		if message != tc.message {
			t.Errorf("ClassifyStatus(%q) message = %q, want %q", tc.status, message, tc.message)
		}
	}
}

func TestParamsFor(t *testing.T) {
	khalti, ok := ParamsFor("khalti")
	if !ok || khalti.RefParam != "pidx" || khalti.StatusParam != "status" {
		t.Errorf("unexpected khalti params: %+v", khalti)
	}

	esewa, ok := ParamsFor("esewa")
	if !ok || esewa.RefParam != "oid" || esewa.StatusParam != "" || esewa.GatewayTxParam != "refId" {
		t.Errorf("unexpected esewa params: %+v", esewa)
	}

	if _, ok := ParamsFor("cash"); ok {
		t.Error("cash should have no callback params")
	}
}
