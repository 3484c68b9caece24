package gateway

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

func testEsewa(t *testing.T) *Esewa {
	t.Helper()
	cfg := &EsewaConfig{MerchantCode: "EPAYTEST", IsTestMode: true}
	e, err := cfg.Gateway()
	if err != nil {
		t.Fatalf("failed to build esewa driver: %v", err)
	}
	return e
}

func TestEsewaInitiate_FormFields(t *testing.T) {
	e := testEsewa(t)

	tx := &models.Transaction{
		TransactionUID: "uid-123",
		BookingID:      42,
		Amount:         1500.50,
		ReturnURL:      "https://sajilofix.com/payment/esewa/success",
		FailureURL:     "https://sajilofix.com/payment/esewa/failure",
	}

	h, err := e.Initiate(context.Background(), tx)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if h.Kind != HandoffFormPost {
		t.Errorf("kind = %s, want form_post", h.Kind)
	}
	if h.PaymentURL != esewaTestURL {
		t.Errorf("payment url = %s, want test gateway", h.PaymentURL)
	}
	if err := h.Validate(); err != nil {
		t.Errorf("handoff failed validation: %v", err)
	}

	// The submitted amount must equal the booking amount at initiation.
	want := map[string]string{
		"amt":   "1500.5",
		"psc":   "0",
		"pdc":   "0",
		"txAmt": "0",
		"tAmt":  "1500.5",
		"pid":   "uid-123",
		"scd":   "EPAYTEST",
		"su":    "https://sajilofix.com/payment/esewa/success",
		"fu":    "https://sajilofix.com/payment/esewa/failure",
	}
	for k, v := range want {
		if h.FormFields[k] != v {
			t.Errorf("field %s = %q, want %q", k, h.FormFields[k], v)
		}
	}
	if len(h.FormFields) != len(want) {
		t.Errorf("unexpected extra fields: %v", h.FormFields)
	}
}

func TestEsewaVerify_AmountEcho(t *testing.T) {
	e := testEsewa(t)

	params := url.Values{}
	params.Set("oid", "uid-123")
	params.Set("amt", "1500.5")
	params.Set("refId", "REF-777")

	res, err := e.Verify(context.Background(), VerifyRequest{
		CorrelationID:  "uid-123",
		ExpectedAmount: 1500.50,
		Params:         params,
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.GatewayPaymentID != "REF-777" {
		t.Errorf("gateway payment id = %s, want REF-777", res.GatewayPaymentID)
	}
}

func TestEsewaVerify_AmountMismatch(t *testing.T) {
	e := testEsewa(t)

	params := url.Values{}
	params.Set("amt", "999")
	params.Set("refId", "REF-777")

	_, err := e.Verify(context.Background(), VerifyRequest{
		ExpectedAmount: 1500.50,
		Params:         params,
	})
	if err == nil {
		t.Fatal("expected amount mismatch error")
	}
	if !errors.Is(err, ErrPaymentNotCompleted) {
		t.Errorf("expected definitive non-completion verdict, got %v", err)
	}
}

func TestEsewaVerify_MissingRefID(t *testing.T) {
	e := testEsewa(t)

	_, err := e.Verify(context.Background(), VerifyRequest{
		ExpectedAmount: 100,
		Params:         url.Values{},
	})
	if err == nil {
		t.Fatal("expected error for missing refId")
	}
}
