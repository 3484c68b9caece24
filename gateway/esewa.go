package gateway

import (
	"context"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

const (
	esewaTestURL       = "https://uat.esewa.com.np/epay/main"
	esewaProductionURL = "https://esewa.com.np/epay/main"
)

// Esewa implements the form-POST flow: initiation synthesizes the epay form
// field set and the browser POSTs it to eSewa. Verification checks the
// callback's amount echo against the recorded transaction; the refId becomes
// the provider reference. Signature validation is handled upstream by eSewa's
// transrec service and is not part of this flow.
type Esewa struct {
	cfg        *EsewaConfig
	paymentURL string
}

type EsewaConfig struct {
	MerchantCode string
	SecretKey    string
	IsTestMode   bool
}

func NewEsewaConfigFromEnv() *EsewaConfig {
	merchant := os.Getenv("ESEWA_MERCHANT_CODE")
	if merchant == "" {
		merchant = "EPAYTEST"
	}
	return &EsewaConfig{
		MerchantCode: merchant,
		SecretKey:    os.Getenv("ESEWA_SECRET_KEY"),
		IsTestMode:   os.Getenv("ESEWA_TEST_MODE") != "false",
	}
}

// Gateway creates the eSewa driver from the credentials in config.
func (c *EsewaConfig) Gateway() (*Esewa, error) {
	if c.MerchantCode == "" {
		return nil, errors.Wrap(ErrConfigUnavailable, "esewa merchant code not configured")
	}
	url := esewaProductionURL
	if c.IsTestMode {
		url = esewaTestURL
	}
	return &Esewa{cfg: c, paymentURL: url}, nil
}

func (e *Esewa) Method() models.PaymentMethod { return models.MethodEsewa }

func (e *Esewa) PublicConfig() PublicConfig {
	return PublicConfig{
		Gateway:    models.MethodEsewa,
		PublicKey:  e.cfg.MerchantCode,
		IsTestMode: e.cfg.IsTestMode,
	}
}

func (e *Esewa) Initiate(ctx context.Context, tx *models.Transaction) (*Handoff, error) {
	amount := formatAmount(tx.Amount)

	// tAmt must equal amt + psc + pdc + txAmt or eSewa rejects the form.
	fields := map[string]string{
		"amt":   amount,
		"psc":   "0",
		"pdc":   "0",
		"txAmt": "0",
		"tAmt":  amount,
		"pid":   tx.TransactionUID,
		"scd":   e.cfg.MerchantCode,
		"su":    tx.ReturnURL,
		"fu":    tx.FailureURL,
	}

	return &Handoff{
		Kind:        HandoffFormPost,
		PaymentURL:  e.paymentURL,
		FormFields:  fields,
		ProviderRef: tx.TransactionUID,
	}, nil
}

func (e *Esewa) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	refID := req.Params.Get("refId")
	if refID == "" {
		return nil, errors.New("missing refId in esewa callback")
	}

	amt := req.Params.Get("amt")
	callbackAmount, err := strconv.ParseFloat(amt, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q in esewa callback", amt)
	}
	if callbackAmount != req.ExpectedAmount {
		return nil, errors.Wrapf(ErrPaymentNotCompleted,
			"amount mismatch: expected %s, esewa reports %s",
			formatAmount(req.ExpectedAmount), amt)
	}

	return &VerifyResult{
		GatewayPaymentID:     refID,
		GatewayTransactionID: refID,
		Message:              "Payment verified successfully",
	}, nil
}

func formatAmount(npr float64) string {
	return strconv.FormatFloat(npr, 'f', -1, 64)
}
