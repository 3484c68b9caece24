package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

const (
	khaltiNormalAPI  = "https://khalti.com/api/v2"
	khaltiSandboxAPI = "https://dev.khalti.com/api/v2"
)

// Khalti implements the API-redirect flow: the ePayment initiate call issues
// a payment session (pidx) and a payment_url the browser is sent to; the
// lookup call verifies the outcome after the customer returns.
type Khalti struct {
	cfg    *KhaltiConfig
	api    string
	client *http.Client
}

type KhaltiConfig struct {
	PublicKey  string
	SecretKey  string
	IsTestMode bool
	WebsiteURL string
}

func NewKhaltiConfigFromEnv() *KhaltiConfig {
	return &KhaltiConfig{
		PublicKey:  os.Getenv("KHALTI_PUBLIC_KEY"),
		SecretKey:  os.Getenv("KHALTI_SECRET_KEY"),
		IsTestMode: os.Getenv("KHALTI_TEST_MODE") != "false",
		WebsiteURL: os.Getenv("KHALTI_WEBSITE_URL"),
	}
}

// Gateway creates the Khalti driver from the credentials in config.
func (c *KhaltiConfig) Gateway() (*Khalti, error) {
	if c.SecretKey == "" {
		return nil, errors.Wrap(ErrConfigUnavailable, "khalti secret key not configured")
	}
	api := khaltiNormalAPI
	if c.IsTestMode {
		api = khaltiSandboxAPI
	}
	return &Khalti{
		cfg:    c,
		api:    api,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (k *Khalti) Method() models.PaymentMethod { return models.MethodKhalti }

func (k *Khalti) PublicConfig() PublicConfig {
	return PublicConfig{
		Gateway:    models.MethodKhalti,
		PublicKey:  k.cfg.PublicKey,
		IsTestMode: k.cfg.IsTestMode,
	}
}

type khaltiInitiateRequest struct {
	ReturnURL         string `json:"return_url"`
	WebsiteURL        string `json:"website_url"`
	Amount            int64  `json:"amount"`
	PurchaseOrderID   string `json:"purchase_order_id"`
	PurchaseOrderName string `json:"purchase_order_name"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	Detail     string `json:"detail"`
}

type khaltiLookupResponse struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Detail        string `json:"detail"`
}

func (k *Khalti) Initiate(ctx context.Context, tx *models.Transaction) (*Handoff, error) {
	payload := khaltiInitiateRequest{
		ReturnURL:         tx.ReturnURL,
		WebsiteURL:        k.cfg.WebsiteURL,
		Amount:            nprToPaisa(tx.Amount),
		PurchaseOrderID:   tx.TransactionUID,
		PurchaseOrderName: fmt.Sprintf("Booking #%d", tx.BookingID),
	}

	var resp khaltiInitiateResponse
	if err := k.post(ctx, k.api+"/epayment/initiate/", payload, &resp); err != nil {
		return nil, errors.Wrap(err, "khalti initiate failed")
	}
	if resp.Pidx == "" || resp.PaymentURL == "" {
		msg := resp.Detail
		if msg == "" {
			msg = "khalti returned no payment session"
		}
		return nil, errors.New(msg)
	}

	return &Handoff{
		Kind:        HandoffRedirect,
		PaymentURL:  resp.PaymentURL,
		ProviderRef: resp.Pidx,
	}, nil
}

func (k *Khalti) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	var resp khaltiLookupResponse
	payload := map[string]string{"pidx": req.CorrelationID}
	if err := k.post(ctx, k.api+"/epayment/lookup/", payload, &resp); err != nil {
		return nil, errors.Wrap(err, "khalti lookup failed")
	}

	if resp.Status != "Completed" {
		msg := resp.Detail
		if msg == "" {
			msg = fmt.Sprintf("khalti reports payment %s", resp.Status)
		}
		return nil, errors.Wrap(ErrPaymentNotCompleted, msg)
	}

	if expected := nprToPaisa(req.ExpectedAmount); resp.TotalAmount != expected {
		return nil, errors.Wrapf(ErrPaymentNotCompleted,
			"amount mismatch: expected %d paisa, khalti reports %d", expected, resp.TotalAmount)
	}

	return &VerifyResult{
		GatewayPaymentID:     resp.Pidx,
		GatewayTransactionID: resp.TransactionID,
		Message:              "Payment verified successfully",
	}, nil
}

func (k *Khalti) post(ctx context.Context, url string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+k.cfg.SecretKey)

	resp, err := k.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "unexpected khalti response (status %d)", resp.StatusCode)
	}
	return nil
}

// nprToPaisa converts an NPR amount to paisa, the unit Khalti operates in.
func nprToPaisa(npr float64) int64 {
	return int64(math.Round(npr * 100))
}
