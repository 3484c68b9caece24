package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Chandan5689/SajiloFix-sub002/gateway"
	"github.com/Chandan5689/SajiloFix-sub002/models"
	"github.com/Chandan5689/SajiloFix-sub002/session"
)

func TestServeHandoff_RedirectGateway(t *testing.T) {
	_, mock, store, router := setupPaymentTest(t, "customer", map[models.PaymentMethod]gateway.Driver{
		models.MethodKhalti: &fakeDriver{method: models.MethodKhalti},
	})

	store.Put(context.Background(), "s1", models.MethodKhalti, session.Record{
		ProviderRef:    "P1",
		TransactionUID: "T1",
		BookingID:      42,
		HandoffKind:    string(gateway.HandoffRedirect),
		PaymentURL:     "https://test-pay.khalti.com/?pidx=P1",
	})

	w := getPath(t, router, "/api/payments/handoff/khalti?session=s1")

	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected status %d, got %d", http.StatusSeeOther, w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://test-pay.khalti.com/?pidx=P1" {
		t.Errorf("Expected redirect to gateway URL, got %q", loc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestServeHandoff_FormPostRendersEveryField(t *testing.T) {
	fields := map[string]string{
		"amt": "1200", "psc": "0", "pdc": "0", "txAmt": "0", "tAmt": "1200",
		"pid": "T1", "scd": "EPAYTEST",
		"su": "https://app.example.com/ok", "fu": "https://app.example.com/fail",
	}
	driver := &fakeDriver{
		method: models.MethodEsewa,
		handoff: &gateway.Handoff{
			Kind:        gateway.HandoffFormPost,
			PaymentURL:  "https://uat.esewa.com.np/epay/main",
			FormFields:  fields,
			ProviderRef: "T1",
		},
	}
	_, mock, store, router := setupPaymentTest(t, "customer", map[models.PaymentMethod]gateway.Driver{
		models.MethodEsewa: driver,
	})

	store.Put(context.Background(), "s1", models.MethodEsewa, session.Record{
		ProviderRef:    "T1",
		TransactionUID: "T1",
		BookingID:      42,
		HandoffKind:    string(gateway.HandoffFormPost),
	})

	mock.ExpectQuery("SELECT id, transaction_uid, booking_id, customer_id, payment_method, amount, status, return_url, failure_url").
		WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "transaction_uid", "booking_id", "customer_id", "payment_method", "amount", "status", "return_url", "failure_url",
		}).AddRow(1, "T1", 42, testCustomerID, "esewa", 1200.0, models.StatusPending, "https://app.example.com/ok", "https://app.example.com/fail"))

	w := getPath(t, router, "/api/payments/handoff/esewa?session=s1")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	html := w.Body.String()
	if !strings.Contains(html, `action="https://uat.esewa.com.np/epay/main"`) {
		t.Error("Expected form action to target the gateway endpoint")
	}
	for name, value := range fields {
		if !strings.Contains(html, `name="`+name+`" value="`+value+`"`) {
			t.Errorf("Expected hidden input for field %q with value %q", name, value)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestServeHandoff_UnknownSession(t *testing.T) {
	_, _, _, router := setupPaymentTest(t, "customer", map[models.PaymentMethod]gateway.Driver{
		models.MethodKhalti: &fakeDriver{method: models.MethodKhalti},
	})

	w := getPath(t, router, "/api/payments/handoff/khalti?session=nope")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestServeHandoff_MalformedPayloadRejected(t *testing.T) {
	_, _, store, router := setupPaymentTest(t, "customer", map[models.PaymentMethod]gateway.Driver{
		models.MethodKhalti: &fakeDriver{method: models.MethodKhalti},
	})

	// Redirect hand-off with no URL: must be rejected before any navigation.
	store.Put(context.Background(), "s1", models.MethodKhalti, session.Record{
		ProviderRef:    "P1",
		TransactionUID: "T1",
		BookingID:      42,
		HandoffKind:    string(gateway.HandoffRedirect),
	})

	w := getPath(t, router, "/api/payments/handoff/khalti?session=s1")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
}
