package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chandan5689/SajiloFix-sub002/gateway"
	"github.com/Chandan5689/SajiloFix-sub002/middleware"
	"github.com/Chandan5689/SajiloFix-sub002/models"
)

// handoffPage posts a hidden form to the gateway as soon as it loads. Every
// field is emitted verbatim; gateways reject submissions with a field missing
// or renamed.
var handoffPage = template.Must(template.New("handoff").Parse(`<!DOCTYPE html>
<html>
<head><title>Redirecting to payment...</title></head>
<body onload="document.forms[0].submit()">
<p>Redirecting to the payment gateway...</p>
<form action="{{.Action}}" method="POST">
{{- range $name, $value := .Fields}}
<input type="hidden" name="{{$name}}" value="{{$value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>`))

// ServeHandoff performs the one-way navigation for a stored checkout session:
// a 303 redirect for redirect gateways, an auto-submitting form for form-POST
// gateways. A malformed payload is rejected here, before the customer leaves.
func (h *PaymentHandler) ServeHandoff(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "ServeHandoff")
	defer span.End()

	method := models.PaymentMethod(c.Param("gateway"))
	sessionID := c.Query("session")
	span.SetAttributes(
		attribute.String("gateway", string(method)),
		attribute.String("session_id", sessionID),
	)

	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing session id"})
		return
	}

	rec, err := h.store.Get(ctx, sessionID, method)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load checkout session", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Checkout session not found or expired, please start the payment again",
		})
		return
	}

	switch gateway.HandoffKind(rec.HandoffKind) {
	case gateway.HandoffRedirect:
		if rec.PaymentURL == "" {
			h.rejectHandoff(c, method, "missing payment url")
			return
		}
		middleware.RecordHandoffServed(string(method), rec.HandoffKind)
		c.Redirect(http.StatusSeeOther, rec.PaymentURL)

	case gateway.HandoffFormPost:
		handoff, err := h.rebuildFormHandoff(c, method, rec.TransactionUID)
		if err != nil {
			h.rejectHandoff(c, method, err.Error())
			return
		}
		middleware.RecordHandoffServed(string(method), rec.HandoffKind)
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := handoffPage.Execute(c.Writer, gin.H{
			"Action": handoff.PaymentURL,
			"Fields": handoff.FormFields,
		}); err != nil {
			h.logger.Error("Failed to render handoff form", zap.Error(err))
		}

	case gateway.HandoffNone:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "No gateway hand-off needed for this payment method",
		})

	default:
		h.rejectHandoff(c, method, "unknown handoff kind "+rec.HandoffKind)
	}
}

// rebuildFormHandoff re-derives the form fields from the transaction row.
// Form-POST drivers build their payload locally, so this performs no gateway
// call.
func (h *PaymentHandler) rebuildFormHandoff(c *gin.Context, method models.PaymentMethod, transactionUID string) (*gateway.Handoff, error) {
	driver, ok := h.drivers[method]
	if !ok {
		return nil, gateway.ErrInvalidHandoffPayload
	}

	var tx models.Transaction
	err := h.db.QueryRowContext(
		c.Request.Context(),
		`SELECT id, transaction_uid, booking_id, customer_id, payment_method, amount, status, return_url, failure_url
		 FROM transactions WHERE transaction_uid = $1`,
		transactionUID,
	).Scan(&tx.ID, &tx.TransactionUID, &tx.BookingID, &tx.CustomerID, &tx.PaymentMethod, &tx.Amount, &tx.Status, &tx.ReturnURL, &tx.FailureURL)
	if err != nil {
		return nil, err
	}

	handoff, err := driver.Initiate(c.Request.Context(), &tx)
	if err != nil {
		return nil, err
	}
	if err := handoff.Validate(); err != nil {
		return nil, err
	}
	return handoff, nil
}

func (h *PaymentHandler) rejectHandoff(c *gin.Context, method models.PaymentMethod, reason string) {
	h.logger.Error("Rejected malformed handoff payload",
		zap.String("gateway", string(method)),
		zap.String("reason", reason))
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"success": false,
		"message": "Payment hand-off payload is invalid, please start the payment again",
	})
}
