package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chandan5689/SajiloFix-sub002/circuitbreaker"
	"github.com/Chandan5689/SajiloFix-sub002/gateway"
	"github.com/Chandan5689/SajiloFix-sub002/kafka"
	"github.com/Chandan5689/SajiloFix-sub002/middleware"
	"github.com/Chandan5689/SajiloFix-sub002/models"
	"github.com/Chandan5689/SajiloFix-sub002/session"
)

const (
	verifyTimeout = 30 * time.Second
	// successRedirect is where the customer lands after the post-verification
	// countdown on the callback page.
	successRedirect    = "/my-bookings"
	redirectAfterMs    = 4000
	noDeductionNote    = "No amount has been deducted from your account."
	fundsMayBeSafeNote = "If any amount was deducted it has not been lost; contact support with your transaction id."
)

// VerifyCallback handles the gateway redirect after the customer pays (or
// abandons) on the gateway's page. The algorithm is gateway-agnostic: the
// per-gateway parameter table names the correlation id, status, amount and
// gateway transaction id parameters, and the driver performs the actual
// confirmation call.
func (h *PaymentHandler) VerifyCallback(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "VerifyCallback")
	defer span.End()

	method := models.PaymentMethod(c.Param("gateway"))
	span.SetAttributes(attribute.String("gateway", string(method)))

	params, ok := gateway.ParamsFor(method)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Unsupported payment gateway: " + string(method),
		})
		return
	}

	query := c.Request.URL.Query()
	sessionID := c.Query("session")
	if sessionID == "" {
		sessionID = c.GetHeader(SessionHeader)
	}

	var rec *session.Record
	if sessionID != "" {
		stored, err := h.store.Get(ctx, sessionID, method)
		if err != nil {
			h.logger.Error("Failed to load checkout session",
				zap.String("session_id", sessionID),
				zap.Error(err))
		} else {
			rec = stored
		}
	}

	// The redirect parameter wins over the stored record; the gateway's echo
	// reflects what was actually paid for.
	correlationID := query.Get(params.RefParam)
	if correlationID == "" && rec != nil {
		correlationID = rec.ProviderRef
	} else if rec != nil && rec.ProviderRef != "" && rec.ProviderRef != correlationID {
		h.logger.Warn("Correlation id mismatch between redirect and stored record",
			zap.String("gateway", string(method)),
			zap.String("from_redirect", correlationID),
			zap.String("stored", rec.ProviderRef))
	}

	if correlationID == "" {
		middleware.RecordPaymentVerified(string(method), "missing_correlation")
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error_code": "missing_correlation_id",
			"message":    "Could not identify the payment. " + fundsMayBeSafeNote,
		})
		return
	}
	span.SetAttributes(attribute.String("correlation_id", correlationID))

	// A terminal non-success status from the gateway means there is nothing
	// to verify; report it and release the session.
	if params.StatusParam != "" {
		if proceed, message := gateway.ClassifyStatus(query.Get(params.StatusParam)); !proceed {
			if sessionID != "" {
				if err := h.store.Clear(ctx, sessionID, method); err != nil {
					h.logger.Error("Failed to clear checkout session", zap.Error(err))
				}
			}
			middleware.RecordPaymentVerified(string(method), "gateway_failed")
			h.logger.Info("Gateway reported non-success status",
				zap.String("gateway", string(method)),
				zap.String("status", query.Get(params.StatusParam)),
				zap.String("correlation_id", correlationID))
			c.JSON(http.StatusBadRequest, gin.H{
				"success":  false,
				"message":  message + ". " + noDeductionNote,
				"deducted": false,
				"next":     successRedirect,
			})
			return
		}
	}

	// One verification attempt per correlation id, ever. Re-renders of the
	// callback page and duplicate redirects all collapse onto this guard.
	guardSession := sessionID
	if guardSession == "" {
		guardSession = "anon"
	}
	acquired, err := h.store.AcquireVerify(ctx, guardSession, method, correlationID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to acquire verification guard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	if !acquired {
		middleware.RecordPaymentVerified(string(method), "duplicate")
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "This payment is already being verified",
		})
		return
	}
	// The guard collapses concurrent duplicates of one attempt; any exit
	// short of a completed transaction returns the token so the payment can
	// be verified again later.
	releaseGuard := func() {
		if err := h.store.ReleaseVerify(ctx, guardSession, method, correlationID); err != nil {
			h.logger.Error("Failed to release verification guard", zap.Error(err))
		}
	}

	transactionUID := ""
	if rec != nil {
		transactionUID = rec.TransactionUID
	}
	if transactionUID == "" {
		transactionUID = query.Get(params.OrderParam)
	}

	var tx models.Transaction
	err = h.db.QueryRowContext(
		ctx,
		`SELECT id, transaction_uid, booking_id, customer_id, payment_method, amount, status, created_at, updated_at
		 FROM transactions WHERE transaction_uid = $1`,
		transactionUID,
	).Scan(&tx.ID, &tx.TransactionUID, &tx.BookingID, &tx.CustomerID, &tx.PaymentMethod, &tx.Amount, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt)
	if err == sql.ErrNoRows {
		releaseGuard()
		middleware.RecordPaymentVerified(string(method), "unknown_transaction")
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Transaction not found. " + fundsMayBeSafeNote,
		})
		return
	}
	if err != nil {
		span.RecordError(err)
		releaseGuard()
		h.logger.Error("Failed to load transaction", zap.String("transaction_uid", transactionUID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	span.SetAttributes(attribute.String("transaction_uid", tx.TransactionUID))

	// A replayed callback for an already-completed transaction is a success,
	// not an error.
	if tx.Status == models.StatusCompleted {
		if sessionID != "" {
			if err := h.store.Clear(ctx, sessionID, method); err != nil {
				h.logger.Error("Failed to clear checkout session", zap.Error(err))
			}
		}
		middleware.RecordPaymentVerified(string(method), "already_completed")
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"message":           "Payment already verified",
			"transaction":       tx,
			"redirect_url":      successRedirect,
			"redirect_after_ms": redirectAfterMs,
		})
		return
	}
	if !tx.Status.CanTransitionTo(models.StatusCompleted) {
		middleware.RecordPaymentVerified(string(method), "invalid_state")
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "Payment is in state " + string(tx.Status) + " and cannot be completed",
		})
		return
	}

	driver, ok := h.drivers[method]
	if !ok {
		releaseGuard()
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Unsupported payment gateway: " + string(method),
		})
		return
	}

	var result *gateway.VerifyResult
	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	err = h.breakers.For(string(method)).Execute(verifyCtx, func() error {
		var verr error
		result, verr = driver.Verify(verifyCtx, gateway.VerifyRequest{
			CorrelationID:  correlationID,
			TransactionUID: tx.TransactionUID,
			ExpectedAmount: tx.Amount,
			Params:         query,
		})
		return verr
	})
	if err != nil {
		span.RecordError(err)
		releaseGuard()
		h.logger.Error("Payment verification failed",
			zap.String("gateway", string(method)),
			zap.String("transaction_uid", tx.TransactionUID),
			zap.String("correlation_id", correlationID),
			zap.Error(err))

		// The gateway answering "not completed" (or with a different amount)
		// is a verdict, not an outage: the transaction is dead and the
		// booking subsystem must hear about it.
		if errors.Is(err, gateway.ErrPaymentNotCompleted) {
			h.markFailed(c, tx.TransactionUID)
			tx.Status = models.StatusFailed
			h.publishEvent(ctx, models.PaymentEvent{
				TransactionUID: tx.TransactionUID,
				BookingID:      tx.BookingID,
				CustomerID:     tx.CustomerID,
				Amount:         tx.Amount,
				Method:         tx.PaymentMethod,
				Status:         tx.Status,
				EventType:      "payment_failed",
				ProviderRef:    correlationID,
			})
			middleware.RecordPaymentVerified(string(method), "rejected")
			c.JSON(http.StatusBadRequest, gin.H{
				"success":         false,
				"message":         "Payment verification failed. " + fundsMayBeSafeNote,
				"transaction_uid": tx.TransactionUID,
			})
			return
		}

		middleware.RecordPaymentVerified(string(method), "failure")
		status := http.StatusBadRequest
		if err == circuitbreaker.ErrOpen {
			status = http.StatusServiceUnavailable
		}
		// The session record stays; the customer or support can retry
		// verification with the same identifiers.
		c.JSON(status, gin.H{
			"success":         false,
			"message":         "Payment verification failed. " + fundsMayBeSafeNote,
			"transaction_uid": tx.TransactionUID,
		})
		return
	}

	now := time.Now()
	err = h.db.QueryRowContext(
		ctx,
		`UPDATE transactions
		 SET status = $1, gateway_payment_id = $2, gateway_transaction_id = $3, completed_at = $4, updated_at = $4
		 WHERE transaction_uid = $5
		 RETURNING id, status, completed_at, updated_at`,
		models.StatusCompleted, result.GatewayPaymentID, result.GatewayTransactionID, now, tx.TransactionUID,
	).Scan(&tx.ID, &tx.Status, &tx.CompletedAt, &tx.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to complete transaction",
			zap.String("transaction_uid", tx.TransactionUID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	tx.GatewayPaymentID = result.GatewayPaymentID
	tx.GatewayTransactionID = result.GatewayTransactionID

	h.publishEvent(ctx, models.PaymentEvent{
		TransactionUID: tx.TransactionUID,
		BookingID:      tx.BookingID,
		CustomerID:     tx.CustomerID,
		Amount:         tx.Amount,
		Method:         tx.PaymentMethod,
		Status:         tx.Status,
		EventType:      "payment_completed",
		ProviderRef:    correlationID,
	})

	if sessionID != "" {
		if err := h.store.Clear(ctx, sessionID, method); err != nil {
			h.logger.Error("Failed to clear checkout session", zap.Error(err))
		}
	}

	middleware.RecordPaymentVerified(string(method), "success")
	h.logger.Info("Payment verified",
		zap.String("gateway", string(method)),
		zap.String("transaction_uid", tx.TransactionUID),
		zap.String("gateway_payment_id", result.GatewayPaymentID))

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           "Payment verified successfully",
		"transaction":       tx,
		"redirect_url":      successRedirect,
		"redirect_after_ms": redirectAfterMs,
	})
}

func (h *PaymentHandler) publishEvent(ctx context.Context, event models.PaymentEvent) {
	if h.producer == nil {
		return
	}
	if err := kafka.PublishPaymentEvent(ctx, h.producer, event, h.logger); err != nil {
		h.logger.Error("Failed to publish payment event",
			zap.String("event_type", event.EventType),
			zap.String("transaction_uid", event.TransactionUID),
			zap.Error(err))
	}
}
