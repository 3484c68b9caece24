package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chandan5689/SajiloFix-sub002/middleware"
	"github.com/Chandan5689/SajiloFix-sub002/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaymentHistory returns the customer's transactions newest first, optionally
// filtered by status. The page contents are returned exactly as read; no
// client-side reshaping is expected.
func (h *PaymentHandler) PaymentHistory(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "PaymentHistory")
	defer span.End()

	customerID := middleware.CustomerID(c)
	span.SetAttributes(attribute.Int("customer_id", customerID))

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	status := c.Query("status")

	countQuery := "SELECT COUNT(*) FROM transactions WHERE customer_id = $1"
	listQuery := `SELECT id, transaction_uid, booking_id, customer_id, payment_method, amount, status,
	       COALESCE(gateway_transaction_id, ''), COALESCE(gateway_payment_id, ''), created_at, updated_at, completed_at
	       FROM transactions WHERE customer_id = $1`
	args := []interface{}{customerID}
	if status != "" {
		countQuery += " AND status = $2"
		listQuery += " AND status = $2"
		args = append(args, status)
	}
	listQuery += " ORDER BY created_at DESC LIMIT " + strconv.Itoa(pageSize) + " OFFSET " + strconv.Itoa((page-1)*pageSize)

	var count int
	if err := h.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to count transactions", zap.Error(err))
		h.historyLoadFailed(c)
		return
	}

	rows, err := h.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to query transactions", zap.Error(err))
		h.historyLoadFailed(c)
		return
	}
	defer rows.Close()

	results := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.TransactionUID, &tx.BookingID, &tx.CustomerID, &tx.PaymentMethod, &tx.Amount, &tx.Status,
			&tx.GatewayTransactionID, &tx.GatewayPaymentID, &tx.CreatedAt, &tx.UpdatedAt, &tx.CompletedAt,
		); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan transaction", zap.Error(err))
			h.historyLoadFailed(c)
			return
		}
		results = append(results, tx)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		h.historyLoadFailed(c)
		return
	}

	c.JSON(http.StatusOK, models.HistoryPage{
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		Results:  results,
	})
}

func (h *PaymentHandler) historyLoadFailed(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success":    false,
		"error_code": "history_load_failed",
		"message":    "Could not load payment history, please try again",
	})
}

// GetTransaction returns one of the customer's transactions by its uid.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "GetTransaction")
	defer span.End()

	customerID := middleware.CustomerID(c)
	uid := c.Param("uid")
	span.SetAttributes(attribute.String("transaction_uid", uid))

	var tx models.Transaction
	err := h.db.QueryRowContext(
		ctx,
		`SELECT id, transaction_uid, booking_id, customer_id, payment_method, amount, status,
		 COALESCE(gateway_transaction_id, ''), COALESCE(gateway_payment_id, ''), created_at, updated_at, completed_at
		 FROM transactions WHERE transaction_uid = $1 AND customer_id = $2`,
		uid, customerID,
	).Scan(
		&tx.ID, &tx.TransactionUID, &tx.BookingID, &tx.CustomerID, &tx.PaymentMethod, &tx.Amount, &tx.Status,
		&tx.GatewayTransactionID, &tx.GatewayPaymentID, &tx.CreatedAt, &tx.UpdatedAt, &tx.CompletedAt,
	)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load transaction", zap.String("transaction_uid", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": tx})
}

type pendingPayment struct {
	BookingID int     `json:"booking_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"booking_status"`
}

// PendingPayments lists the customer's bookings that are finished but not yet
// paid, so the client can prompt for payment.
func (h *PaymentHandler) PendingPayments(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "PendingPayments")
	defer span.End()

	customerID := middleware.CustomerID(c)
	span.SetAttributes(attribute.Int("customer_id", customerID))

	rows, err := h.db.QueryContext(
		ctx,
		`SELECT b.id, COALESCE(b.final_price, b.quoted_price, 0), b.status
		 FROM bookings b
		 WHERE b.customer_id = $1
		   AND b.status IN ('completed', 'provider_completed')
		   AND NOT EXISTS (
		       SELECT 1 FROM transactions t
		       WHERE t.booking_id = b.id AND t.status = 'completed'
		   )
		 ORDER BY b.id DESC`,
		customerID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to query pending payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	defer rows.Close()

	pending := []pendingPayment{}
	for rows.Next() {
		var p pendingPayment
		if err := rows.Scan(&p.BookingID, &p.Amount, &p.Status); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
			return
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "pending": pending})
}

// ConfirmCashPayment lets the service provider mark a cash booking as paid.
// Cash transactions stay pending from initiation until this confirmation.
func (h *PaymentHandler) ConfirmCashPayment(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "ConfirmCashPayment")
	defer span.End()

	if role, ok := c.Get(middleware.ContextUserRole); !ok || role != "provider" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "Only the service provider can confirm a cash payment",
		})
		return
	}

	var req models.ConfirmCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("booking_id", req.BookingID))

	now := time.Now()
	var tx models.Transaction
	err := h.db.QueryRowContext(
		ctx,
		`UPDATE transactions
		 SET status = $1, completed_at = $2, updated_at = $2
		 WHERE booking_id = $3 AND payment_method = $4 AND status IN ($5, $6)
		 RETURNING id, transaction_uid, booking_id, customer_id, payment_method, amount, status, created_at, updated_at, completed_at`,
		models.StatusCompleted, now, req.BookingID, models.MethodCash, models.StatusPending, models.StatusProcessing,
	).Scan(
		&tx.ID, &tx.TransactionUID, &tx.BookingID, &tx.CustomerID, &tx.PaymentMethod, &tx.Amount, &tx.Status,
		&tx.CreatedAt, &tx.UpdatedAt, &tx.CompletedAt,
	)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "No pending cash payment for this booking",
		})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to confirm cash payment", zap.Int("booking_id", req.BookingID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}

	h.publishEvent(ctx, models.PaymentEvent{
		TransactionUID: tx.TransactionUID,
		BookingID:      tx.BookingID,
		CustomerID:     tx.CustomerID,
		Amount:         tx.Amount,
		Method:         tx.PaymentMethod,
		Status:         tx.Status,
		EventType:      "payment_completed",
	})

	h.logger.Info("Cash payment confirmed",
		zap.String("transaction_uid", tx.TransactionUID),
		zap.Int("booking_id", tx.BookingID))

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Cash payment confirmed",
		"transaction": tx,
	})
}
