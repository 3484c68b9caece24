package handlers

import (
	"database/sql"
	"net/http"
	"net/url"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chandan5689/SajiloFix-sub002/circuitbreaker"
	"github.com/Chandan5689/SajiloFix-sub002/gateway"
	"github.com/Chandan5689/SajiloFix-sub002/middleware"
	"github.com/Chandan5689/SajiloFix-sub002/models"
	"github.com/Chandan5689/SajiloFix-sub002/session"
)

// SessionHeader carries the client's checkout session id. The initiate
// response echoes it back so the callback page can resume the same session.
const SessionHeader = "X-Checkout-Session"

type PaymentHandler struct {
	db       *sql.DB
	store    session.Store
	drivers  map[models.PaymentMethod]gateway.Driver
	configs  *gateway.ConfigCache
	producer sarama.SyncProducer
	breakers *circuitbreaker.Registry
	logger   *zap.Logger
}

func NewPaymentHandler(
	db *sql.DB,
	store session.Store,
	drivers map[models.PaymentMethod]gateway.Driver,
	configs *gateway.ConfigCache,
	producer sarama.SyncProducer,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		db:       db,
		store:    store,
		drivers:  drivers,
		configs:  configs,
		producer: producer,
		breakers: circuitbreaker.NewRegistry(5, 30*time.Second),
		logger:   logger,
	}
}

func (h *PaymentHandler) HealthCheck(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetGatewayConfig returns the browser-safe configuration for one gateway.
// This route is public; it never exposes secret keys.
func (h *PaymentHandler) GetGatewayConfig(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "GetGatewayConfig")
	defer span.End()

	method := models.PaymentMethod(c.Param("gateway"))
	span.SetAttributes(attribute.String("gateway", string(method)))

	cfg, err := h.configs.Get(ctx, method)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load gateway config",
			zap.String("gateway", string(method)),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Payment configuration is unavailable, please try again",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})
}

// InitiatePayment creates a pending transaction for a booking, asks the
// gateway driver for a hand-off payload and writes the checkout session
// record before responding. The record must exist before the customer
// navigates away; after the hand-off it is the only way back.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "InitiatePayment")
	defer span.End()

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	method := models.PaymentMethod(req.PaymentMethod)
	if !models.ValidMethod(method) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Unsupported payment method: " + req.PaymentMethod,
		})
		return
	}
	// Resolve the driver up front; no transaction row should exist for a
	// method this deployment cannot hand off to.
	driver, ok := h.drivers[method]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Payment method is not configured: " + string(method),
		})
		return
	}

	customerID := middleware.CustomerID(c)
	span.SetAttributes(
		attribute.Int("customer_id", customerID),
		attribute.Int("booking_id", req.BookingID),
		attribute.String("payment_method", string(method)),
	)

	if method != models.MethodCash {
		if !absoluteURL(req.ReturnURL) || !absoluteURL(req.FailureURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "return_url and failure_url must be absolute URLs",
			})
			return
		}
	}

	// The booking subsystem owns the amount; the client never supplies it.
	var amount float64
	err := h.db.QueryRowContext(
		ctx,
		"SELECT COALESCE(final_price, quoted_price, 0) FROM bookings WHERE id = $1 AND customer_id = $2",
		req.BookingID,
		customerID,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Booking not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load booking", zap.Int("booking_id", req.BookingID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	if amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Booking has no payable amount yet",
		})
		return
	}

	tx := &models.Transaction{
		TransactionUID: uuid.NewString(),
		BookingID:      req.BookingID,
		CustomerID:     customerID,
		PaymentMethod:  method,
		Amount:         amount,
		Status:         models.StatusPending,
		ReturnURL:      req.ReturnURL,
		FailureURL:     req.FailureURL,
	}

	err = h.db.QueryRowContext(
		ctx,
		`INSERT INTO transactions (transaction_uid, booking_id, customer_id, payment_method, amount, status, return_url, failure_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		tx.TransactionUID, tx.BookingID, tx.CustomerID, tx.PaymentMethod, tx.Amount, tx.Status, tx.ReturnURL, tx.FailureURL,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}
	span.SetAttributes(attribute.String("transaction_uid", tx.TransactionUID))

	handoff, err := driver.Initiate(ctx, tx)
	if err == nil {
		err = handoff.Validate()
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment initiation failed",
			zap.String("gateway", string(method)),
			zap.String("transaction_uid", tx.TransactionUID),
			zap.Error(err))
		h.markFailed(c, tx.TransactionUID)
		c.JSON(http.StatusBadGateway, gin.H{
			"success":         false,
			"message":         "Could not start the payment, please try again",
			"transaction_uid": tx.TransactionUID,
		})
		return
	}

	sessionID := c.GetHeader(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	rec := session.Record{
		ProviderRef:    handoff.ProviderRef,
		TransactionUID: tx.TransactionUID,
		BookingID:      tx.BookingID,
		HandoffKind:    string(handoff.Kind),
		PaymentURL:     handoff.PaymentURL,
	}
	if err := h.store.Put(ctx, sessionID, method, rec); err != nil {
		// Without the record the callback cannot correlate; abort before
		// any navigation happens.
		span.RecordError(err)
		h.logger.Error("Failed to store checkout session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		h.markFailed(c, tx.TransactionUID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Could not start the payment, please try again",
		})
		return
	}

	middleware.RecordCheckoutInitiated(string(method))
	h.logger.Info("Payment initiated",
		zap.String("transaction_uid", tx.TransactionUID),
		zap.String("gateway", string(method)),
		zap.String("handoff_kind", string(handoff.Kind)),
		zap.Float64("amount", amount))

	resp := gin.H{
		"success":      true,
		"message":      "Payment initiated",
		"transaction":  tx,
		"session_id":   sessionID,
		"handoff_kind": handoff.Kind,
	}
	if handoff.PaymentURL != "" {
		resp["payment_url"] = handoff.PaymentURL
	}
	if len(handoff.FormFields) > 0 {
		resp["payment_data"] = handoff.FormFields
	}
	if handoff.ProviderRef != "" {
		resp["provider_ref"] = handoff.ProviderRef
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) markFailed(c *gin.Context, transactionUID string) {
	_, err := h.db.ExecContext(
		c.Request.Context(),
		"UPDATE transactions SET status = $1, updated_at = NOW() WHERE transaction_uid = $2",
		models.StatusFailed,
		transactionUID,
	)
	if err != nil {
		h.logger.Error("Failed to mark transaction failed",
			zap.String("transaction_uid", transactionUID),
			zap.Error(err))
	}
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
