package models

import "time"

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
	StatusRefunded   TransactionStatus = "refunded"
)

type PaymentMethod string

const (
	MethodKhalti PaymentMethod = "khalti"
	MethodEsewa  PaymentMethod = "esewa"
	MethodCash   PaymentMethod = "cash"
)

// statusTransitions is the authoritative transition table. Terminal states
// have no outgoing edges; completed_at is set only on the edge into completed.
var statusTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded},
	StatusCompleted:  {StatusRefunded},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TransactionStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0 || s == StatusCompleted
}

func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodKhalti, MethodEsewa, MethodCash:
		return true
	}
	return false
}

// Transaction is the server-authoritative payment record. Gateway callbacks
// never mutate it directly; only the verify and cash-confirm paths do.
type Transaction struct {
	ID                   int               `json:"id"`
	TransactionUID       string            `json:"transaction_uid"`
	BookingID            int               `json:"booking_id"`
	CustomerID           int               `json:"customer_id"`
	PaymentMethod        PaymentMethod     `json:"payment_method"`
	Amount               float64           `json:"amount"`
	Status               TransactionStatus `json:"status"`
	GatewayTransactionID string            `json:"gateway_transaction_id,omitempty"`
	GatewayPaymentID     string            `json:"gateway_payment_id,omitempty"`
	ReturnURL            string            `json:"return_url,omitempty"`
	FailureURL           string            `json:"failure_url,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
}

type InitiatePaymentRequest struct {
	BookingID     int    `json:"booking_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	ReturnURL     string `json:"return_url"`
	FailureURL    string `json:"failure_url"`
}

type ConfirmCashRequest struct {
	BookingID int `json:"booking_id" binding:"required"`
}

type PaymentEvent struct {
	TransactionUID string            `json:"transaction_uid"`
	BookingID      int               `json:"booking_id"`
	CustomerID     int               `json:"customer_id"`
	Amount         float64           `json:"amount"`
	Method         PaymentMethod     `json:"payment_method"`
	Status         TransactionStatus `json:"status"`
	EventType      string            `json:"event_type"` // payment_completed, payment_failed
	ProviderRef    string            `json:"provider_ref,omitempty"`
}

// HistoryPage mirrors the paginated history response; results are returned
// exactly as read, newest first.
type HistoryPage struct {
	Count    int           `json:"count"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Results  []Transaction `json:"results"`
}
