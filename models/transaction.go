package models

import (
	"time"
)

type TransactionStatus string

const (
	StatusWaitingForPayment    TransactionStatus = "WAITING_FOR_PAYMENT"
	StatusWaitingForAdmin      TransactionStatus = "WAITING_FOR_ADMIN_CONFIRMATION"
	StatusDone                 TransactionStatus = "DONE"
	StatusRejected             TransactionStatus = "REJECTED"
	StatusExpired              TransactionStatus = "EXPIRED"
	StatusCanceled             TransactionStatus = "CANCELED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusRejected, StatusExpired, StatusCanceled:
		return true
	}
	return false
}

type Transaction struct {
	ID           string            `db:"id" json:"id"`
	UserID       string            `db:"user_id" json:"user_id"`
	EventID      string            `db:"event_id" json:"event_id"`
	TicketTypeID *string           `db:"ticket_type_id" json:"ticket_type_id,omitempty"`
	Quantity     int               `db:"quantity" json:"quantity"`
	TotalPrice   int64             `db:"total_price" json:"total_price"`
	Status       TransactionStatus `db:"status" json:"status"`
	ExpiresAt    *time.Time        `db:"expires_at" json:"expires_at,omitempty"`
	VoucherCode  *string           `db:"voucher_code" json:"voucher_code,omitempty"`
	PointsUsed   int64             `db:"points_used" json:"points_used"`
	PaymentProof *string           `db:"payment_proof" json:"payment_proof,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}
