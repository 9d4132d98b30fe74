package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentRecord mirrors a single external-gateway transaction tied 1:1 to a
// booking. It is created alongside the booking and updated in place as gateway
// events arrive, never recreated.
type PaymentRecord struct {
	ID               string        `json:"id" gorm:"primaryKey;type:uuid"`
	BookingID        string        `json:"booking_id" gorm:"not null;uniqueIndex"`
	GatewayName      string        `json:"gateway_name" gorm:"not null"`
	GatewayTxnID     string        `json:"gateway_txn_id" gorm:"index"`
	GatewaySessionID string        `json:"gateway_session_id" gorm:"index"`
	Amount           int64         `json:"amount" gorm:"not null"`
	Currency         string        `json:"currency" gorm:"not null"`
	Status           PaymentStatus `json:"status" gorm:"not null;default:'pending'"`
	RefundedAmount   int64         `json:"refunded_amount" gorm:"default:0"`
	Metadata         JSON          `json:"metadata" gorm:"type:jsonb"`
	CreatedAt        time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}
