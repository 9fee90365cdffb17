package models

import (
	"time"

	"gorm.io/datatypes"
)

// CallbackOutcome records what the callback handler did with a delivery.
type CallbackOutcome string

const (
	CallbackOutcomeApplied          CallbackOutcome = "applied"
	CallbackOutcomeNoop             CallbackOutcome = "noop"
	CallbackOutcomeRejected         CallbackOutcome = "rejected"
	CallbackOutcomeUnknownPayment   CallbackOutcome = "unknown_payment"
	CallbackOutcomeUnknownCode      CallbackOutcome = "unknown_code"
	CallbackOutcomeInvalidSignature CallbackOutcome = "invalid_signature"
	CallbackOutcomeError            CallbackOutcome = "error"
)

// PaymentCallbackHistory keeps every gateway delivery for operator follow-up.
type PaymentCallbackHistory struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Gateway    PaymentGateway  `gorm:"type:varchar(50);not null" json:"gateway"`
	PaymentID  *uint           `gorm:"index" json:"payment_id,omitempty"`
	Reference  string          `gorm:"type:varchar(100);index" json:"reference"`
	ResultCode string          `gorm:"type:varchar(50)" json:"result_code"`
	Outcome    CallbackOutcome `gorm:"type:varchar(30)" json:"outcome"`
	Detail     string          `gorm:"type:text" json:"detail,omitempty"`
	Metadata   datatypes.JSON  `json:"metadata"`
}
