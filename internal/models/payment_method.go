package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethodType string

const (
	PaymentMethodTypeVirtualAccount PaymentMethodType = "virtual_account"
	PaymentMethodTypeEWallet        PaymentMethodType = "e_wallet"
	PaymentMethodTypeQRIS           PaymentMethodType = "qris"
	PaymentMethodTypeCard           PaymentMethodType = "credit_card"
	PaymentMethodTypeRetail         PaymentMethodType = "retail"
	PaymentMethodTypeManualTransfer PaymentMethodType = "manual_transfer"
)

type FeeType string

const (
	FeeTypeFixed      FeeType = "fixed"
	FeeTypePercentage FeeType = "percentage"
)

var (
	ErrFeeInconsistent = errors.New("fee_type and fee_value must be set together")
	ErrFeeTypeUnknown  = errors.New("fee_type must be fixed or percentage")
	ErrFeeNegative     = errors.New("fee values must not be negative")
	ErrFeeBounds       = errors.New("min_fee must not exceed max_fee")
)

// PaymentMethod is a payable channel shown at checkout
type PaymentMethod struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code            string            `gorm:"type:varchar(100);uniqueIndex" json:"code"`
	Name            string            `gorm:"type:varchar(255)" json:"name"`
	Type            PaymentMethodType `gorm:"type:varchar(30)" json:"type"`
	Provider        PaymentGateway    `gorm:"type:varchar(30)" json:"provider"`
	GatewayCode     string            `gorm:"type:varchar(20)" json:"gateway_code,omitempty"` // channel code sent to the gateway, e.g. "BC"
	IsGatewayMethod bool              `json:"is_gateway_method"`

	FeeType  *FeeType         `gorm:"type:varchar(20)" json:"fee_type,omitempty"`
	FeeValue *decimal.Decimal `gorm:"type:decimal(12,4)" json:"fee_value,omitempty"`
	MinFee   *int64           `json:"min_fee,omitempty"`
	MaxFee   *int64           `json:"max_fee,omitempty"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	SortOrder int  `gorm:"default:0" json:"sort_order"`

	BankDetailID *uint       `gorm:"index" json:"bank_detail_id,omitempty"`
	BankDetail   *BankDetail `gorm:"foreignKey:BankDetailID" json:"bank_detail,omitempty"`
}

// ValidateFee checks that the fee fields are mutually consistent.
func (m PaymentMethod) ValidateFee() error {
	if (m.FeeType == nil) != (m.FeeValue == nil) {
		return ErrFeeInconsistent
	}
	if m.FeeType != nil && *m.FeeType != FeeTypeFixed && *m.FeeType != FeeTypePercentage {
		return ErrFeeTypeUnknown
	}
	if m.FeeValue != nil && m.FeeValue.IsNegative() {
		return ErrFeeNegative
	}
	if (m.MinFee != nil && *m.MinFee < 0) || (m.MaxFee != nil && *m.MaxFee < 0) {
		return ErrFeeNegative
	}
	if m.MinFee != nil && m.MaxFee != nil && *m.MinFee > *m.MaxFee {
		return ErrFeeBounds
	}
	return nil
}

// ServiceFee returns the fee charged on top of amount, in whole rupiah.
func (m PaymentMethod) ServiceFee(amount int64) int64 {
	if m.FeeType == nil || m.FeeValue == nil {
		return 0
	}

	switch *m.FeeType {
	case FeeTypeFixed:
		return m.FeeValue.Round(0).IntPart()
	case FeeTypePercentage:
		fee := decimal.NewFromInt(amount).Mul(*m.FeeValue).Div(decimal.NewFromInt(100)).Round(0).IntPart()
		if m.MinFee != nil && fee < *m.MinFee {
			fee = *m.MinFee
		}
		if m.MaxFee != nil && fee > *m.MaxFee {
			fee = *m.MaxFee
		}
		return fee
	}
	return 0
}
