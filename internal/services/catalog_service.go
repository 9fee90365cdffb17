package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
)

const (
	activeMethodsCacheKey = "payment_methods:active"
	activeMethodsCacheTTL = 10 * time.Minute
)

type PaymentMethodInput struct {
	Code            string                   `json:"code" validate:"required,max=100"`
	Name            string                   `json:"name" validate:"required,max=255"`
	Type            models.PaymentMethodType `json:"type" validate:"required,oneof=virtual_account e_wallet qris credit_card retail manual_transfer"`
	Provider        models.PaymentGateway    `json:"provider" validate:"required,oneof=duitku midtrans manual"`
	GatewayCode     string                   `json:"gatewayCode" validate:"max=20"`
	IsGatewayMethod bool                     `json:"isGatewayMethod"`
	FeeType         *models.FeeType          `json:"feeType" validate:"omitempty,oneof=fixed percentage"`
	FeeValue        *decimal.Decimal         `json:"feeValue"`
	MinFee          *int64                   `json:"minFee"`
	MaxFee          *int64                   `json:"maxFee"`
	IsActive        *bool                    `json:"isActive"`
	SortOrder       int                      `json:"sortOrder"`
	BankDetailID    *uint                    `json:"bankDetailId"`
}

func (in PaymentMethodInput) apply(m *models.PaymentMethod) {
	m.Code = in.Code
	m.Name = in.Name
	m.Type = in.Type
	m.Provider = in.Provider
	m.GatewayCode = in.GatewayCode
	m.IsGatewayMethod = in.IsGatewayMethod
	m.FeeType = in.FeeType
	m.FeeValue = in.FeeValue
	m.MinFee = in.MinFee
	m.MaxFee = in.MaxFee
	m.SortOrder = in.SortOrder
	m.BankDetailID = in.BankDetailID
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
}

// PaymentMethodService manages the payment method catalog.
type PaymentMethodService struct {
	db    *gorm.DB
	cache Cache
}

// NewPaymentMethodService creates the catalog service. cache may be nil.
func NewPaymentMethodService(db *gorm.DB, cache Cache) *PaymentMethodService {
	return &PaymentMethodService{db: db, cache: cache}
}

// ListActive returns the methods offered at checkout, cached.
func (s *PaymentMethodService) ListActive(ctx context.Context) ([]models.PaymentMethod, error) {
	return GetOrSet(ctx, s.cache, activeMethodsCacheKey, activeMethodsCacheTTL, func() ([]models.PaymentMethod, error) {
		var methods []models.PaymentMethod
		if err := s.db.WithContext(ctx).
			Preload("BankDetail").
			Where("is_active = ?", true).
			Order("sort_order asc, code asc").
			Find(&methods).Error; err != nil {
			return nil, apperr.DatabaseUnavailable(err)
		}
		return methods, nil
	})
}

func (s *PaymentMethodService) ListAll(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := s.db.WithContext(ctx).Preload("BankDetail").Order("sort_order asc, code asc").Find(&methods).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return methods, nil
}

func (s *PaymentMethodService) Create(ctx context.Context, in PaymentMethodInput) (*models.PaymentMethod, error) {
	m := models.PaymentMethod{IsActive: true}
	in.apply(&m)
	if err := validateMethod(m); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, m.Code, 0); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	s.invalidate(ctx)
	return &m, nil
}

func (s *PaymentMethodService) Update(ctx context.Context, id uint, in PaymentMethodInput) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Payment method not found")
	}
	in.apply(&m)
	if err := validateMethod(m); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, m.Code, m.ID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	s.invalidate(ctx)
	return &m, nil
}

func (s *PaymentMethodService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.PaymentMethod{}, id)
	if res.Error != nil {
		return apperr.DatabaseUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Payment method not found")
	}
	s.invalidate(ctx)
	return nil
}

func validateMethod(m models.PaymentMethod) error {
	if err := m.ValidateFee(); err != nil {
		return apperr.ValidationFailed(err.Error(), map[string]string{"feeType": "fee"})
	}
	if m.IsGatewayMethod && m.Provider == models.PaymentGatewayManual {
		return apperr.ValidationFailed("Gateway methods need a gateway provider", map[string]string{"provider": "gateway"})
	}
	if m.IsGatewayMethod && m.Provider == models.PaymentGatewayDuitku && m.GatewayCode == "" {
		return apperr.ValidationFailed("Duitku methods need a gateway code", map[string]string{"gatewayCode": "required"})
	}
	return nil
}

// ensureCodeFree also counts soft-deleted rows since the unique index does.
func (s *PaymentMethodService) ensureCodeFree(ctx context.Context, code string, excludeID uint) error {
	return codeFree(s.db.WithContext(ctx), code, excludeID)
}

func codeFree(db *gorm.DB, code string, excludeID uint) error {
	var count int64
	q := db.Unscoped().Model(&models.PaymentMethod{}).Where("code = ?", code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return apperr.DatabaseUnavailable(err)
	}
	if count > 0 {
		return apperr.Conflict("Payment method code already exists: " + code)
	}
	return nil
}

func (s *PaymentMethodService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeMethodsCacheKey); err != nil {
		zap.S().Warnw("payment method cache invalidation failed", "error", err)
	}
}

type BankDetailInput struct {
	BankName      string `json:"bankName" validate:"required,max=255"`
	AccountNumber string `json:"accountNumber" validate:"required,max=100"`
	AccountHolder string `json:"accountHolder" validate:"required,max=255"`
	Branch        string `json:"branch" validate:"max=255"`
	IsActive      *bool  `json:"isActive"`
}

// BankDetailService manages bank accounts and their manual transfer methods.
type BankDetailService struct {
	db      *gorm.DB
	methods *PaymentMethodService
}

func NewBankDetailService(db *gorm.DB, methods *PaymentMethodService) *BankDetailService {
	return &BankDetailService{db: db, methods: methods}
}

type BankDetailResult struct {
	BankDetail    models.BankDetail    `json:"bankDetail"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

// Create stores the bank account and its manual_transfer PaymentMethod in
// one database transaction.
func (s *BankDetailService) Create(ctx context.Context, in BankDetailInput) (*BankDetailResult, error) {
	if Slugify(in.BankName, "_") == "" {
		return nil, apperr.ValidationFailed("Bank name must contain letters or digits", map[string]string{"bankName": "alphanum"})
	}

	bank := models.BankDetail{
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		AccountHolder: in.AccountHolder,
		Branch:        in.Branch,
		IsActive:      true,
	}
	method := models.PaymentMethod{
		Code:            BankMethodCode(in.BankName),
		Name:            "Transfer " + in.BankName,
		Type:            models.PaymentMethodTypeManualTransfer,
		Provider:        models.PaymentGatewayManual,
		IsGatewayMethod: false,
		IsActive:        true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := codeFree(tx, method.Code, 0); err != nil {
			return err
		}
		if err := tx.Create(&bank).Error; err != nil {
			return err
		}
		method.BankDetailID = &bank.ID
		return tx.Create(&method).Error
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Bank detail not found")
	}

	if in.IsActive != nil && !*in.IsActive {
		if err := s.setActive(ctx, bank.ID, false); err != nil {
			return nil, err
		}
		bank.IsActive = false
		method.IsActive = false
	}

	s.methods.invalidate(ctx)
	zap.S().Infow("bank detail created", "bank_detail_id", bank.ID, "method_code", method.Code)
	return &BankDetailResult{BankDetail: bank, PaymentMethod: method}, nil
}

func (s *BankDetailService) List(ctx context.Context) ([]models.BankDetail, error) {
	var banks []models.BankDetail
	if err := s.db.WithContext(ctx).Order("bank_name asc").Find(&banks).Error; err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	return banks, nil
}

// Update changes account details. The generated method code is kept so
// existing payments still resolve to it.
func (s *BankDetailService) Update(ctx context.Context, id uint, in BankDetailInput) (*models.BankDetail, error) {
	var bank models.BankDetail
	if err := s.db.WithContext(ctx).First(&bank, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Bank detail not found")
	}

	bank.BankName = in.BankName
	bank.AccountNumber = in.AccountNumber
	bank.AccountHolder = in.AccountHolder
	bank.Branch = in.Branch
	if in.IsActive != nil {
		bank.IsActive = *in.IsActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&bank).Error; err != nil {
			return err
		}
		return tx.Model(&models.PaymentMethod{}).
			Where("bank_detail_id = ?", bank.ID).
			Updates(map[string]interface{}{
				"name":      "Transfer " + bank.BankName,
				"is_active": bank.IsActive,
			}).Error
	})
	if err != nil {
		return nil, apperr.DatabaseUnavailable(err)
	}
	s.methods.invalidate(ctx)
	return &bank, nil
}

// Delete removes the bank account and deactivates its methods.
func (s *BankDetailService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PaymentMethod{}).
			Where("bank_detail_id = ?", id).
			Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.BankDetail{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return apperr.FromDB(err, "Bank detail not found")
	}
	s.methods.invalidate(ctx)
	return nil
}

func (s *BankDetailService) setActive(ctx context.Context, id uint, active bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BankDetail{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
			return err
		}
		return tx.Model(&models.PaymentMethod{}).Where("bank_detail_id = ?", id).Update("is_active", active).Error
	})
}
