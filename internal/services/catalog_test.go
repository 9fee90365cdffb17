package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/testutil"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		sep  string
		want string
	}{
		{in: "Bank Central Asia", sep: "_", want: "bank_central_asia"},
		{in: "  Bank Négara Indonesia (BNI) ", sep: "_", want: "bank_negara_indonesia_bni"},
		{in: "CIMB--Niaga", sep: "_", want: "cimb_niaga"},
		{in: "Toko Online: Batik & Co.", sep: "-", want: "toko-online-batik-co"},
		{in: "!!!", sep: "_", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in, tt.sep); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBankDetailCreatesManualMethod(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewBankDetailService(db, NewPaymentMethodService(db, nil))

	res, err := svc.Create(context.Background(), BankDetailInput{
		BankName:      "Bank Central Asia",
		AccountNumber: "1234567890",
		AccountHolder: "PT Agency",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var method models.PaymentMethod
	if err := db.Where("code = ?", "manual_transfer_bank_bank_central_asia_idr").First(&method).Error; err != nil {
		t.Fatalf("generated method not found: %v", err)
	}
	if method.Type != models.PaymentMethodTypeManualTransfer {
		t.Errorf("type = %s, want manual_transfer", method.Type)
	}
	if method.IsGatewayMethod || !method.IsActive {
		t.Errorf("method = %+v, want active non-gateway", method)
	}
	if method.BankDetailID == nil || *method.BankDetailID != res.BankDetail.ID {
		t.Errorf("bank_detail_id = %v, want %d", method.BankDetailID, res.BankDetail.ID)
	}

	_, err = svc.Create(context.Background(), BankDetailInput{
		BankName:      "Bank  Central-Asia",
		AccountNumber: "999",
		AccountHolder: "PT Other",
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("duplicate slug err = %v, want conflict", err)
	}
	if n := countRows(t, db, &models.BankDetail{}); n != 1 {
		t.Errorf("bank details = %d, want 1 after rolled back duplicate", n)
	}
}

func TestBankDetailDeleteDeactivatesMethod(t *testing.T) {
	db := testutil.NewDB(t)
	cache := newMemoryCache()
	methods := NewPaymentMethodService(db, cache)
	svc := NewBankDetailService(db, methods)

	res, err := svc.Create(context.Background(), BankDetailInput{
		BankName:      "Bank Mandiri",
		AccountNumber: "1",
		AccountHolder: "PT Agency",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := methods.ListActive(context.Background())
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActive = %v, %v", active, err)
	}

	if err := svc.Delete(context.Background(), res.BankDetail.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	active, err = methods.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active methods after delete = %d, want 0", len(active))
	}

	if err := svc.Delete(context.Background(), res.BankDetail.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func TestPaymentMethodCatalogCache(t *testing.T) {
	db := testutil.NewDB(t)
	cache := newMemoryCache()
	svc := NewPaymentMethodService(db, cache)
	ctx := context.Background()

	if list, err := svc.ListActive(ctx); err != nil || len(list) != 0 {
		t.Fatalf("ListActive = %v, %v", list, err)
	}

	// A row written behind the service's back stays invisible while cached.
	testutil.MustCreate(t, db, &models.PaymentMethod{Code: "raw", Name: "Raw", Type: models.PaymentMethodTypeQRIS, Provider: models.PaymentGatewayDuitku, IsActive: true})
	if list, _ := svc.ListActive(ctx); len(list) != 0 {
		t.Errorf("cached list = %d entries, want 0", len(list))
	}

	if _, err := svc.Create(ctx, PaymentMethodInput{
		Code:     "manual_cash",
		Name:     "Cash",
		Type:     models.PaymentMethodTypeManualTransfer,
		Provider: models.PaymentGatewayManual,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("list after create = %d entries, want 2", len(list))
	}
}

func TestPaymentMethodValidation(t *testing.T) {
	fixed := models.FeeTypeFixed
	value := decimal.NewFromInt(2500)

	tests := []struct {
		name string
		in   PaymentMethodInput
		kind apperr.Kind
	}{
		{
			name: "fee type without value",
			in:   PaymentMethodInput{Code: "a", Name: "A", Type: models.PaymentMethodTypeQRIS, Provider: models.PaymentGatewayDuitku, GatewayCode: "SP", IsGatewayMethod: true, FeeType: &fixed},
			kind: apperr.KindValidationFailed,
		},
		{
			name: "gateway method with manual provider",
			in:   PaymentMethodInput{Code: "b", Name: "B", Type: models.PaymentMethodTypeQRIS, Provider: models.PaymentGatewayManual, IsGatewayMethod: true},
			kind: apperr.KindValidationFailed,
		},
		{
			name: "duitku method without channel code",
			in:   PaymentMethodInput{Code: "c", Name: "C", Type: models.PaymentMethodTypeQRIS, Provider: models.PaymentGatewayDuitku, IsGatewayMethod: true, FeeType: &fixed, FeeValue: &value},
			kind: apperr.KindValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewDB(t)
			svc := NewPaymentMethodService(db, nil)
			if _, err := svc.Create(context.Background(), tt.in); !apperr.IsKind(err, tt.kind) {
				t.Errorf("err = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestPaymentMethodDuplicateCode(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewPaymentMethodService(db, nil)
	in := PaymentMethodInput{Code: "qris", Name: "QRIS", Type: models.PaymentMethodTypeQRIS, Provider: models.PaymentGatewayDuitku, GatewayCode: "SP", IsGatewayMethod: true}

	created, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("duplicate err = %v, want conflict", err)
	}

	// Deleted codes stay reserved.
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("reuse of deleted code err = %v, want conflict", err)
	}
}

func TestPortfolioSlugs(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewPortfolioService(db)
	ctx := context.Background()

	first, err := svc.Create(ctx, PortfolioInput{Title: "Batik Store", Category: "web"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := svc.Create(ctx, PortfolioInput{Title: "Batik Store!", Category: "web"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Slug != "batik-store" || second.Slug != "batik-store-2" {
		t.Errorf("slugs = %q, %q", first.Slug, second.Slug)
	}

	hidden := false
	if _, err := svc.Create(ctx, PortfolioInput{Title: "Draft", Category: "mobile", IsPublished: &hidden}); err != nil {
		t.Fatalf("Create draft: %v", err)
	}
	public, err := svc.List(ctx, "", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(public) != 2 {
		t.Errorf("public items = %d, want 2", len(public))
	}
	all, _ := svc.List(ctx, "", true)
	if len(all) != 3 {
		t.Errorf("all items = %d, want 3", len(all))
	}
}
