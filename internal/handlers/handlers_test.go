package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/middleware"
	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
	"agency_portal_echo/internal/testutil"
)

const (
	testUserHeader  = "X-Test-User"
	testInternalKey = "internal-secret"
)

type testApp struct {
	e        *echo.Echo
	db       *gorm.DB
	duitku   *services.DuitkuGateway
	customer models.User
	admin    models.User
}

// fakeAuth stands in for the Firebase guard: the caller names a user by
// firebase uid in a header.
func fakeAuth(db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := c.Request().Header.Get(testUserHeader)
			if uid == "" {
				return apperr.AuthenticationRequired("Please log in to continue")
			}
			var u models.User
			if err := db.Where("firebase_uid = ?", uid).First(&u).Error; err != nil {
				return apperr.AuthenticationRequired("Please log in to continue")
			}
			middleware.SetUser(c, &u)
			return next(c)
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)

	duitku, err := services.NewDuitkuGateway(services.DuitkuConfig{
		MerchantCode: "D0001",
		APIKey:       "secret-key",
		BaseURL:      "http://duitku.invalid",
	}, nil)
	if err != nil {
		t.Fatalf("NewDuitkuGateway: %v", err)
	}

	payments := services.NewPaymentService(db, services.PaymentConfig{AppURL: "https://agency.test"}, nil, duitku, nil)
	methods := services.NewPaymentMethodService(db, nil)
	sessions := services.NewWhatsAppSessionService(db, nil)
	bots := services.NewAIBotService(db)

	e := echo.New()
	e.HTTPErrorHandler = middleware.CustomErrorHandler
	e.Validator = middleware.NewRequestValidator()

	RegisterRoutes(e, Handlers{
		Auth:      NewAuthHandler(nil, FirebaseWebConfig{}, false),
		Dashboard: NewDashboardHandler(payments, sessions),
		Payments:  NewPaymentHandler(payments),
		Callbacks: NewCallbackHandler(payments),
		Catalog:   NewCatalogHandler(methods, services.NewBankDetailService(db, methods), services.NewPackageService(db)),
		Public:    NewPublicHandler(services.NewPortfolioService(db), services.NewLocaleService(nil)),
		Users:     NewUserHandler(services.NewUserService(db)),
		WhatsApp:  NewWhatsAppHandler(sessions, bots),
		Internal:  NewInternalHandler(bots),
	}, Guards{
		Auth:     fakeAuth(db),
		Admin:    middleware.RequireAdmin(),
		Internal: middleware.RequireInternalKey(testInternalKey),
		Sweep:    passThrough,
	})

	app := &testApp{e: e, db: db, duitku: duitku}
	app.customer = models.User{FirebaseUID: "cust-1", Name: "Sari", Email: "sari@example.com", Role: models.UserRoleCustomer}
	app.admin = models.User{FirebaseUID: "admin-1", Name: "Ops", Email: "ops@example.com", Role: models.UserRoleAdmin}
	testutil.MustCreate(t, db, &app.customer)
	testutil.MustCreate(t, db, &app.admin)
	return app
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body, uid string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	if uid != "" {
		req.Header.Set(testUserHeader, uid)
	}
	return req
}

func (a *testApp) pendingPayment(t *testing.T, orderID string) models.Payment {
	t.Helper()
	trx := models.Transaction{UserID: a.customer.ID, Subtotal: 150000, Amount: 150000, Currency: models.CurrencyIDR, Status: models.StatusPending}
	testutil.MustCreate(t, a.db, &trx)
	p := models.Payment{
		TransactionID: trx.ID,
		OrderID:       orderID,
		Gateway:       models.PaymentGatewayDuitku,
		MethodCode:    "duitku_bca_va",
		Status:        models.StatusPending,
		Amount:        150000,
		ExternalID:    "REF-" + orderID,
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	testutil.MustCreate(t, a.db, &p)
	return p
}

func (a *testApp) reload(t *testing.T, id uint) models.Payment {
	t.Helper()
	var p models.Payment
	if err := a.db.First(&p, id).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return p
}

type apiError struct {
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestDuitkuCallbackAlwaysAcknowledges(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name        string
		resultCode  string
		badSig      bool
		wantStatus  models.Status
		wantOutcome models.CallbackOutcome
	}{
		{name: "success marks paid", resultCode: "00", wantStatus: models.StatusPaid, wantOutcome: models.CallbackOutcomeApplied},
		{name: "bad signature is ignored", resultCode: "00", badSig: true, wantStatus: models.StatusPending, wantOutcome: models.CallbackOutcomeInvalidSignature},
		{name: "unknown code is ignored", resultCode: "99", wantStatus: models.StatusPending, wantOutcome: models.CallbackOutcomeUnknownCode},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := app.pendingPayment(t, "TRX-CB-"+string(rune('A'+i)))
			sig := app.duitku.CallbackSignature("150000", p.OrderID)
			if tt.badSig {
				sig = "forged"
			}
			form := url.Values{
				"merchantCode":    {"D0001"},
				"amount":          {"150000"},
				"merchantOrderId": {p.OrderID},
				"resultCode":      {tt.resultCode},
				"reference":       {p.ExternalID},
				"signature":       {sig},
			}
			req := httptest.NewRequest(http.MethodPost, services.DuitkuCallbackPath, strings.NewReader(form.Encode()))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

			rec := app.do(req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := app.reload(t, p.ID).Status; got != tt.wantStatus {
				t.Errorf("payment status = %s, want %s", got, tt.wantStatus)
			}

			var h models.PaymentCallbackHistory
			if err := app.db.Where("reference = ?", p.ExternalID).Last(&h).Error; err != nil {
				t.Fatalf("callback history missing: %v", err)
			}
			if h.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", h.Outcome, tt.wantOutcome)
			}
		})
	}
}

func TestCallbackWithUnreadableBodyStillAcknowledges(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, services.MidtransNotificationPath, strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if rec := app.do(req); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReturnIsDisplayOnly(t *testing.T) {
	app := newTestApp(t)
	p := app.pendingPayment(t, "TRX-RET-1")
	query := "merchantOrderId=" + p.OrderID + "&resultCode=00&reference=" + p.ExternalID

	t.Run("json", func(t *testing.T) {
		rec := app.do(jsonRequest(http.MethodGet, services.PaymentReturnPath+"?"+query, "", ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var view services.ReturnView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !view.Found || view.Status != models.StatusPaid || view.StoredStatus != models.StatusPending {
			t.Errorf("view = %+v, want found paid over stored pending", view)
		}
	})

	t.Run("browser", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, services.PaymentReturnPath+"?"+query, nil)
		rec := app.do(req)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if loc := rec.Header().Get(echo.HeaderLocation); loc != PaymentStatusPath+"?"+query {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		rec := app.do(jsonRequest(http.MethodGet, services.PaymentReturnPath+"?merchantOrderId=NOPE", "", ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"found":false`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("status page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, PaymentStatusPath+"?"+query, nil)
		rec := app.do(req)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Payment successful") {
			t.Errorf("status page = %d %s", rec.Code, rec.Body.String())
		}
	})

	if got := app.reload(t, p.ID).Status; got != models.StatusPending {
		t.Errorf("return wrote status %s", got)
	}
}

func TestCheckoutRequiresLoginAndValidBody(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(jsonRequest(http.MethodPost, "/api/checkout", `{}`, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}

	rec = app.do(jsonRequest(http.MethodPost, "/api/checkout", `{"durationMonths": 2}`, app.customer.FirebaseUID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeAPIError(t, rec)
	if body.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %s", body.Code)
	}
	if body.Fields["packageId"] != "required" || body.Fields["durationMonths"] != "oneof" {
		t.Errorf("fields = %v", body.Fields)
	}

	rec = app.do(jsonRequest(http.MethodPost, "/api/checkout", `{"packageId":`, app.customer.FirebaseUID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestAdminSetStatus(t *testing.T) {
	app := newTestApp(t)
	p := app.pendingPayment(t, "TRX-ADM-1")
	target := "/api/admin/payments/" + jsonID(p.ID) + "/status"

	rec := app.do(jsonRequest(http.MethodPatch, target, `{"status":"paid"}`, app.customer.FirebaseUID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer status = %d, want 403", rec.Code)
	}

	rec = app.do(jsonRequest(http.MethodPatch, target, `{"status":"settled"}`, app.admin.FirebaseUID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", rec.Code)
	}

	rec = app.do(jsonRequest(http.MethodPatch, target, `{"status":"paid"}`, app.admin.FirebaseUID))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := app.reload(t, p.ID).Status; got != models.StatusPaid {
		t.Errorf("payment status = %s, want paid", got)
	}

	// paid is sticky
	app.do(jsonRequest(http.MethodPatch, target, `{"status":"failed"}`, app.admin.FirebaseUID))
	if got := app.reload(t, p.ID).Status; got != models.StatusPaid {
		t.Errorf("after failed, status = %s, want paid", got)
	}
}

func TestInternalAPI(t *testing.T) {
	app := newTestApp(t)
	session := models.WhatsAppSession{UserID: app.customer.ID, Name: "support", Token: "tok-internal"}
	testutil.MustCreate(t, app.db, &session)

	tests := []struct {
		name   string
		key    string
		target string
		want   int
	}{
		{name: "missing key", target: "/api/internal/sessions/resolve?token=tok-internal", want: http.StatusUnauthorized},
		{name: "wrong key", key: "nope", target: "/api/internal/sessions/resolve?token=tok-internal", want: http.StatusUnauthorized},
		{name: "resolve", key: testInternalKey, target: "/api/internal/sessions/resolve?token=tok-internal", want: http.StatusOK},
		{name: "unknown token", key: testInternalKey, target: "/api/internal/sessions/resolve?token=other", want: http.StatusNotFound},
		{name: "no bot bound", key: testInternalKey, target: "/api/internal/sessions/tok-internal/bot", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodGet, tt.target, "", "")
			if tt.key != "" {
				req.Header.Set(middleware.InternalKeyHeader, tt.key)
			}
			rec := app.do(req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK {
				var res services.SessionResolution
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if res.UserID != app.customer.ID || res.BotActive || res.SubscriptionActive {
					t.Errorf("resolution = %+v", res)
				}
			}
		})
	}
}

func TestCreateBankDetail(t *testing.T) {
	app := newTestApp(t)
	body := `{"bankName":"Bank Central Asia","accountNumber":"1234567890","accountHolder":"PT Agency"}`

	rec := app.do(jsonRequest(http.MethodPost, "/api/admin/bank-details", body, app.admin.FirebaseUID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res services.BankDetailResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PaymentMethod.Code != "manual_transfer_bank_bank_central_asia_idr" {
		t.Errorf("method code = %s", res.PaymentMethod.Code)
	}

	rec = app.do(jsonRequest(http.MethodGet, "/api/payment-methods", "", ""))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), res.PaymentMethod.Code) {
		t.Errorf("public methods = %d %s", rec.Code, rec.Body.String())
	}
}

type fakeMinter struct {
	verifyErr error
}

func (f fakeMinter) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &auth.Token{UID: "cust-1"}, nil
}

func (f fakeMinter) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return "minted-" + idToken, nil
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name       string
		minter     SessionMinter
		header     string
		wantStatus int
		wantCookie string
	}{
		{name: "valid token", minter: fakeMinter{}, header: "Bearer id-token", wantStatus: http.StatusOK, wantCookie: "minted-id-token"},
		{name: "missing header", minter: fakeMinter{}, wantStatus: http.StatusUnauthorized},
		{name: "not bearer", minter: fakeMinter{}, header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", minter: fakeMinter{verifyErr: errors.New("expired")}, header: "Bearer id-token", wantStatus: http.StatusUnauthorized},
		{name: "firebase not configured", header: "Bearer id-token", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = middleware.CustomErrorHandler
			h := NewAuthHandler(tt.minter, FirebaseWebConfig{}, true)
			e.POST("/auth/login", h.HandleLogin)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCookie == "" {
				return
			}
			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Value != tt.wantCookie || !cookies[0].Secure || !cookies[0].HttpOnly {
				t.Errorf("cookies = %+v", cookies)
			}
		})
	}
}

func TestLoginPageKeepsOnlyLocalNext(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		next string
		want string
	}{
		{next: "/dashboard", want: `"/dashboard"`},
		{next: "https://evil.example", want: `"/dashboard"`},
		{next: "//evil.example", want: `"/dashboard"`},
	}
	for _, tt := range tests {
		rec := app.do(httptest.NewRequest(http.MethodGet, "/login?next="+url.QueryEscape(tt.next), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "evil.example") || !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("next=%q rendered unexpected redirect target", tt.next)
		}
	}
}

func TestDashboardListsTransactions(t *testing.T) {
	app := newTestApp(t)
	trx := models.Transaction{UserID: app.customer.ID, Description: "WhatsApp Basic 1 month", Subtotal: 150000, Amount: 150000, Currency: models.CurrencyIDR, Status: models.StatusPending}
	testutil.MustCreate(t, app.db, &trx)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set(testUserHeader, app.customer.FirebaseUID)
	rec := app.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	for _, want := range []string{"Welcome, Sari", "WhatsApp Basic 1 month", "Rp 150.000", "No active WhatsApp subscription."} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestLocaleSetsVary(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/locale", nil)
	req.Header.Set("CF-IPCountry", "SG")
	rec := app.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "USD") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("Vary") == "" {
		t.Error("missing Vary header")
	}
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
