package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mianhamzaathar/AIFORGE/api/middleware"
	"github.com/mianhamzaathar/AIFORGE/internal/accounts"
	"github.com/mianhamzaathar/AIFORGE/internal/checkout"
	"github.com/mianhamzaathar/AIFORGE/internal/generation"
	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	pkgAuth "github.com/mianhamzaathar/AIFORGE/pkg/auth"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/types"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "aiforge", ExpirationMinutes: 60}

func TestAccountRegisterReturnsToken(t *testing.T) {
	svc := &stubAccounts{}
	handler := AccountRegister(svc, testJWT, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewBufferString(`{"email":"dev@aiforge.io","username":"dev"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data registerResponse `json:"data"`
	}
	decode(t, rec, &body)
	if body.Data.Account.Balance != 1000 {
		t.Fatalf("expected seed balance, got %d", body.Data.Account.Balance)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, body.Data.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.AccountID.String() != body.Data.Account.ID {
		t.Fatalf("token subject %s does not match account %s", claims.AccountID, body.Data.Account.ID)
	}
	if rec.Header().Get(tokenHeader) != body.Data.AccessToken {
		t.Fatalf("expected token header")
	}
}

func TestAccountRegisterValidatesBody(t *testing.T) {
	handler := AccountRegister(&stubAccounts{}, testJWT, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewBufferString(`{"email":"not-an-email","username":"dev"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthenticatedHandlersRequireAccount(t *testing.T) {
	handlers := map[string]http.Handler{
		"balance":   LedgerBalance(&stubAccounts{}, nil),
		"history":   LedgerHistory(&stubLedger{}, nil),
		"dashboard": AccountDashboard(&stubAccounts{}, nil),
		"checkout":  CheckoutTokens(&stubCheckout{}, nil),
	}
	for name, handler := range handlers {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestLedgerBalance(t *testing.T) {
	accountID := uuid.New()
	handler := LedgerBalance(&stubAccounts{balance: 350}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/balance", nil), accountID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data balanceResponse `json:"data"`
	}
	decode(t, rec, &body)
	if body.Data.Balance != 350 || body.Data.AccountID != accountID.String() {
		t.Fatalf("unexpected balance payload %+v", body.Data)
	}
}

func TestLedgerHistoryPassesPagingOptions(t *testing.T) {
	svc := &stubLedger{page: ledger.HistoryPage{
		Entries:    []models.LedgerEntry{{ID: uuid.New(), Sequence: 3, Amount: -50, Kind: enums.LedgerKindBlog, BalanceAfter: 950}},
		NextCursor: "next",
	}}
	handler := LedgerHistory(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/history?limit=10&cursor=abc&since=2026-01-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(req, uuid.New()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.opts.Limit != 10 || svc.opts.Cursor != "abc" || svc.opts.Since == nil {
		t.Fatalf("unexpected history options %+v", svc.opts)
	}
	var body struct {
		Data historyResponse `json:"data"`
		Meta types.PageMeta  `json:"meta"`
	}
	decode(t, rec, &body)
	if len(body.Data.Entries) != 1 || body.Data.Entries[0].Amount != -50 {
		t.Fatalf("unexpected history payload %+v", body.Data)
	}
	if body.Meta.NextCursor != "next" || body.Meta.Limit != 10 || body.Meta.Count != 1 {
		t.Fatalf("unexpected page meta %+v", body.Meta)
	}
}

func TestLedgerHistoryDefaultsAndBounds(t *testing.T) {
	svc := &stubLedger{}
	handler := LedgerHistory(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/history", nil), uuid.New()))
	if rec.Code != http.StatusOK || svc.opts.Limit != 25 {
		t.Fatalf("expected default limit 25, got %d (status %d)", svc.opts.Limit, rec.Code)
	}
	var body struct {
		Data struct {
			Entries []ledgerEntryResponse `json:"entries"`
		} `json:"data"`
	}
	decode(t, rec, &body)
	if body.Data.Entries == nil {
		t.Fatalf("expected empty entries array, got null")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/history?limit=500", nil), uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
}

func TestLedgerUsageTotals(t *testing.T) {
	svc := &stubLedger{usage: ledger.Usage{enums.LedgerKindBlog: 100, enums.LedgerKindCode: 40}}
	handler := LedgerUsage(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/usage?since=2026-02-01", nil), uuid.New()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data usageResponse `json:"data"`
	}
	decode(t, rec, &body)
	if body.Data.Total != 140 || body.Data.Usage[enums.LedgerKindBlog] != 100 {
		t.Fatalf("unexpected usage payload %+v", body.Data)
	}
	if body.Data.Since != "2026-02-01T00:00:00Z" {
		t.Fatalf("unexpected since %q", body.Data.Since)
	}
}

func TestServiceCallUnknownOperation(t *testing.T) {
	rec := callService(t, &stubGeneration{}, "poem.write", `{"input":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServiceCallInsufficientBalance(t *testing.T) {
	gen := &stubGeneration{err: pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient token balance").WithDetails(map[string]any{"balance": 20, "required": 100})}
	rec := callService(t, gen, "image.generate", `{"input":{"prompt":"forge"}}`)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if gen.op != ledger.OperationImageGenerate || gen.input["prompt"] != "forge" {
		t.Fatalf("unexpected call %s %v", gen.op, gen.input)
	}
}

func TestServiceCallSuccess(t *testing.T) {
	gen := &stubGeneration{outcome: &generation.Outcome{
		Operation: ledger.OperationCodeAnalyze,
		Charged:   40,
		Balance:   960,
		Output:    json.RawMessage(`{"analysis":"ok"}`),
	}}
	rec := callService(t, gen, "code.analyze", `{"input":{"code":"x := 1","language":"go"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data generation.Outcome `json:"data"`
	}
	decode(t, rec, &body)
	if body.Data.Charged != 40 || body.Data.Balance != 960 {
		t.Fatalf("unexpected outcome %+v", body.Data)
	}
}

func TestCheckoutPlansRejectsUnknownPlan(t *testing.T) {
	svc := &stubCheckout{}
	handler := CheckoutPlans(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/plans", bytes.NewBufferString(`{"plan":"platinum"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(req, uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("checkout should not be called")
	}
}

func TestCheckoutTokensCreatesSession(t *testing.T) {
	accountID := uuid.New()
	svc := &stubCheckout{}
	handler := CheckoutTokens(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/tokens", bytes.NewBufferString(`{"tokens":500}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(req, accountID))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.accountID != accountID || svc.tokens != 500 {
		t.Fatalf("unexpected checkout call %+v", svc)
	}
}

func TestPlansList(t *testing.T) {
	handler := PlansList(stubPlans{plans: []models.Plan{
		{Name: enums.PlanFree, Price: decimal.Zero, Tokens: 1000},
		{Name: enums.PlanPro, Price: decimal.RequireFromString("29.99"), Tokens: 20000, Features: []string{"priority"}},
	}}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	var body struct {
		Data planListResponse `json:"data"`
	}
	decode(t, rec, &body)
	if len(body.Data.Plans) != 2 {
		t.Fatalf("expected two plans, got %d", len(body.Data.Plans))
	}
	pro := body.Data.Plans[1]
	if pro.Price != "29.99" || pro.PriceCents != 2999 || pro.Features[0] != "priority" {
		t.Fatalf("unexpected plan payload %+v", pro)
	}
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	handler := HealthReady(cfg, nil,
		Dependency{Name: "database", Pinger: pingerFunc(func(context.Context) error { return nil })},
		Dependency{Name: "redis", Pinger: pingerFunc(func(context.Context) error { return errors.New("down") })},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get(envHeader) != "dev" {
		t.Fatalf("expected env header")
	}
}

func callService(t *testing.T, gen *stubGeneration, operation, payload string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/v1/services/{operation}", ServiceCall(gen, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services/"+operation, bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(req, uuid.New()))
	return rec
}

func authed(req *http.Request, accountID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithAccountID(req.Context(), accountID))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubAccounts struct {
	balance int64
}

func (s *stubAccounts) Register(_ context.Context, input accounts.RegisterInput) (*models.Account, error) {
	return &models.Account{
		ID:               uuid.New(),
		Email:            input.Email,
		Username:         input.Username,
		Balance:          1000,
		InitialBalance:   1000,
		SubscriptionPlan: enums.PlanFree,
		CreatedAt:        time.Now(),
	}, nil
}

func (s *stubAccounts) Get(_ context.Context, id uuid.UUID) (*models.Account, error) {
	return &models.Account{ID: id, Balance: s.balance, SubscriptionPlan: enums.PlanFree}, nil
}

func (s *stubAccounts) Dashboard(_ context.Context, id uuid.UUID) (*accounts.Dashboard, error) {
	return &accounts.Dashboard{AccountID: id, Balance: s.balance, Plan: enums.PlanFree}, nil
}

type stubLedger struct {
	opts  ledger.HistoryOptions
	page  ledger.HistoryPage
	usage ledger.Usage
}

func (s *stubLedger) History(_ context.Context, _ uuid.UUID, opts ledger.HistoryOptions) (ledger.HistoryPage, error) {
	s.opts = opts
	return s.page, nil
}

func (s *stubLedger) UsageSummary(context.Context, uuid.UUID, *time.Time) (ledger.Usage, error) {
	return s.usage, nil
}

func (s *stubLedger) Reconcile(_ context.Context, accountID uuid.UUID) (ledger.ReconcileReport, error) {
	return ledger.ReconcileReport{AccountID: accountID, Consistent: true}, nil
}

type stubGeneration struct {
	op      ledger.Operation
	input   map[string]string
	outcome *generation.Outcome
	err     error
}

func (s *stubGeneration) Run(_ context.Context, _ uuid.UUID, op ledger.Operation, input map[string]string) (*generation.Outcome, error) {
	s.op = op
	s.input = input
	return s.outcome, s.err
}

type stubCheckout struct {
	calls     int
	accountID uuid.UUID
	tokens    int64
}

func (s *stubCheckout) CreateTokenPurchase(_ context.Context, accountID uuid.UUID, tokens int64) (*checkout.Session, error) {
	s.calls++
	s.accountID = accountID
	s.tokens = tokens
	return &checkout.Session{ID: "cs_test", URL: "https://checkout.stripe.com/c/cs_test", PurchaseType: enums.PurchaseTokens, Tokens: tokens}, nil
}

func (s *stubCheckout) CreatePlanPurchase(_ context.Context, accountID uuid.UUID, plan enums.PlanName) (*checkout.Session, error) {
	s.calls++
	s.accountID = accountID
	return &checkout.Session{ID: "cs_plan", PurchaseType: enums.PurchasePlan, Plan: plan}, nil
}

type stubPlans struct {
	plans []models.Plan
}

func (s stubPlans) List(context.Context) ([]models.Plan, error) {
	return s.plans, nil
}
