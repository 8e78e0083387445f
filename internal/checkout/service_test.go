package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
)

type stubSessionClient struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (s *stubSessionClient) Create(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

type stubPlans struct {
	plans map[enums.PlanName]models.Plan
}

func (s stubPlans) List(context.Context) ([]models.Plan, error) {
	out := []models.Plan{}
	for _, plan := range s.plans {
		out = append(out, plan)
	}
	return out, nil
}

func (s stubPlans) Get(_ context.Context, name enums.PlanName) (*models.Plan, error) {
	plan, ok := s.plans[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return &plan, nil
}

func newTestService(t *testing.T, client *stubSessionClient) Service {
	t.Helper()
	priceID := "price_pro"
	svc, err := NewService(ServiceParams{
		Plans: stubPlans{plans: map[enums.PlanName]models.Plan{
			enums.PlanFree:  {Name: enums.PlanFree, Price: decimal.Zero, Tokens: 1000, Active: true},
			enums.PlanBasic: {Name: enums.PlanBasic, Price: decimal.RequireFromString("9.99"), Tokens: 5000, Active: true},
			enums.PlanPro:   {Name: enums.PlanPro, Price: decimal.RequireFromString("29.99"), Tokens: 20000, StripePriceID: &priceID, Active: true},
		}},
		Stripe: client,
		Config: config.StripeConfig{
			SuccessURL:      "https://app.test/success",
			CancelURL:       "https://app.test/cancel",
			TokensPerDollar: 10,
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateTokenPurchase(t *testing.T) {
	client := &stubSessionClient{}
	svc := newTestService(t, client)
	accountID := uuid.New()

	sess, err := svc.CreateTokenPurchase(context.Background(), accountID, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID != "cs_test_1" || sess.URL == "" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !sess.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected $100, got %s", sess.Amount)
	}

	params := client.params
	if params == nil {
		t.Fatal("expected stripe to be called")
	}
	if *params.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("unexpected mode %s", *params.Mode)
	}
	if got := *params.LineItems[0].PriceData.UnitAmount; got != 10000 {
		t.Fatalf("expected 10000 cents, got %d", got)
	}
	if params.Metadata[MetadataAccountID] != accountID.String() ||
		params.Metadata[MetadataTokens] != "1000" ||
		params.Metadata[MetadataPurchaseType] != string(enums.PurchaseTokens) {
		t.Fatalf("unexpected metadata %+v", params.Metadata)
	}
}

func TestCreateTokenPurchaseMinimum(t *testing.T) {
	client := &stubSessionClient{}
	svc := newTestService(t, client)

	_, err := svc.CreateTokenPurchase(context.Background(), uuid.New(), 99)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if client.params != nil {
		t.Fatal("stripe must not be called for invalid purchases")
	}
}

func TestCreatePlanPurchaseUsesConfiguredPrice(t *testing.T) {
	client := &stubSessionClient{}
	svc := newTestService(t, client)

	sess, err := svc.CreatePlanPurchase(context.Background(), uuid.New(), enums.PlanPro)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Tokens != 20000 || sess.Plan != enums.PlanPro {
		t.Fatalf("unexpected session %+v", sess)
	}
	item := client.params.LineItems[0]
	if item.Price == nil || *item.Price != "price_pro" || item.PriceData != nil {
		t.Fatalf("expected stripe price id line item, got %+v", item)
	}
	if client.params.Metadata[MetadataPlan] != string(enums.PlanPro) {
		t.Fatalf("expected plan metadata, got %+v", client.params.Metadata)
	}
}

func TestCreatePlanPurchaseInlinePrice(t *testing.T) {
	client := &stubSessionClient{}
	svc := newTestService(t, client)

	if _, err := svc.CreatePlanPurchase(context.Background(), uuid.New(), enums.PlanBasic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := *client.params.LineItems[0].PriceData.UnitAmount; got != 999 {
		t.Fatalf("expected 999 cents, got %d", got)
	}
}

func TestCreatePlanPurchaseRejectsFreeAndUnknown(t *testing.T) {
	svc := newTestService(t, &stubSessionClient{})

	if _, err := svc.CreatePlanPurchase(context.Background(), uuid.New(), enums.PlanFree); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CreatePlanPurchase(context.Background(), uuid.New(), enums.PlanEnterprise); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStripeFailureIsDependencyError(t *testing.T) {
	svc := newTestService(t, &stubSessionClient{err: errors.New("stripe down")})

	if _, err := svc.CreateTokenPurchase(context.Background(), uuid.New(), 500); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestTokenPrice(t *testing.T) {
	cases := []struct {
		tokens int64
		rate   int64
		want   string
	}{
		{100, 10, "10.00"},
		{5000, 10, "500.00"},
		{101, 3, "33.67"},
	}
	for _, tc := range cases {
		got, err := TokenPrice(tc.tokens, tc.rate)
		if err != nil {
			t.Fatalf("%d@%d: %v", tc.tokens, tc.rate, err)
		}
		if got.StringFixed(2) != tc.want {
			t.Fatalf("%d@%d: expected %s, got %s", tc.tokens, tc.rate, tc.want, got.StringFixed(2))
		}
	}
	if _, err := TokenPrice(500, 0); err == nil {
		t.Fatal("expected invalid rate error")
	}
	if Cents(decimal.RequireFromString("29.99")) != 2999 {
		t.Fatal("unexpected cents conversion")
	}
}
