package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/dbtest"
	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
)

type fakeGenerator struct {
	err   error
	calls []Request
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (*Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Output: json.RawMessage(`{"text":"done"}`)}, nil
}

func setup(t *testing.T, balance int64, gen Generator) (Service, ledger.Service, *db.Client, uuid.UUID) {
	t.Helper()
	client := dbtest.Open(t)
	costs, err := ledger.CostTableFromConfig(config.TokenCostsConfig{Blog: 50, Image: 100, Resume: 30, Code: 40})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:  ledger.NewRepository(client.DB()),
		Tx:    client,
		Costs: costs,
		Retry: ledger.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond},
	})
	require.NoError(t, err)

	account := models.Account{Email: uuid.NewString() + "@example.com", Username: "gen", Balance: balance, InitialBalance: balance}
	require.NoError(t, client.DB().Create(&account).Error)

	svc, err := NewService(ledgerSvc, gen, nil)
	require.NoError(t, err)
	return svc, ledgerSvc, client, account.ID
}

func TestRunChargesAndReturnsOutput(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _, _, acct := setup(t, 1000, gen)

	out, err := svc.Run(context.Background(), acct, ledger.OperationCodeAnalyze, map[string]string{"code": "fmt.Println()", "language": "go"})
	require.NoError(t, err)
	assert.Equal(t, int64(40), out.Charged)
	assert.Equal(t, int64(960), out.Balance)
	assert.JSONEq(t, `{"text":"done"}`, string(out.Output))

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "explain", gen.calls[0].Input["analysis_type"])
}

func TestRunRefusesWithoutFunds(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _, _, acct := setup(t, 20, gen)

	_, err := svc.Run(context.Background(), acct, ledger.OperationBlogGenerate, map[string]string{"topic": "go"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))
	assert.Equal(t, map[string]any{"balance": int64(20), "required": int64(50)}, pkgerrors.As(err).Details())
	assert.Empty(t, gen.calls)
}

func TestRunRefundsWhenGeneratorFails(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	svc, ledgerSvc, client, acct := setup(t, 1000, gen)
	ctx := context.Background()

	_, err := svc.Run(ctx, acct, ledger.OperationImageGenerate, map[string]string{"prompt": "a gopher"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var account models.Account
	require.NoError(t, client.DB().First(&account, "id = ?", acct).Error)
	assert.Equal(t, int64(1000), account.Balance)

	page, err := ledgerSvc.History(ctx, acct, ledger.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	refund, debit := page.Entries[0], page.Entries[1]
	assert.Equal(t, enums.LedgerKindRefund, refund.Kind)
	assert.Equal(t, int64(100), refund.Amount)
	require.NotNil(t, refund.Reference)
	assert.Equal(t, RefundReference(debit.ID), *refund.Reference)

	usage, err := ledgerSvc.UsageSummary(ctx, acct, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.Usage{enums.LedgerKindImage: 100}, usage)
}

func TestRunValidatesInputBeforeCharging(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _, client, acct := setup(t, 1000, gen)

	_, err := svc.Run(context.Background(), acct, ledger.OperationResumeOptimize, map[string]string{"resume": "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, client.DB().Model(&models.LedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunWithoutGenerator(t *testing.T) {
	svc, _, client, acct := setup(t, 1000, nil)

	_, err := svc.Run(context.Background(), acct, ledger.OperationBlogImprove, map[string]string{"content": "draft"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var count int64
	require.NoError(t, client.DB().Model(&models.LedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}
