package payments_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agricapital/agricapital/app/models"
	"github.com/agricapital/agricapital/internal/pkg/payments"
	"github.com/agricapital/agricapital/internal/pkg/payments/paymentstest"
)

func approved() *payments.Verification {
	return &payments.Verification{Outcome: payments.OutcomeApproved, RawStatus: "approved"}
}

func TestParseReturnParams(t *testing.T) {
	q, err := url.ParseQuery("ref=REF-7&transaction_id=T-7&status=SUCCESS&provider=KKiaPay")
	require.NoError(t, err)

	p := payments.ParseReturnParams(q.Get)
	assert.Equal(t, "REF-7", p.Reference)
	assert.Equal(t, "T-7", p.TransactionID)
	assert.Equal(t, "success", p.Status)
	assert.Equal(t, models.PaymentProviderKKiaPay, p.Provider)
	assert.True(t, p.ClaimsSuccess())

	q, err = url.ParseQuery("reference=REF-8&id=T-8&transactionId=ignored&provider=stripe")
	require.NoError(t, err)
	p = payments.ParseReturnParams(q.Get)
	assert.Equal(t, "REF-8", p.Reference)
	assert.Equal(t, "T-8", p.TransactionID)
	assert.Equal(t, payments.ProviderAuto, p.Provider)
	assert.False(t, p.ClaimsSuccess())

	p = payments.ParseReturnParams(func(string) string { return "" })
	assert.False(t, p.HasIdentifiers())
}

func TestCheck_AlreadySettledNeedsNoProvider(t *testing.T) {
	svc, repo, _ := newTestService(t)
	payment, plantation := paymentstest.Fixture("REF-002", models.PaymentTypeAccessRight, 30000, "2")
	payment.Status = models.PaymentStatusValid
	repo.AddPlantation(plantation)
	repo.AddPayment(payment)

	verifier := &paymentstest.StaticVerifier{Provider: models.PaymentProviderFedaPay, Result: approved()}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(verifier))

	res := checker.Check(context.Background(), payments.ReturnParams{Reference: "REF-002", Provider: payments.ProviderAuto})
	assert.Equal(t, payments.ReturnSucceeded, res.State)
	require.NotNil(t, res.Payment)
	assert.Equal(t, "REF-002", res.Payment.Reference)
	assert.Equal(t, "Plantation REF-002", res.Payment.PlantationName)
	assert.Zero(t, verifier.Calls())
	assert.Zero(t, repo.PaymentUpdates)
}

func TestCheck_FallsThroughToSecondProvider(t *testing.T) {
	svc, repo, counter := newTestService(t)
	payment, plantation := seed(repo, "REF-009", models.PaymentTypeAccessRight, 60000, "2")

	kkia := &paymentstest.StaticVerifier{Provider: models.PaymentProviderKKiaPay, Err: errors.New("transaction not found")}
	feda := &paymentstest.StaticVerifier{Provider: models.PaymentProviderFedaPay, Result: approved()}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(kkia, feda))

	res := checker.Check(context.Background(), payments.ReturnParams{
		Reference:     "REF-009",
		TransactionID: "T-9",
		Provider:      payments.ProviderAuto,
	})
	assert.Equal(t, payments.ReturnSucceeded, res.State)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PaymentProviderFedaPay, res.Provider)
	assert.Equal(t, 1, kkia.Calls())
	assert.Equal(t, 1, feda.Calls())

	stored := repo.Payment(payment.ID)
	assert.Equal(t, models.PaymentStatusValid, stored.Status)
	assert.Equal(t, models.PaymentProviderFedaPay, stored.Metadata.Data().VerifiedProvider)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, "T-9", *stored.TransactionID)

	pl := repo.Plantation(plantation.ID)
	assert.Equal(t, models.ActivationActive, pl.ActivationStatus)
	assert.Equal(t, models.PlantationStatusActive, pl.Status)
	assert.Equal(t, int64(1), counter.Get("settle:return:approved"))
}

func TestCheck_ProviderHintSkipsOthers(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seed(repo, "REF-010", models.PaymentTypeFee, 5000, "1")

	kkia := &paymentstest.StaticVerifier{Provider: models.PaymentProviderKKiaPay, Result: approved()}
	feda := &paymentstest.StaticVerifier{Provider: models.PaymentProviderFedaPay, Result: approved()}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(kkia, feda))

	res := checker.Check(context.Background(), payments.ReturnParams{
		Reference:     "REF-010",
		TransactionID: "T-10",
		Provider:      models.PaymentProviderFedaPay,
	})
	assert.Equal(t, payments.ReturnSucceeded, res.State)
	assert.Zero(t, kkia.Calls())
	assert.Equal(t, 1, feda.Calls())
}

func TestCheck_DeclinedByProvider(t *testing.T) {
	svc, repo, _ := newTestService(t)
	payment, plantation := seed(repo, "REF-011", models.PaymentTypeAccessRight, 30000, "2")

	verifier := &paymentstest.StaticVerifier{
		Provider: models.PaymentProviderKKiaPay,
		Result:   &payments.Verification{Outcome: payments.OutcomeDeclined, RawStatus: "failed"},
	}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(verifier))

	res := checker.Check(context.Background(), payments.ReturnParams{
		Reference:     "REF-011",
		TransactionID: "T-11",
		Status:        "success",
		Provider:      payments.ProviderAuto,
	})
	assert.Equal(t, payments.ReturnFailed, res.State)
	assert.Equal(t, models.PaymentStatusFailed, repo.Payment(payment.ID).Status)
	assert.Equal(t, models.ActivationUnactivated, repo.Plantation(plantation.ID).ActivationStatus)
}

func TestCheck_TrustsReturnStatusWhenProvidersAreSilent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	payment, _ := seed(repo, "REF-012", models.PaymentTypeAccessRight, 30000, "2")

	verifier := &paymentstest.StaticVerifier{
		Provider: models.PaymentProviderFedaPay,
		Result:   &payments.Verification{Outcome: payments.OutcomeIndeterminate, RawStatus: "pending"},
	}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(verifier))

	res := checker.Check(context.Background(), payments.ReturnParams{
		Reference:     "REF-012",
		TransactionID: "T-12",
		Status:        "approved",
		Provider:      payments.ProviderAuto,
	})
	assert.Equal(t, payments.ReturnSucceeded, res.State)
	assert.Empty(t, res.Provider)

	stored := repo.Payment(payment.ID)
	assert.Equal(t, models.PaymentStatusValid, stored.Status)
	assert.Empty(t, stored.Metadata.Data().VerifiedProvider)
}

func TestCheck_StaysAwaiting(t *testing.T) {
	svc, repo, _ := newTestService(t)
	payment, _ := seed(repo, "REF-013", models.PaymentTypeAccessRight, 30000, "2")

	silent := &paymentstest.StaticVerifier{Provider: models.PaymentProviderFedaPay, Err: errors.New("unreachable")}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(silent))
	ctx := context.Background()

	tests := []struct {
		name   string
		params payments.ReturnParams
	}{
		{name: "no identifiers", params: payments.ReturnParams{Provider: payments.ProviderAuto}},
		{name: "unknown reference", params: payments.ReturnParams{Reference: "REF-404", Provider: payments.ProviderAuto}},
		{name: "pending without transaction", params: payments.ReturnParams{Reference: "REF-013", Provider: payments.ProviderAuto}},
		{name: "provider unreachable", params: payments.ReturnParams{Reference: "REF-013", TransactionID: "T-13", Provider: payments.ProviderAuto}},
		{name: "invalid provider", params: payments.ReturnParams{Reference: "REF-013", Status: "success", Provider: "stripe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checker.Check(ctx, tt.params)
			assert.Equal(t, payments.ReturnAwaiting, res.State)
		})
	}
	assert.Equal(t, models.PaymentStatusPending, repo.Payment(payment.ID).Status)
	assert.Zero(t, repo.PaymentUpdates)
}

func TestCheck_LookupFailureStaysAwaiting(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seed(repo, "REF-014", models.PaymentTypeAccessRight, 30000, "2")
	repo.FailLookup = errors.New("connection refused")

	checker := payments.NewReturnChecker(svc, payments.NewVerifiers())
	res := checker.Check(context.Background(), payments.ReturnParams{Reference: "REF-014", Status: "success", Provider: payments.ProviderAuto})
	assert.Equal(t, payments.ReturnAwaiting, res.State)
	assert.Nil(t, res.Payment)
}

func TestCheck_UsesVerifiedAmount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	payment, plantation := seed(repo, "REF-015", models.PaymentTypeAccessRight, 60000, "2")

	paid := decimal.NewFromInt(30000)
	verifier := &paymentstest.StaticVerifier{
		Provider: models.PaymentProviderKKiaPay,
		Result:   &payments.Verification{Outcome: payments.OutcomeApproved, Amount: &paid},
	}
	checker := payments.NewReturnChecker(svc, payments.NewVerifiers(verifier))

	res := checker.Check(context.Background(), payments.ReturnParams{
		Reference:     "REF-015",
		TransactionID: "T-15",
		Provider:      payments.ProviderAuto,
	})
	assert.Equal(t, payments.ReturnSucceeded, res.State)

	stored := repo.Payment(payment.ID)
	require.NotNil(t, stored.AmountPaid)
	assert.True(t, stored.AmountPaid.Equal(paid))

	pl := repo.Plantation(plantation.ID)
	assert.True(t, pl.SurfaceActivatedHa.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, models.ActivationPartial, pl.ActivationStatus)
}
