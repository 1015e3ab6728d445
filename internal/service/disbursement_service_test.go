package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
	"github.com/veldt/ledgerdesk-backend/internal/testutil"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestBuildGroups_TransactionGranularAggregation(t *testing.T) {
	repo := testutil.NewMockGatewayTransactionRepository()
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	repo.AddTransaction(&domain.GatewayTransaction{
		Source:            domain.GatewayBraintree,
		TransactionID:     "bt_1",
		SettlementDate:    date,
		Amount:            decimal.RequireFromString("50.00"),
		MerchantAccountID: testutil.StrPtr("acme_eur"),
		CustomerName:      testutil.StrPtr("Ada Byron"),
		CustomerEmail:     testutil.StrPtr("ada@example.com"),
		OrderID:           testutil.StrPtr("order_1"),
		ProductID:         testutil.StrPtr("plan_basic"),
		Fee:               decPtr("1.50"),
	})
	repo.AddTransaction(&domain.GatewayTransaction{
		Source:            domain.GatewayBraintree,
		TransactionID:     "bt_2",
		SettlementDate:    date,
		Amount:            decimal.RequireFromString("49.00"),
		SettlementAmount:  decPtr("50.02"),
		MerchantAccountID: testutil.StrPtr("acme_eur"),
		CustomerName:      testutil.StrPtr("Grace Hopper"),
		CustomerEmail:     testutil.StrPtr("grace@example.com"),
		OrderID:           testutil.StrPtr("order_2"),
		ProductID:         testutil.StrPtr("plan_basic"),
		Fee:               decPtr("1.00"),
	})
	// Premium card settles on its own bank line: separate group.
	repo.AddTransaction(&domain.GatewayTransaction{
		Source:            domain.GatewayBraintree,
		TransactionID:     "bt_3",
		SettlementDate:    date,
		Amount:            decimal.RequireFromString("75.00"),
		MerchantAccountID: testutil.StrPtr("acme_eur"),
		CardType:          testutil.StrPtr("AMEX"),
	})
	// Malformed date is skipped without aborting the aggregation.
	repo.AddTransaction(&domain.GatewayTransaction{
		Source:        domain.GatewayBraintree,
		TransactionID: "bt_broken",
		Amount:        decimal.RequireFromString("10.00"),
	})

	svc := NewDisbursementService(repo)
	groups, err := svc.BuildGroups(context.Background(), []string{domain.GatewayBraintree})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	standard := groups[0]
	if standard.Source != domain.GatewayBraintree {
		t.Errorf("expected source braintree, got %s", standard.Source)
	}
	if !standard.Amount.Equal(decimal.RequireFromString("100.02")) {
		t.Errorf("expected amount 100.02, got %s", standard.Amount)
	}
	if standard.Count != 2 {
		t.Errorf("expected count 2, got %d", standard.Count)
	}
	if standard.Currency != "EUR" {
		t.Errorf("expected currency EUR inferred from merchant, got %s", standard.Currency)
	}
	if standard.Reference != "braintree:2024-05-10:acme_eur" {
		t.Errorf("unexpected reference %s", standard.Reference)
	}
	if !standard.FeeTotal.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("expected fee total 2.50, got %s", standard.FeeTotal)
	}
	if len(standard.TransactionIDs) != 2 || len(standard.CustomerNames) != 2 || len(standard.CustomerEmails) != 2 || len(standard.OrderIDs) != 2 {
		t.Errorf("unexpected enrichment sets %+v", standard)
	}
	if len(standard.Products) != 1 {
		t.Errorf("expected products deduplicated to 1, got %v", standard.Products)
	}

	premium := groups[1]
	if premium.Source != domain.GatewayBraintreeAmex {
		t.Errorf("expected source braintree_amex, got %s", premium.Source)
	}
	if !premium.Amount.Equal(decimal.RequireFromString("75.00")) {
		t.Errorf("expected amount 75.00, got %s", premium.Amount)
	}
	if premium.Reference != "braintree_amex:2024-05-10:acme_eur" {
		t.Errorf("unexpected reference %s", premium.Reference)
	}
}

func TestBuildGroups_PayoutGranularPassthrough(t *testing.T) {
	repo := testutil.NewMockGatewayTransactionRepository()
	date := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)

	repo.AddTransaction(&domain.GatewayTransaction{
		Source:         domain.GatewayGoCardless,
		TransactionID:  "payout_gc_1",
		SettlementDate: date,
		Amount:         decimal.RequireFromString("230.55"),
		Currency:       testutil.StrPtr("eur"),
		Fee:            decPtr("2.30"),
		CustomerName:   testutil.StrPtr("ignored at payout granularity"),
	})
	repo.AddTransaction(&domain.GatewayTransaction{
		Source:         domain.GatewayGoCardless,
		TransactionID:  "payout_gc_2",
		SettlementDate: date,
		Amount:         decimal.RequireFromString("99.99"),
	})

	svc := NewDisbursementService(repo)
	groups, err := svc.BuildGroups(context.Background(), []string{domain.GatewayGoCardless})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected one group per payout row, got %d", len(groups))
	}

	first := groups[0]
	if first.Reference != "payout_gc_1" {
		t.Errorf("expected payout id as reference, got %s", first.Reference)
	}
	if first.Currency != "EUR" {
		t.Errorf("expected explicit currency EUR, got %s", first.Currency)
	}
	if len(first.CustomerNames) != 0 {
		t.Errorf("expected empty enrichment sets at payout granularity, got %v", first.CustomerNames)
	}
	if !first.FeeTotal.Equal(decimal.RequireFromString("2.30")) {
		t.Errorf("expected fee 2.30, got %s", first.FeeTotal)
	}

	second := groups[1]
	if second.Currency != domain.HomeCurrency {
		t.Errorf("expected home currency fallback, got %s", second.Currency)
	}
}

func TestBuildGroups_PaginatesUntilShortPage(t *testing.T) {
	repo := testutil.NewMockGatewayTransactionRepository()
	date := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < fetchPageSize+1; i++ {
		repo.AddTransaction(&domain.GatewayTransaction{
			Source:            domain.GatewayBraintree,
			TransactionID:     fmt.Sprintf("bt_%d", i),
			SettlementDate:    date,
			Amount:            decimal.RequireFromString("1.00"),
			MerchantAccountID: testutil.StrPtr("acme_gbp"),
		})
	}

	svc := NewDisbursementService(repo)
	groups, err := svc.BuildGroups(context.Background(), []string{domain.GatewayBraintree})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Count != fetchPageSize+1 {
		t.Errorf("expected all %d rows aggregated across pages, got %d", fetchPageSize+1, groups[0].Count)
	}
}

func TestBuildGroups_FetchErrorIsFatal(t *testing.T) {
	repo := testutil.NewMockGatewayTransactionRepository()
	repo.FetchPageFn = func(source string, offset, limit int) ([]*domain.GatewayTransaction, error) {
		return nil, errors.New("store unreachable")
	}

	svc := NewDisbursementService(repo)
	if _, err := svc.BuildGroups(context.Background(), []string{domain.GatewayBraintree}); err == nil {
		t.Fatal("expected fetch error to be fatal")
	}
}
