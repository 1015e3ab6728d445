package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
	"github.com/veldt/ledgerdesk-backend/internal/service"
	"github.com/veldt/ledgerdesk-backend/internal/testutil"
)

func newBankRecordFixture() (*BankRecordHandler, *testutil.MockBankRecordRepository) {
	bankRepo := testutil.NewMockBankRecordRepository()
	return NewBankRecordHandler(service.NewBankRecordService(bankRepo)), bankRepo
}

func listRequest(e *echo.Echo, query string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bank-records?"+query, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestListBankRecords_Success(t *testing.T) {
	e := echo.New()
	handler, bankRepo := newBankRecordFixture()
	for i := 0; i < 3; i++ {
		bankRepo.AddRecord(&domain.BankTransactionRecord{
			Source:          "bank_main_gbp",
			TransactionDate: time.Date(2024, 6, 10+i, 0, 0, 0, 0, time.UTC),
			Amount:          decimal.RequireFromString("100.00"),
			Description:     fmt.Sprintf("BACS DEPOSIT %d", i),
			Currency:        "GBP",
		})
	}
	bankRepo.AddRecord(&domain.BankTransactionRecord{
		Source:          "bank_main_eur",
		TransactionDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.RequireFromString("50.00"),
		Description:     "SEPA CREDIT",
		Currency:        "EUR",
	})

	c, rec := listRequest(e, "source=bank_main_gbp")
	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response domain.PaginatedBankRecords
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.TotalItems != 3 {
		t.Errorf("Expected 3 items for the requested source, got %d", response.TotalItems)
	}
	if response.Page != 1 {
		t.Errorf("Expected default page 1, got %d", response.Page)
	}
	if response.PageSize != domain.DefaultPageSize {
		t.Errorf("Expected default page size %d, got %d", domain.DefaultPageSize, response.PageSize)
	}
}

func TestListBankRecords_ReconciledFilter(t *testing.T) {
	e := echo.New()
	handler, bankRepo := newBankRecordFixture()
	open := bankRepo.AddRecord(&domain.BankTransactionRecord{
		Source:          "bank_main_gbp",
		TransactionDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "GBP",
	})
	bankRepo.AddRecord(&domain.BankTransactionRecord{
		Source:          "bank_main_gbp",
		TransactionDate: time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.RequireFromString("200.00"),
		Currency:        "GBP",
		Reconciled:      true,
	})

	c, rec := listRequest(e, "source=bank_main_gbp&reconciled=false")
	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response domain.PaginatedBankRecords
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.TotalItems != 1 {
		t.Fatalf("Expected 1 unreconciled item, got %d", response.TotalItems)
	}
	if response.Data[0].ID != open.ID {
		t.Errorf("Expected record %d, got %d", open.ID, response.Data[0].ID)
	}
}

func TestListBankRecords_MissingSource(t *testing.T) {
	e := echo.New()
	handler, _ := newBankRecordFixture()

	c, rec := listRequest(e, "reconciled=false")
	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestListBankRecords_InvalidReconciledValue(t *testing.T) {
	e := echo.New()
	handler, _ := newBankRecordFixture()

	c, rec := listRequest(e, "source=bank_main_gbp&reconciled=sometimes")
	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestListBankRecords_PageSizeClamped(t *testing.T) {
	e := echo.New()
	handler, bankRepo := newBankRecordFixture()
	bankRepo.AddRecord(&domain.BankTransactionRecord{
		Source:          "bank_main_gbp",
		TransactionDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "GBP",
	})

	c, rec := listRequest(e, "source=bank_main_gbp&pageSize=5000")
	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response domain.PaginatedBankRecords
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.PageSize != domain.MaxPageSize {
		t.Errorf("Expected page size clamped to %d, got %d", domain.MaxPageSize, response.PageSize)
	}
}
