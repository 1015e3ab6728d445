package testutil

import (
	"context"

	"github.com/veldt/ledgerdesk-backend/internal/domain"
)

// MockBankRecordRepository is a mock implementation of domain.BankRecordRepository
type MockBankRecordRepository struct {
	Records     []*domain.BankTransactionRecord
	NextID      int64
	UpdatedIDs  []int64
	FetchPageFn func(source string, filters domain.BankRecordFilters, offset, limit int) ([]*domain.BankTransactionRecord, error)
	GetByIDFn   func(id int64) (*domain.BankTransactionRecord, error)
	UpdateFn    func(id int64, patch domain.BankRecordPatch) error
}

// NewMockBankRecordRepository creates a new MockBankRecordRepository
func NewMockBankRecordRepository() *MockBankRecordRepository {
	return &MockBankRecordRepository{NextID: 1}
}

// AddRecord adds a record to the mock repository (helper for tests)
func (m *MockBankRecordRepository) AddRecord(record *domain.BankTransactionRecord) *domain.BankTransactionRecord {
	if record.ID == 0 {
		record.ID = m.NextID
		m.NextID++
	} else if record.ID >= m.NextID {
		m.NextID = record.ID + 1
	}
	m.Records = append(m.Records, record)
	return record
}

// FetchPage retrieves one page of matching records
func (m *MockBankRecordRepository) FetchPage(ctx context.Context, source string, filters domain.BankRecordFilters, offset, limit int) ([]*domain.BankTransactionRecord, error) {
	if m.FetchPageFn != nil {
		return m.FetchPageFn(source, filters, offset, limit)
	}
	matching := m.filter(source, filters)
	if offset >= len(matching) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], nil
}

// Count returns the number of matching records
func (m *MockBankRecordRepository) Count(ctx context.Context, source string, filters domain.BankRecordFilters) (int64, error) {
	return int64(len(m.filter(source, filters))), nil
}

// GetByID retrieves a record by ID
func (m *MockBankRecordRepository) GetByID(ctx context.Context, id int64) (*domain.BankTransactionRecord, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	for _, r := range m.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrBankRecordNotFound
}

// Update applies a patch to a stored record
func (m *MockBankRecordRepository) Update(ctx context.Context, id int64, patch domain.BankRecordPatch) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(id, patch)
	}
	for _, r := range m.Records {
		if r.ID == id {
			if patch.Reconciled != nil {
				r.Reconciled = *patch.Reconciled
			}
			if patch.Metadata != nil {
				r.Metadata = patch.Metadata
			}
			m.UpdatedIDs = append(m.UpdatedIDs, id)
			return nil
		}
	}
	return domain.ErrBankRecordNotFound
}

func (m *MockBankRecordRepository) filter(source string, filters domain.BankRecordFilters) []*domain.BankTransactionRecord {
	var matching []*domain.BankTransactionRecord
	for _, r := range m.Records {
		if r.Source != source {
			continue
		}
		if filters.Reconciled != nil && r.Reconciled != *filters.Reconciled {
			continue
		}
		if filters.CreditsOnly && !r.Amount.IsPositive() {
			continue
		}
		if filters.StartDate != nil && r.TransactionDate.Before(*filters.StartDate) {
			continue
		}
		if filters.EndDate != nil && r.TransactionDate.After(*filters.EndDate) {
			continue
		}
		matching = append(matching, r)
	}
	return matching
}

// MockGatewayTransactionRepository is a mock implementation of domain.GatewayTransactionRepository
type MockGatewayTransactionRepository struct {
	Rows        map[string][]*domain.GatewayTransaction
	FetchPageFn func(source string, offset, limit int) ([]*domain.GatewayTransaction, error)
}

// NewMockGatewayTransactionRepository creates a new MockGatewayTransactionRepository
func NewMockGatewayTransactionRepository() *MockGatewayTransactionRepository {
	return &MockGatewayTransactionRepository{
		Rows: make(map[string][]*domain.GatewayTransaction),
	}
}

// AddTransaction adds a gateway row to the mock repository (helper for tests)
func (m *MockGatewayTransactionRepository) AddTransaction(tx *domain.GatewayTransaction) {
	m.Rows[tx.Source] = append(m.Rows[tx.Source], tx)
}

// FetchPage retrieves one page of rows for a source
func (m *MockGatewayTransactionRepository) FetchPage(ctx context.Context, source string, offset, limit int) ([]*domain.GatewayTransaction, error) {
	if m.FetchPageFn != nil {
		return m.FetchPageFn(source, offset, limit)
	}
	rows := m.Rows[source]
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

// StrPtr returns a pointer to the given string (helper for tests)
func StrPtr(s string) *string {
	return &s
}
