package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata is the free-form enrichment map carried on a bank record.
// The reconciliation engine writes a fixed set of keys into it; anything
// else (importer tags, operator notes) passes through merges untouched.
type Metadata map[string]any

// Known metadata keys written by the reconciliation apply step.
const (
	MetaKeyReference      = "reconciliation_reference"
	MetaKeyConfidence     = "reconciliation_confidence"
	MetaKeyLevel          = "reconciliation_level"
	MetaKeyMatchType      = "reconciliation_match_type"
	MetaKeyTransactionIDs = "gateway_transaction_ids"
	MetaKeyCustomerNames  = "customer_names"
	MetaKeyCustomerEmails = "customer_emails"
	MetaKeyOrderIDs       = "order_ids"
	MetaKeyReconciledAt   = "reconciled_at"
)

// Merge returns a new map containing all keys of m overlaid with patch.
// Neither input is mutated.
func (m Metadata) Merge(patch Metadata) Metadata {
	merged := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// BankTransactionRecord is one ledger line from one bank account source.
// Only positive (credit) rows are reconciliation candidates.
type BankTransactionRecord struct {
	ID              int64           `json:"id"`
	Source          string          `json:"source"`
	TransactionDate time.Time       `json:"transactionDate"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Currency        string          `json:"currency"`
	Reconciled      bool            `json:"reconciled"`
	Metadata        Metadata        `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type BankRecordFilters struct {
	Reconciled  *bool
	CreditsOnly bool
	StartDate   *time.Time
	EndDate     *time.Time
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginatedBankRecords struct {
	Data       []*BankTransactionRecord `json:"data"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"pageSize"`
	TotalItems int64                    `json:"totalItems"`
	TotalPages int                      `json:"totalPages"`
}

// BankRecordPatch is a partial update applied to one bank record.
// Metadata, when set, replaces the stored map wholesale; callers are
// expected to read-merge-write so unrelated keys survive.
type BankRecordPatch struct {
	Reconciled *bool
	Metadata   Metadata
}

type BankRecordRepository interface {
	FetchPage(ctx context.Context, source string, filters BankRecordFilters, offset, limit int) ([]*BankTransactionRecord, error)
	Count(ctx context.Context, source string, filters BankRecordFilters) (int64, error)
	GetByID(ctx context.Context, id int64) (*BankTransactionRecord, error)
	Update(ctx context.Context, id int64, patch BankRecordPatch) error
}
