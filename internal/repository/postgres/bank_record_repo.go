package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
)

// BankRecordRepository implements domain.BankRecordRepository using PostgreSQL
type BankRecordRepository struct {
	pool *pgxpool.Pool
}

// NewBankRecordRepository creates a new BankRecordRepository
func NewBankRecordRepository(pool *pgxpool.Pool) *BankRecordRepository {
	return &BankRecordRepository{pool: pool}
}

const bankRecordColumns = "id, source, transaction_date, amount, description, currency, reconciled, metadata, created_at, updated_at"

// FetchPage retrieves one page of bank records for a source, ordered
// date-descending. A short page signals end-of-data to callers.
func (r *BankRecordRepository) FetchPage(ctx context.Context, source string, filters domain.BankRecordFilters, offset, limit int) ([]*domain.BankTransactionRecord, error) {
	query, args := buildBankRecordQuery("SELECT "+bankRecordColumns+" FROM bank_transactions", source, filters)
	query += fmt.Sprintf(" ORDER BY transaction_date DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bank_transactions: %w", err)
	}
	defer rows.Close()

	var records []*domain.BankTransactionRecord
	for rows.Next() {
		record, err := scanBankRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Count returns the number of bank records matching the filters.
func (r *BankRecordRepository) Count(ctx context.Context, source string, filters domain.BankRecordFilters) (int64, error) {
	query, args := buildBankRecordQuery("SELECT COUNT(*) FROM bank_transactions", source, filters)
	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bank_transactions: %w", err)
	}
	return count, nil
}

// GetByID retrieves a bank record by its ID
func (r *BankRecordRepository) GetByID(ctx context.Context, id int64) (*domain.BankTransactionRecord, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+bankRecordColumns+" FROM bank_transactions WHERE id = $1", id)
	record, err := scanBankRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrBankRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

// Update applies a partial update to one bank record. The metadata map,
// when present, replaces the stored JSONB value; the service layer owns
// the read-merge-write cycle that preserves unrelated keys.
func (r *BankRecordRepository) Update(ctx context.Context, id int64, patch domain.BankRecordPatch) error {
	var metadata any
	if patch.Metadata != nil {
		metadata = map[string]any(patch.Metadata)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE bank_transactions
		SET reconciled = COALESCE($2, reconciled),
		    metadata = COALESCE($3, metadata),
		    updated_at = now()
		WHERE id = $1`,
		id, patch.Reconciled, metadata)
	if err != nil {
		return fmt.Errorf("update bank_transactions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBankRecordNotFound
	}
	return nil
}

func buildBankRecordQuery(base, source string, filters domain.BankRecordFilters) (string, []any) {
	query := base + " WHERE source = $1"
	args := []any{source}
	if filters.Reconciled != nil {
		args = append(args, *filters.Reconciled)
		query += fmt.Sprintf(" AND reconciled = $%d", len(args))
	}
	if filters.CreditsOnly {
		query += " AND amount > 0"
	}
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		query += fmt.Sprintf(" AND transaction_date >= $%d", len(args))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		query += fmt.Sprintf(" AND transaction_date <= $%d", len(args))
	}
	return query, args
}

func scanBankRecord(row pgx.Row) (*domain.BankTransactionRecord, error) {
	var record domain.BankTransactionRecord
	var transactionDate pgtype.Date
	var amount pgtype.Numeric
	var metadata map[string]any

	if err := row.Scan(
		&record.ID,
		&record.Source,
		&transactionDate,
		&amount,
		&record.Description,
		&record.Currency,
		&record.Reconciled,
		&metadata,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.TransactionDate = transactionDate.Time
	record.Amount = pgNumericToDecimal(amount)
	if metadata != nil {
		record.Metadata = domain.Metadata(metadata)
	}
	return &record, nil
}
