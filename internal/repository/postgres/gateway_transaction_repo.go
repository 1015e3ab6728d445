package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
)

// GatewayTransactionRepository implements domain.GatewayTransactionRepository using PostgreSQL
type GatewayTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewGatewayTransactionRepository creates a new GatewayTransactionRepository
func NewGatewayTransactionRepository(pool *pgxpool.Pool) *GatewayTransactionRepository {
	return &GatewayTransactionRepository{pool: pool}
}

// FetchPage retrieves one page of gateway export rows for a source.
func (r *GatewayTransactionRepository) FetchPage(ctx context.Context, source string, offset, limit int) ([]*domain.GatewayTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, transaction_id, settlement_date, amount, settlement_amount, fee,
		       currency, merchant_account_id, card_type, customer_name, customer_email,
		       order_id, product_id
		FROM gateway_transactions
		WHERE source = $1
		ORDER BY settlement_date, id
		LIMIT $2 OFFSET $3`,
		source, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query gateway_transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.GatewayTransaction
	for rows.Next() {
		var t domain.GatewayTransaction
		var settlementDate pgtype.Date
		var amount, settlementAmount, fee pgtype.Numeric
		var currency, merchant, cardType, name, email, orderID, productID pgtype.Text

		if err := rows.Scan(
			&t.ID,
			&t.Source,
			&t.TransactionID,
			&settlementDate,
			&amount,
			&settlementAmount,
			&fee,
			&currency,
			&merchant,
			&cardType,
			&name,
			&email,
			&orderID,
			&productID,
		); err != nil {
			return nil, err
		}

		t.SettlementDate = settlementDate.Time
		t.Amount = pgNumericToDecimal(amount)
		t.SettlementAmount = pgNumericToDecimalPtr(settlementAmount)
		t.Fee = pgNumericToDecimalPtr(fee)
		t.Currency = pgTextToStringPtr(currency)
		t.MerchantAccountID = pgTextToStringPtr(merchant)
		t.CardType = pgTextToStringPtr(cardType)
		t.CustomerName = pgTextToStringPtr(name)
		t.CustomerEmail = pgTextToStringPtr(email)
		t.OrderID = pgTextToStringPtr(orderID)
		t.ProductID = pgTextToStringPtr(productID)
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}
