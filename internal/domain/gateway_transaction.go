package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayTransaction is one row from a payment gateway export: a single
// charge for transaction-granular gateways, or a whole payout for
// payout-granular ones. Transaction IDs are gateway-scoped; uniqueness
// is (source, transaction id).
type GatewayTransaction struct {
	ID                int64
	Source            string
	TransactionID     string
	SettlementDate    time.Time
	Amount            decimal.Decimal
	SettlementAmount  *decimal.Decimal
	Fee               *decimal.Decimal
	Currency          *string
	MerchantAccountID *string
	CardType          *string
	CustomerName      *string
	CustomerEmail     *string
	OrderID           *string
	ProductID         *string
}

// SettledAmount returns the explicit settlement amount when the export
// carries one, falling back to the raw amount.
func (t *GatewayTransaction) SettledAmount() decimal.Decimal {
	if t.SettlementAmount != nil {
		return *t.SettlementAmount
	}
	return t.Amount
}

type GatewayTransactionRepository interface {
	FetchPage(ctx context.Context, source string, offset, limit int) ([]*GatewayTransaction, error)
}
