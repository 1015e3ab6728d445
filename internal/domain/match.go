package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MatchLevel identifies the strategy that produced a match. Lower levels
// carry stronger evidence.
type MatchLevel int

const (
	LevelExactDateAmount  MatchLevel = 1
	LevelDateRange        MatchLevel = 2
	LevelGatewayAmount    MatchLevel = 3
	LevelWideDateGateway  MatchLevel = 4
	LevelAmountCluster    MatchLevel = 5
	LevelPercentTolerance MatchLevel = 6
	LevelNetOfFees        MatchLevel = 7
	LevelCrossGateway     MatchLevel = 8
)

// Tag is the level's counter key in run summaries.
func (l MatchLevel) Tag() string {
	return fmt.Sprintf("level_%d", int(l))
}

// MatchType names the strategy variant within a level.
type MatchType string

const (
	MatchTypeExact         MatchType = "exact_date_amount"
	MatchTypeDateRange     MatchType = "date_range"
	MatchTypeGatewayAmount MatchType = "description_gateway"
	MatchTypeWideDate      MatchType = "wide_date_description"
	MatchTypeClusterPair   MatchType = "cluster_pair"
	MatchTypeClusterTriple MatchType = "cluster_triple"
	MatchTypePercent       MatchType = "percentage_tolerance"
	MatchTypeNetOfFees     MatchType = "net_of_fees"
	MatchTypeCrossGateway  MatchType = "cross_gateway"
)

// MatchResult records one bank row explained by one disbursement group,
// or by a small cluster of them. Immutable once produced within a run.
type MatchResult struct {
	BankRecordID    int64           `json:"bankTransactionId"`
	BankSource      string          `json:"bankSource"`
	Date            time.Time       `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Level           MatchLevel      `json:"level"`
	MatchType       MatchType       `json:"matchType"`
	Reference       string          `json:"reference"`
	Gateway         string          `json:"gateway"`
	Confidence      float64         `json:"confidence"`
	GroupAmount     decimal.Decimal `json:"groupAmount"`
	TransactionIDs  []string        `json:"transactionIds,omitempty"`
	CustomerNames   []string        `json:"customerNames,omitempty"`
	CustomerEmails  []string        `json:"customerEmails,omitempty"`
	OrderIDs        []string        `json:"orderIds,omitempty"`
}
