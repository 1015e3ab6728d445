package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationInput is one invocation of the deep reconciliation
// batch. DryRun defaults to true at the API layer.
type ReconciliationInput struct {
	DryRun bool
	Banks  []string
}

// RunSummary aggregates one run for observability.
type RunSummary struct {
	BankCreditsUnreconciled int             `json:"bankCreditsUnreconciled"`
	DisbursementGroups      int             `json:"disbursementGroups"`
	Matched                 int             `json:"matched"`
	MatchRate               string          `json:"matchRate"`
	TotalValue              decimal.Decimal `json:"totalValue"`
	ByLevel                 map[string]int  `json:"byLevel"`
	BySource                map[string]int  `json:"bySource"`
	Updated                 int             `json:"updated"`
	Errors                  []string        `json:"errors,omitempty"`
}

// ReconciliationResult is the engine's full output for one run.
type ReconciliationResult struct {
	RunID   uuid.UUID     `json:"runId"`
	DryRun  bool          `json:"dryRun"`
	Summary RunSummary    `json:"summary"`
	Matches []MatchResult `json:"matches"`
}
