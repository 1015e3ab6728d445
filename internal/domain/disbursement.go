package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisbursementGroup is one expected bank deposit from one gateway on one
// date, derived by summing the settlement batch that disburses together.
// Groups are rebuilt from scratch every run, never partially updated.
type DisbursementGroup struct {
	Source         string          `json:"source"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reference      string          `json:"reference"`
	Count          int             `json:"count"`
	TransactionIDs []string        `json:"transactionIds"`
	CustomerNames  []string        `json:"customerNames,omitempty"`
	CustomerEmails []string        `json:"customerEmails,omitempty"`
	OrderIDs       []string        `json:"orderIds,omitempty"`
	Products       []string        `json:"products,omitempty"`
	FeeTotal       decimal.Decimal `json:"feeTotal"`
}

// HasFees reports whether any constituent carried an explicit fee.
func (g *DisbursementGroup) HasFees() bool {
	return g.FeeTotal.IsPositive()
}

// NetAmount is the group total minus recorded fees, the figure banks
// deposit for gateways that settle net.
func (g *DisbursementGroup) NetAmount() decimal.Decimal {
	return g.Amount.Sub(g.FeeTotal)
}
