package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDisbursementGroup_NetAmount(t *testing.T) {
	group := DisbursementGroup{
		Amount:   decimal.RequireFromString("105.00"),
		FeeTotal: decimal.RequireFromString("5.00"),
	}

	if !group.HasFees() {
		t.Error("Expected HasFees with a positive fee total")
	}
	if !group.NetAmount().Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("Expected net 100.00, got %s", group.NetAmount())
	}
}

func TestDisbursementGroup_NoFees(t *testing.T) {
	group := DisbursementGroup{Amount: decimal.RequireFromString("105.00")}

	if group.HasFees() {
		t.Error("Expected HasFees false with zero fee total")
	}
	if !group.NetAmount().Equal(group.Amount) {
		t.Errorf("Expected net to equal gross, got %s", group.NetAmount())
	}
}

func TestMatchLevel_Tag(t *testing.T) {
	tests := []struct {
		level    MatchLevel
		expected string
	}{
		{LevelExactDateAmount, "level_1"},
		{LevelAmountCluster, "level_5"},
		{LevelCrossGateway, "level_8"},
	}

	for _, tt := range tests {
		if got := tt.level.Tag(); got != tt.expected {
			t.Errorf("Tag() for level %d = %s, want %s", int(tt.level), got, tt.expected)
		}
	}
}
