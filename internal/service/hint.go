package service

import (
	"strings"

	"github.com/veldt/ledgerdesk-backend/internal/domain"
)

// HintDetector classifies a bank row's free-text description into a
// probable originating gateway. It is a tie-break signal, not a hard
// filter, except at the levels that explicitly restrict to the hinted
// gateway.
type HintDetector struct {
	rules []domain.GatewayKeywords
}

// NewHintDetector creates a detector over an ordered rule list.
func NewHintDetector(rules []domain.GatewayKeywords) *HintDetector {
	return &HintDetector{rules: rules}
}

// Detect returns the first gateway whose keyword set matches the
// description, case-insensitively. Rule order matters: more specific
// markers must precede the generic ones they would otherwise shadow.
func (d *HintDetector) Detect(description string) (string, bool) {
	desc := strings.ToLower(description)
	for _, rule := range d.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) {
				return rule.Gateway, true
			}
		}
	}
	return "", false
}
