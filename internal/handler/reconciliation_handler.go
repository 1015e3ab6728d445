package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
	"github.com/veldt/ledgerdesk-backend/internal/service"
)

// ReconciliationHandler handles reconciliation HTTP requests
type ReconciliationHandler struct {
	reconciliationService *service.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliationService *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
	}
}

// RunRequest represents the JSON request for starting a reconciliation run
type RunRequest struct {
	DryRun *bool    `json:"dryRun"`
	Banks  []string `json:"banks,omitempty"`
}

// SummaryResponse represents the run summary in JSON form
type SummaryResponse struct {
	BankCreditsUnreconciled int            `json:"bankCreditsUnreconciled"`
	DisbursementGroups      int            `json:"disbursementGroups"`
	Matched                 int            `json:"matched"`
	MatchRate               string         `json:"matchRate"`
	TotalValue              string         `json:"totalValue"`
	ByLevel                 map[string]int `json:"byLevel"`
	BySource                map[string]int `json:"bySource"`
	Updated                 int            `json:"updated"`
	Errors                  []string       `json:"errors,omitempty"`
}

// MatchResponse represents one match in JSON form
type MatchResponse struct {
	BankTransactionID int64    `json:"bankTransactionId"`
	BankSource        string   `json:"bankSource"`
	Date              string   `json:"date"`
	Amount            string   `json:"amount"`
	Description       string   `json:"description"`
	Level             int      `json:"level"`
	MatchType         string   `json:"matchType"`
	Reference         string   `json:"reference"`
	Gateway           string   `json:"gateway"`
	Confidence        float64  `json:"confidence"`
	GroupAmount       string   `json:"groupAmount"`
	TransactionIDs    []string `json:"transactionIds,omitempty"`
}

// RunResponse represents the JSON response for a reconciliation run
type RunResponse struct {
	Success bool            `json:"success"`
	RunID   string          `json:"runId"`
	DryRun  bool            `json:"dryRun"`
	Summary SummaryResponse `json:"summary"`
	Matches []MatchResponse `json:"matches"`
}

// Run starts a reconciliation run
func (h *ReconciliationHandler) Run(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	// Dry run unless explicitly disabled
	input := domain.ReconciliationInput{
		DryRun: true,
		Banks:  req.Banks,
	}
	if req.DryRun != nil {
		input.DryRun = *req.DryRun
	}

	result, err := h.reconciliationService.Run(c.Request().Context(), input)
	if err != nil {
		log.Error().Err(err).Bool("dry_run", input.DryRun).Msg("Reconciliation run failed")
		return h.handleServiceError(c, err)
	}

	matches := make([]MatchResponse, len(result.Matches))
	for i, m := range result.Matches {
		matches[i] = MatchResponse{
			BankTransactionID: m.BankRecordID,
			BankSource:        m.BankSource,
			Date:              m.Date.Format("2006-01-02"),
			Amount:            m.Amount.StringFixed(2),
			Description:       m.Description,
			Level:             int(m.Level),
			MatchType:         string(m.MatchType),
			Reference:         m.Reference,
			Gateway:           m.Gateway,
			Confidence:        m.Confidence,
			GroupAmount:       m.GroupAmount.StringFixed(2),
			TransactionIDs:    m.TransactionIDs,
		}
	}

	return c.JSON(http.StatusOK, RunResponse{
		Success: true,
		RunID:   result.RunID.String(),
		DryRun:  result.DryRun,
		Summary: SummaryResponse{
			BankCreditsUnreconciled: result.Summary.BankCreditsUnreconciled,
			DisbursementGroups:      result.Summary.DisbursementGroups,
			Matched:                 result.Summary.Matched,
			MatchRate:               result.Summary.MatchRate,
			TotalValue:              result.Summary.TotalValue.StringFixed(2),
			ByLevel:                 result.Summary.ByLevel,
			BySource:                result.Summary.BySource,
			Updated:                 result.Summary.Updated,
			Errors:                  result.Summary.Errors,
		},
		Matches: matches,
	})
}

// DisbursementResponse represents one disbursement group in JSON form
type DisbursementResponse struct {
	Source    string `json:"source"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	Count     int    `json:"count"`
	FeeTotal  string `json:"feeTotal"`
}

// Disbursements returns the current disbursement groups without matching
func (h *ReconciliationHandler) Disbursements(c echo.Context) error {
	groups, err := h.reconciliationService.PreviewDisbursements(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build disbursement preview")
		return h.handleServiceError(c, err)
	}

	out := make([]DisbursementResponse, len(groups))
	for i, g := range groups {
		out[i] = DisbursementResponse{
			Source:    g.Source,
			Date:      g.Date.Format("2006-01-02"),
			Amount:    g.Amount.StringFixed(2),
			Currency:  g.Currency,
			Reference: g.Reference,
			Count:     g.Count,
			FeeTotal:  g.FeeTotal.StringFixed(2),
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"disbursementGroups": len(out),
		"data":               out,
	})
}

// handleServiceError maps domain errors to appropriate HTTP responses
func (h *ReconciliationHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownBankSource):
		return NewValidationError(c, err.Error(), nil)
	default:
		// Fetch failures are fatal for the run; surface a single
		// top-level error instead of a partial summary.
		return NewUpstreamError(c, "Reconciliation run failed: "+err.Error())
	}
}
