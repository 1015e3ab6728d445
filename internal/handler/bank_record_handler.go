package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
	"github.com/veldt/ledgerdesk-backend/internal/service"
)

// BankRecordHandler handles bank ledger read requests
type BankRecordHandler struct {
	bankRecordService *service.BankRecordService
}

// NewBankRecordHandler creates a new BankRecordHandler
func NewBankRecordHandler(bankRecordService *service.BankRecordService) *BankRecordHandler {
	return &BankRecordHandler{bankRecordService: bankRecordService}
}

// List returns a page of bank records for a source
func (h *BankRecordHandler) List(c echo.Context) error {
	source := c.QueryParam("source")
	if source == "" {
		return NewValidationError(c, "Query parameter 'source' is required", nil)
	}

	filters := domain.BankRecordFilters{}
	if v := c.QueryParam("reconciled"); v != "" {
		reconciled, err := strconv.ParseBool(v)
		if err != nil {
			return NewValidationError(c, "Invalid 'reconciled' value", nil)
		}
		filters.Reconciled = &reconciled
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))

	result, err := h.bankRecordService.List(c.Request().Context(), source, filters, page, pageSize)
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("Failed to list bank records")
		return NewInternalError(c, "Failed to list bank records")
	}
	return c.JSON(http.StatusOK, result)
}
