package service

import (
	"context"

	"github.com/veldt/ledgerdesk-backend/internal/domain"
)

// BankRecordService exposes the bank ledger read surface for operators.
type BankRecordService struct {
	bankRepo domain.BankRecordRepository
}

// NewBankRecordService creates a new BankRecordService
func NewBankRecordService(bankRepo domain.BankRecordRepository) *BankRecordService {
	return &BankRecordService{bankRepo: bankRepo}
}

// List returns one page of bank records for a source.
func (s *BankRecordService) List(ctx context.Context, source string, filters domain.BankRecordFilters, page, pageSize int) (*domain.PaginatedBankRecords, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = domain.DefaultPageSize
	}
	if pageSize > domain.MaxPageSize {
		pageSize = domain.MaxPageSize
	}

	total, err := s.bankRepo.Count(ctx, source, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.bankRepo.FetchPage(ctx, source, filters, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedBankRecords{
		Data:       rows,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}
