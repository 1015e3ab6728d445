package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// fetchPageSize is the record-store page size used by the fetch phase.
// A short page signals end-of-data.
const fetchPageSize = 500

// DisbursementService turns raw gateway export rows into settlement-level
// disbursement groups, one group per expected bank deposit.
type DisbursementService struct {
	gatewayRepo  domain.GatewayTransactionRepository
	homeCurrency string
}

// NewDisbursementService creates a new DisbursementService
func NewDisbursementService(gatewayRepo domain.GatewayTransactionRepository) *DisbursementService {
	return &DisbursementService{
		gatewayRepo:  gatewayRepo,
		homeCurrency: domain.HomeCurrency,
	}
}

// BuildGroups fetches the full unreconciled export for each gateway and
// aggregates it into disbursement groups. Per-gateway fetches run
// concurrently; any fetch error is fatal for the whole build. The
// result is fully regenerated each call.
func (s *DisbursementService) BuildGroups(ctx context.Context, gateways []string) ([]*domain.DisbursementGroup, error) {
	perGateway := make([][]*domain.GatewayTransaction, len(gateways))

	g, gctx := errgroup.WithContext(ctx)
	for i, gateway := range gateways {
		i, gateway := i, gateway
		g.Go(func() error {
			rows, err := s.fetchAll(gctx, gateway)
			if err != nil {
				return fmt.Errorf("fetch %s export: %w", gateway, err)
			}
			perGateway[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var groups []*domain.DisbursementGroup
	for i, gateway := range gateways {
		if domain.PayoutGranularGateways[gateway] {
			groups = append(groups, s.payoutGroups(gateway, perGateway[i])...)
		} else {
			groups = append(groups, s.aggregate(perGateway[i])...)
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Source != groups[j].Source {
			return groups[i].Source < groups[j].Source
		}
		if !groups[i].Date.Equal(groups[j].Date) {
			return groups[i].Date.Before(groups[j].Date)
		}
		return groups[i].Reference < groups[j].Reference
	})

	return groups, nil
}

func (s *DisbursementService) fetchAll(ctx context.Context, gateway string) ([]*domain.GatewayTransaction, error) {
	var all []*domain.GatewayTransaction
	offset := 0
	for {
		page, err := s.gatewayRepo.FetchPage(ctx, gateway, offset, fetchPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < fetchPageSize {
			return all, nil
		}
		offset += fetchPageSize
	}
}

// groupKey is the settlement batch key for transaction-granular
// gateways: transactions sharing a date, merchant account, and
// card-network variant disburse together.
type groupKey struct {
	date     string
	merchant string
	premium  bool
}

type groupAccumulator struct {
	group  *domain.DisbursementGroup
	txIDs  map[string]bool
	names  map[string]bool
	emails map[string]bool
	orders map[string]bool
	prods  map[string]bool
}

func (s *DisbursementService) aggregate(rows []*domain.GatewayTransaction) []*domain.DisbursementGroup {
	accs := make(map[groupKey]*groupAccumulator)
	var order []groupKey

	for _, row := range rows {
		if row.SettlementDate.IsZero() {
			log.Warn().Str("source", row.Source).Str("transaction_id", row.TransactionID).
				Msg("Skipping gateway row with missing settlement date")
			continue
		}

		merchant := ""
		if row.MerchantAccountID != nil {
			merchant = *row.MerchantAccountID
		}
		premium := isPremiumCard(row.CardType)
		key := groupKey{
			date:     row.SettlementDate.Format("2006-01-02"),
			merchant: merchant,
			premium:  premium,
		}

		acc, ok := accs[key]
		if !ok {
			source := row.Source
			if premium {
				source = row.Source + "_amex"
			}
			acc = &groupAccumulator{
				group: &domain.DisbursementGroup{
					Source:    source,
					Date:      row.SettlementDate,
					Currency:  s.merchantCurrency(merchant),
					Reference: fmt.Sprintf("%s:%s:%s", source, key.date, merchant),
				},
				txIDs:  make(map[string]bool),
				names:  make(map[string]bool),
				emails: make(map[string]bool),
				orders: make(map[string]bool),
				prods:  make(map[string]bool),
			}
			accs[key] = acc
			order = append(order, key)
		}

		acc.group.Amount = acc.group.Amount.Add(row.SettledAmount())
		acc.group.Count++
		addUnique(&acc.group.TransactionIDs, acc.txIDs, row.TransactionID)
		if row.CustomerName != nil {
			addUnique(&acc.group.CustomerNames, acc.names, *row.CustomerName)
		}
		if row.CustomerEmail != nil {
			addUnique(&acc.group.CustomerEmails, acc.emails, *row.CustomerEmail)
		}
		if row.OrderID != nil {
			addUnique(&acc.group.OrderIDs, acc.orders, *row.OrderID)
		}
		if row.ProductID != nil {
			addUnique(&acc.group.Products, acc.prods, *row.ProductID)
		}
		if row.Fee != nil {
			acc.group.FeeTotal = acc.group.FeeTotal.Add(*row.Fee)
		}
	}

	groups := make([]*domain.DisbursementGroup, 0, len(order))
	for _, key := range order {
		g := accs[key].group
		g.Amount = g.Amount.Round(2)
		g.FeeTotal = g.FeeTotal.Round(2)
		groups = append(groups, g)
	}
	return groups
}

// payoutGroups emits one group per row for gateways whose export is
// already payout-granular. Enrichment sets are not resolvable at that
// granularity and stay empty.
func (s *DisbursementService) payoutGroups(gateway string, rows []*domain.GatewayTransaction) []*domain.DisbursementGroup {
	groups := make([]*domain.DisbursementGroup, 0, len(rows))
	for _, row := range rows {
		if row.SettlementDate.IsZero() {
			log.Warn().Str("source", gateway).Str("transaction_id", row.TransactionID).
				Msg("Skipping payout row with missing settlement date")
			continue
		}
		currency := s.homeCurrency
		if row.Currency != nil && *row.Currency != "" {
			currency = strings.ToUpper(*row.Currency)
		}
		group := &domain.DisbursementGroup{
			Source:         gateway,
			Date:           row.SettlementDate,
			Amount:         row.SettledAmount().Round(2),
			Currency:       currency,
			Reference:      row.TransactionID,
			Count:          1,
			TransactionIDs: []string{row.TransactionID},
		}
		if row.Fee != nil {
			group.FeeTotal = row.Fee.Round(2)
		}
		groups = append(groups, group)
	}
	return groups
}

// merchantCurrency infers a currency from the merchant account id's
// textual marker, defaulting to the home currency.
func (s *DisbursementService) merchantCurrency(merchant string) string {
	m := strings.ToLower(merchant)
	for _, cur := range []string{"eur", "usd", "gbp", "aud", "cad"} {
		if strings.Contains(m, cur) {
			return strings.ToUpper(cur)
		}
	}
	return s.homeCurrency
}

func isPremiumCard(cardType *string) bool {
	if cardType == nil {
		return false
	}
	ct := strings.ToLower(*cardType)
	return strings.Contains(ct, "amex") || strings.Contains(ct, "american express")
}

func addUnique(dst *[]string, seen map[string]bool, value string) {
	if value == "" || seen[value] {
		return
	}
	seen[value] = true
	*dst = append(*dst, value)
}
