package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
	"github.com/veldt/ledgerdesk-backend/internal/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	dryRunMatchCap = 50
	applyMatchCap  = 20
	applyErrorCap  = 25
)

// ReportArchiver persists an apply-mode run report for audit.
type ReportArchiver interface {
	Store(ctx context.Context, key string, report any) error
}

// ReconciliationService runs the deep reconciliation batch: parallel
// fetch, disbursement aggregation, progressive matching, and the
// apply step. Each invocation is request-scoped; no state survives
// between runs.
type ReconciliationService struct {
	bankRepo       domain.BankRecordRepository
	disbursements  *DisbursementService
	engine         *MatchingEngine
	sources        map[string]domain.BankSourceConfig
	defaultBanks   []string
	eventPublisher websocket.EventPublisher
	archiver       ReportArchiver
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(bankRepo domain.BankRecordRepository, disbursements *DisbursementService, engine *MatchingEngine, sources map[string]domain.BankSourceConfig) *ReconciliationService {
	return &ReconciliationService{
		bankRepo:      bankRepo,
		disbursements: disbursements,
		engine:        engine,
		sources:       sources,
	}
}

// SetDefaultBanks overrides the run set used when a request names no
// banks. Every entry must be a known bank source.
func (s *ReconciliationService) SetDefaultBanks(banks []string) {
	s.defaultBanks = banks
}

// SetEventPublisher sets the publisher for run lifecycle events.
func (s *ReconciliationService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetReportArchiver sets the archive sink for apply-mode run reports.
func (s *ReconciliationService) SetReportArchiver(archiver ReportArchiver) {
	s.archiver = archiver
}

func (s *ReconciliationService) publish(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// Run executes one reconciliation batch. A fetch failure aborts the
// whole run: an incomplete disbursement set would silently under-match,
// which is worse than refusing to run.
func (s *ReconciliationService) Run(ctx context.Context, input domain.ReconciliationInput) (*domain.ReconciliationResult, error) {
	banks := input.Banks
	if len(banks) == 0 {
		banks = s.defaultBanks
	}
	if len(banks) == 0 {
		banks = defaultSourceNames(s.sources)
	}
	gateways := make(map[string]bool)
	for _, bank := range banks {
		cfg, ok := s.sources[bank]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBankSource, bank)
		}
		for _, gw := range cfg.Gateways {
			gateways[fetchSource(gw)] = true
		}
	}
	gatewayList := make([]string, 0, len(gateways))
	for gw := range gateways {
		gatewayList = append(gatewayList, gw)
	}
	sort.Strings(gatewayList)

	runID := uuid.New()
	started := time.Now()
	log.Info().Str("run_id", runID.String()).Bool("dry_run", input.DryRun).
		Strs("banks", banks).Msg("Starting reconciliation run")
	s.publish(websocket.ReconciliationStarted(map[string]any{
		"runId":  runID.String(),
		"dryRun": input.DryRun,
		"banks":  banks,
	}))

	// Fetch phase: the bank-row pulls and the gateway export pulls are
	// independent and run concurrently. Matching does not start until
	// every set is fully in memory.
	perBank := make([][]*domain.BankTransactionRecord, len(banks))
	var groups []*domain.DisbursementGroup

	g, gctx := errgroup.WithContext(ctx)
	for i, bank := range banks {
		i, bank := i, bank
		g.Go(func() error {
			rows, err := s.fetchUnreconciledCredits(gctx, bank)
			if err != nil {
				return fmt.Errorf("fetch bank rows for %s: %w", bank, err)
			}
			perBank[i] = rows
			return nil
		})
	}
	g.Go(func() error {
		built, err := s.disbursements.BuildGroups(gctx, gatewayList)
		if err != nil {
			return err
		}
		groups = built
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Reconciliation fetch phase failed")
		return nil, err
	}

	var bankRows []*domain.BankTransactionRecord
	for _, rows := range perBank {
		bankRows = append(bankRows, rows...)
	}

	matches := s.engine.Run(bankRows, groups)
	summary := buildSummary(bankRows, groups, matches)

	if !input.DryRun {
		summary.Updated, summary.Errors = s.apply(ctx, matches)
	}

	result := &domain.ReconciliationResult{
		RunID:   runID,
		DryRun:  input.DryRun,
		Summary: summary,
		Matches: capMatches(matches, input.DryRun),
	}

	log.Info().Str("run_id", runID.String()).
		Int("bank_credits", summary.BankCreditsUnreconciled).
		Int("groups", summary.DisbursementGroups).
		Int("matched", summary.Matched).
		Int("updated", summary.Updated).
		Dur("elapsed", time.Since(started)).
		Msg("Reconciliation run complete")
	s.publish(websocket.ReconciliationCompleted(map[string]any{
		"runId":     runID.String(),
		"dryRun":    input.DryRun,
		"matched":   summary.Matched,
		"matchRate": summary.MatchRate,
		"updated":   summary.Updated,
	}))

	if !input.DryRun && s.archiver != nil {
		key := fmt.Sprintf("reconciliation/%s.json", runID)
		if err := s.archiver.Store(ctx, key, result); err != nil {
			log.Warn().Err(err).Str("run_id", runID.String()).Msg("Failed to archive run report")
		}
	}

	return result, nil
}

// PreviewDisbursements aggregates the current unreconciled gateway
// exports into groups without running any matching. Read-only.
func (s *ReconciliationService) PreviewDisbursements(ctx context.Context) ([]*domain.DisbursementGroup, error) {
	gateways := make(map[string]bool)
	for _, cfg := range s.sources {
		for _, gw := range cfg.Gateways {
			gateways[fetchSource(gw)] = true
		}
	}
	gatewayList := make([]string, 0, len(gateways))
	for gw := range gateways {
		gatewayList = append(gatewayList, gw)
	}
	sort.Strings(gatewayList)
	return s.disbursements.BuildGroups(ctx, gatewayList)
}

func (s *ReconciliationService) fetchUnreconciledCredits(ctx context.Context, source string) ([]*domain.BankTransactionRecord, error) {
	unreconciled := false
	filters := domain.BankRecordFilters{Reconciled: &unreconciled, CreditsOnly: true}

	var all []*domain.BankTransactionRecord
	offset := 0
	for {
		page, err := s.bankRepo.FetchPage(ctx, source, filters, offset, fetchPageSize)
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

// apply writes matches back. Each row is its own read-merge-write
// unit: a failure is recorded and the rest of the batch proceeds. The
// run is idempotent at the row level because every fetch filters on
// reconciled=false, not through any explicit already-processed check.
func (s *ReconciliationService) apply(ctx context.Context, matches []domain.MatchResult) (int, []string) {
	updated := 0
	var errs []string
	for _, m := range matches {
		if err := s.applyOne(ctx, m); err != nil {
			log.Warn().Err(err).Int64("bank_transaction_id", m.BankRecordID).Msg("Apply failed for match")
			if len(errs) < applyErrorCap {
				errs = append(errs, fmt.Sprintf("bank row %d: %v", m.BankRecordID, err))
			}
			continue
		}
		updated++
	}
	return updated, errs
}

func (s *ReconciliationService) applyOne(ctx context.Context, m domain.MatchResult) error {
	row, err := s.bankRepo.GetByID(ctx, m.BankRecordID)
	if err != nil {
		return err
	}

	evidence := domain.Metadata{
		domain.MetaKeyReference:    m.Reference,
		domain.MetaKeyConfidence:   m.Confidence,
		domain.MetaKeyLevel:        int(m.Level),
		domain.MetaKeyMatchType:    string(m.MatchType),
		domain.MetaKeyReconciledAt: time.Now().UTC().Format(time.RFC3339),
	}
	if len(m.TransactionIDs) > 0 {
		evidence[domain.MetaKeyTransactionIDs] = m.TransactionIDs
	}
	if len(m.CustomerNames) > 0 {
		evidence[domain.MetaKeyCustomerNames] = m.CustomerNames
	}
	if len(m.CustomerEmails) > 0 {
		evidence[domain.MetaKeyCustomerEmails] = m.CustomerEmails
	}
	if len(m.OrderIDs) > 0 {
		evidence[domain.MetaKeyOrderIDs] = m.OrderIDs
	}

	reconciled := true
	return s.bankRepo.Update(ctx, m.BankRecordID, domain.BankRecordPatch{
		Reconciled: &reconciled,
		Metadata:   row.Metadata.Merge(evidence),
	})
}

func buildSummary(bankRows []*domain.BankTransactionRecord, groups []*domain.DisbursementGroup, matches []domain.MatchResult) domain.RunSummary {
	summary := domain.RunSummary{
		BankCreditsUnreconciled: len(bankRows),
		DisbursementGroups:      len(groups),
		Matched:                 len(matches),
		TotalValue:              decimal.Zero,
		ByLevel:                 make(map[string]int),
		BySource:                make(map[string]int),
	}
	for _, m := range matches {
		summary.TotalValue = summary.TotalValue.Add(m.Amount)
		summary.ByLevel[m.Level.Tag()]++
		summary.BySource[m.Gateway]++
	}
	summary.TotalValue = summary.TotalValue.Round(2)
	rate := 0.0
	if len(bankRows) > 0 {
		rate = float64(len(matches)) / float64(len(bankRows)) * 100
	}
	summary.MatchRate = fmt.Sprintf("%.1f%%", rate)
	return summary
}

func capMatches(matches []domain.MatchResult, dryRun bool) []domain.MatchResult {
	limit := applyMatchCap
	if dryRun {
		limit = dryRunMatchCap
	}
	if len(matches) > limit {
		return matches[:limit]
	}
	return matches
}

// fetchSource resolves a gateway tag to the source stored rows carry:
// derived settlement variants are fetched through their base gateway.
func fetchSource(gateway string) string {
	if base, ok := domain.DerivedGatewaySources[gateway]; ok {
		return base
	}
	return gateway
}

func defaultSourceNames(sources map[string]domain.BankSourceConfig) []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
