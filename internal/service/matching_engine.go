package service

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/veldt/ledgerdesk-backend/internal/domain"
)

// Amount tolerance bands per level, in currency units.
var (
	tolStrict = decimal.RequireFromString("0.10") // levels 1-2
	tolLoose  = decimal.RequireFromString("0.50") // levels 3-5 (pair), 7
	tolWide   = decimal.RequireFromString("1.00") // level 5 (triple), 8

	pctLowFloor  = decimal.NewFromInt(500)
	pctHighFloor = decimal.NewFromInt(5000)
	pctLow       = decimal.RequireFromString("0.01")
	pctHigh      = decimal.RequireFromString("0.02")
)

// TripleClusterSearchCap bounds the candidate set searched for
// three-group clusters: only the largest candidates by amount are
// considered, keeping the combinatorial cost fixed.
const TripleClusterSearchCap = 8

const descriptionSnippetLen = 80

// MatchingEngine is the 8-level progressive matcher. It is a greedy,
// priority-ordered heuristic, not an optimal-assignment solver: bank
// rows are processed date-descending and earlier rows get first claim
// on ambiguous candidates. The two consumption sets guarantee that no
// bank row and no disbursement reference is ever used twice in a run.
type MatchingEngine struct {
	sources map[string]domain.BankSourceConfig
	hints   *HintDetector
}

// NewMatchingEngine creates a new MatchingEngine
func NewMatchingEngine(sources map[string]domain.BankSourceConfig, hints *HintDetector) *MatchingEngine {
	return &MatchingEngine{sources: sources, hints: hints}
}

type engineState struct {
	matchedBank  map[int64]bool
	consumedRefs map[string]bool
}

// Run matches bank rows against disbursement groups. The engine is
// single-threaded over fully in-memory sets and performs no I/O.
func (e *MatchingEngine) Run(banks []*domain.BankTransactionRecord, groups []*domain.DisbursementGroup) []domain.MatchResult {
	rows := make([]*domain.BankTransactionRecord, len(banks))
	copy(rows, banks)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].TransactionDate.Equal(rows[j].TransactionDate) {
			return rows[i].TransactionDate.After(rows[j].TransactionDate)
		}
		return rows[i].ID < rows[j].ID
	})

	st := &engineState{
		matchedBank:  make(map[int64]bool),
		consumedRefs: make(map[string]bool),
	}

	var results []domain.MatchResult
	for _, row := range rows {
		if st.matchedBank[row.ID] || row.Reconciled || !row.Amount.IsPositive() {
			continue
		}
		cfg, ok := e.sources[row.Source]
		if !ok {
			continue
		}
		out, ok := e.matchRow(row, cfg, groups, st)
		if !ok {
			continue // unmatched rows are simply absent from the result list
		}
		st.matchedBank[row.ID] = true
		for _, ref := range out.refs {
			st.consumedRefs[ref] = true
		}
		results = append(results, out.result)
	}
	return results
}

// outcome carries a match plus every constituent reference to consume;
// for clusters that is each member, not just the merged reference.
type outcome struct {
	result domain.MatchResult
	refs   []string
}

type candidate struct {
	group   *domain.DisbursementGroup
	dayDist int
	diff    decimal.Decimal
}

func (e *MatchingEngine) matchRow(row *domain.BankTransactionRecord, cfg domain.BankSourceConfig, groups []*domain.DisbursementGroup, st *engineState) (outcome, bool) {
	bankAmount := row.Amount.Round(2)
	hint, hasHint := e.hints.Detect(row.Description)

	pool := e.buildCandidates(row, bankAmount, groups, st, func(g *domain.DisbursementGroup) bool {
		return g.Currency == cfg.Currency && cfg.AllowsGateway(g.Source)
	})

	if out, ok := e.matchExact(row, pool, hint, hasHint); ok {
		return out, true
	}
	if out, ok := e.matchDateRange(row, pool); ok {
		return out, true
	}
	if hasHint {
		if out, ok := e.matchGatewayAmount(row, pool, hint); ok {
			return out, true
		}
		if out, ok := e.matchWideDateGateway(row, pool, hint); ok {
			return out, true
		}
	}
	if out, ok := e.matchCluster(row, bankAmount, pool, hint, hasHint); ok {
		return out, true
	}
	if out, ok := e.matchPercent(row, bankAmount, pool, hint, hasHint); ok {
		return out, true
	}
	if out, ok := e.matchNetOfFees(row, bankAmount, pool); ok {
		return out, true
	}

	// Level 8 ignores the gateway allow-list: same currency only.
	crossPool := e.buildCandidates(row, bankAmount, groups, st, func(g *domain.DisbursementGroup) bool {
		return g.Currency == cfg.Currency
	})
	if out, ok := e.matchCrossGateway(row, crossPool); ok {
		return out, true
	}
	return outcome{}, false
}

func (e *MatchingEngine) buildCandidates(row *domain.BankTransactionRecord, bankAmount decimal.Decimal, groups []*domain.DisbursementGroup, st *engineState, keep func(*domain.DisbursementGroup) bool) []candidate {
	var cands []candidate
	for _, g := range groups {
		if st.consumedRefs[g.Reference] || !keep(g) {
			continue
		}
		cands = append(cands, candidate{
			group:   g,
			dayDist: dayDistance(row.TransactionDate, g.Date),
			diff:    bankAmount.Sub(g.Amount).Abs(),
		})
	}
	return cands
}

// Level 1: same day, amount within the strict band. A single candidate
// is full confidence; ties are resolved by gateway-hint preference,
// then nearest amount, at slightly reduced confidence.
func (e *MatchingEngine) matchExact(row *domain.BankTransactionRecord, pool []candidate, hint string, hasHint bool) (outcome, bool) {
	var cands []candidate
	for _, c := range pool {
		if c.dayDist == 0 && c.diff.LessThan(tolStrict) {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return outcome{}, false
	}
	if len(cands) == 1 {
		return singleOutcome(row, cands[0].group, domain.LevelExactDateAmount, domain.MatchTypeExact, 1.0), true
	}
	chosen := resolveAmbiguous(cands, hint, hasHint)
	return singleOutcome(row, chosen.group, domain.LevelExactDateAmount, domain.MatchTypeExact, 0.98), true
}

// Level 2: +/-3 day window, strict amount band. Confidence decays with
// the chosen candidate's day distance.
func (e *MatchingEngine) matchDateRange(row *domain.BankTransactionRecord, pool []candidate) (outcome, bool) {
	chosen, ok := closest(pool, func(c candidate) bool {
		return c.dayDist <= 3 && c.diff.LessThan(tolStrict)
	})
	if !ok {
		return outcome{}, false
	}
	conf := 0.95 - 0.02*float64(chosen.dayDist)
	return singleOutcome(row, chosen.group, domain.LevelDateRange, domain.MatchTypeDateRange, conf), true
}

// Level 3: unbounded date, loose amount band, restricted to the
// gateway the description hints at.
func (e *MatchingEngine) matchGatewayAmount(row *domain.BankTransactionRecord, pool []candidate, hint string) (outcome, bool) {
	chosen, ok := nearestAmount(pool, func(c candidate) bool {
		return c.group.Source == hint && c.diff.LessThan(tolLoose)
	})
	if !ok {
		return outcome{}, false
	}
	return singleOutcome(row, chosen.group, domain.LevelGatewayAmount, domain.MatchTypeGatewayAmount, 0.90), true
}

// Level 4: +/-7 day window, loose amount band, hinted gateway only.
func (e *MatchingEngine) matchWideDateGateway(row *domain.BankTransactionRecord, pool []candidate, hint string) (outcome, bool) {
	chosen, ok := closest(pool, func(c candidate) bool {
		return c.group.Source == hint && c.dayDist <= 7 && c.diff.LessThan(tolLoose)
	})
	if !ok {
		return outcome{}, false
	}
	conf := 0.85 - 0.01*float64(chosen.dayDist)
	return singleOutcome(row, chosen.group, domain.LevelWideDateGateway, domain.MatchTypeWideDate, conf), true
}

// Level 5: one bank deposit explained by the sum of 2-3 disbursement
// groups inside a +/-5 day window. Pairs are searched first; triples
// only when no pair qualifies, over a capped candidate set. When
// several disjoint clusters satisfy the tolerance, the one with the
// smallest absolute difference from the bank amount wins.
func (e *MatchingEngine) matchCluster(row *domain.BankTransactionRecord, bankAmount decimal.Decimal, pool []candidate, hint string, hasHint bool) (outcome, bool) {
	var window []candidate
	for _, c := range pool {
		if c.dayDist > 5 {
			continue
		}
		if hasHint && c.group.Source != hint {
			continue
		}
		window = append(window, c)
	}
	if len(window) < 2 {
		return outcome{}, false
	}
	sort.Slice(window, func(i, j int) bool {
		if !window[i].group.Date.Equal(window[j].group.Date) {
			return window[i].group.Date.Before(window[j].group.Date)
		}
		return window[i].group.Reference < window[j].group.Reference
	})

	if cluster, ok := bestCluster(window, bankAmount, 2, tolLoose); ok {
		return clusterOutcome(row, cluster, domain.MatchTypeClusterPair, 0.80), true
	}

	// Cap the triple search to the largest candidates by amount.
	byAmount := make([]candidate, len(window))
	copy(byAmount, window)
	sort.Slice(byAmount, func(i, j int) bool {
		if !byAmount[i].group.Amount.Equal(byAmount[j].group.Amount) {
			return byAmount[i].group.Amount.GreaterThan(byAmount[j].group.Amount)
		}
		return byAmount[i].group.Reference < byAmount[j].group.Reference
	})
	if len(byAmount) > TripleClusterSearchCap {
		byAmount = byAmount[:TripleClusterSearchCap]
	}
	if cluster, ok := bestCluster(byAmount, bankAmount, 3, tolWide); ok {
		return clusterOutcome(row, cluster, domain.MatchTypeClusterTriple, 0.75), true
	}
	return outcome{}, false
}

// Level 6: percentage tolerance for large deposits. Below the low
// floor no match is attempted at this level.
func (e *MatchingEngine) matchPercent(row *domain.BankTransactionRecord, bankAmount decimal.Decimal, pool []candidate, hint string, hasHint bool) (outcome, bool) {
	var tol decimal.Decimal
	switch {
	case bankAmount.GreaterThan(pctHighFloor):
		tol = bankAmount.Mul(pctHigh)
	case bankAmount.GreaterThan(pctLowFloor):
		tol = bankAmount.Mul(pctLow)
	default:
		return outcome{}, false
	}

	var cands []candidate
	for _, c := range pool {
		if c.dayDist <= 5 && c.diff.LessThan(tol) {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return outcome{}, false
	}
	chosen := resolveAmbiguous(cands, hint, hasHint)
	return singleOutcome(row, chosen.group, domain.LevelPercentTolerance, domain.MatchTypePercent, 0.70), true
}

// Level 7: the deposit equals a group's amount net of its recorded
// fees. Only groups with a nonzero fee total qualify.
func (e *MatchingEngine) matchNetOfFees(row *domain.BankTransactionRecord, bankAmount decimal.Decimal, pool []candidate) (outcome, bool) {
	var chosen candidate
	var bestDiff decimal.Decimal
	found := false
	for _, c := range pool {
		if c.dayDist > 5 || !c.group.HasFees() {
			continue
		}
		netDiff := bankAmount.Sub(c.group.NetAmount().Round(2)).Abs()
		if !netDiff.LessThan(tolLoose) {
			continue
		}
		if !found || netDiff.LessThan(bestDiff) ||
			(netDiff.Equal(bestDiff) && c.group.Reference < chosen.group.Reference) {
			chosen, bestDiff, found = c, netDiff, true
		}
	}
	if !found {
		return outcome{}, false
	}
	return singleOutcome(row, chosen.group, domain.LevelNetOfFees, domain.MatchTypeNetOfFees, 0.65), true
}

// Level 8: last-resort residual across every gateway in the same
// currency, ranked by amount difference weighted with day distance.
func (e *MatchingEngine) matchCrossGateway(row *domain.BankTransactionRecord, pool []candidate) (outcome, bool) {
	var chosen candidate
	bestScore := 0.0
	found := false
	for _, c := range pool {
		if c.dayDist > 7 || !c.diff.LessThan(tolWide) {
			continue
		}
		score := c.diff.InexactFloat64() + 0.1*float64(c.dayDist)
		if !found || score < bestScore ||
			(score == bestScore && c.group.Reference < chosen.group.Reference) {
			chosen, bestScore, found = c, score, true
		}
	}
	if !found {
		return outcome{}, false
	}
	return singleOutcome(row, chosen.group, domain.LevelCrossGateway, domain.MatchTypeCrossGateway, 0.55), true
}

// resolveAmbiguous applies the documented tie-break for levels with
// multiple qualifying candidates: gateway-hint preference first, then
// nearest amount, then reference order for full determinism.
func resolveAmbiguous(cands []candidate, hint string, hasHint bool) candidate {
	if hasHint {
		var hinted []candidate
		for _, c := range cands {
			if c.group.Source == hint {
				hinted = append(hinted, c)
			}
		}
		if len(hinted) > 0 {
			cands = hinted
		}
	}
	chosen := cands[0]
	for _, c := range cands[1:] {
		if c.diff.LessThan(chosen.diff) ||
			(c.diff.Equal(chosen.diff) && c.group.Reference < chosen.group.Reference) {
			chosen = c
		}
	}
	return chosen
}

// closest picks the qualifying candidate with the smallest day
// distance, breaking ties by amount difference, then reference.
func closest(pool []candidate, keep func(candidate) bool) (candidate, bool) {
	var chosen candidate
	found := false
	for _, c := range pool {
		if !keep(c) {
			continue
		}
		if !found {
			chosen, found = c, true
			continue
		}
		switch {
		case c.dayDist < chosen.dayDist:
			chosen = c
		case c.dayDist == chosen.dayDist && c.diff.LessThan(chosen.diff):
			chosen = c
		case c.dayDist == chosen.dayDist && c.diff.Equal(chosen.diff) && c.group.Reference < chosen.group.Reference:
			chosen = c
		}
	}
	return chosen, found
}

// nearestAmount picks the qualifying candidate with the smallest
// amount difference, breaking ties by reference.
func nearestAmount(pool []candidate, keep func(candidate) bool) (candidate, bool) {
	var chosen candidate
	found := false
	for _, c := range pool {
		if !keep(c) {
			continue
		}
		if !found || c.diff.LessThan(chosen.diff) ||
			(c.diff.Equal(chosen.diff) && c.group.Reference < chosen.group.Reference) {
			chosen, found = c, true
		}
	}
	return chosen, found
}

// bestCluster searches all size-k combinations of the candidate set
// and returns the one whose sum lands closest to the bank amount
// within the tolerance.
func bestCluster(cands []candidate, bankAmount decimal.Decimal, k int, tol decimal.Decimal) ([]*domain.DisbursementGroup, bool) {
	var best []*domain.DisbursementGroup
	var bestDiff decimal.Decimal
	found := false

	combo := make([]*domain.DisbursementGroup, 0, k)
	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(combo) == k {
			diff := bankAmount.Sub(sum.Round(2)).Abs()
			if diff.LessThan(tol) && (!found || diff.LessThan(bestDiff)) {
				best = append([]*domain.DisbursementGroup(nil), combo...)
				bestDiff = diff
				found = true
			}
			return
		}
		for i := start; i < len(cands); i++ {
			combo = append(combo, cands[i].group)
			walk(i+1, sum.Add(cands[i].group.Amount))
			combo = combo[:len(combo)-1]
		}
	}
	walk(0, decimal.Zero)
	return best, found
}

func singleOutcome(row *domain.BankTransactionRecord, g *domain.DisbursementGroup, level domain.MatchLevel, mtype domain.MatchType, conf float64) outcome {
	return outcome{
		result: domain.MatchResult{
			BankRecordID:   row.ID,
			BankSource:     row.Source,
			Date:           row.TransactionDate,
			Amount:         row.Amount.Round(2),
			Description:    snippet(row.Description),
			Level:          level,
			MatchType:      mtype,
			Reference:      g.Reference,
			Gateway:        g.Source,
			Confidence:     conf,
			GroupAmount:    g.Amount,
			TransactionIDs: g.TransactionIDs,
			CustomerNames:  g.CustomerNames,
			CustomerEmails: g.CustomerEmails,
			OrderIDs:       g.OrderIDs,
		},
		refs: []string{g.Reference},
	}
}

func clusterOutcome(row *domain.BankTransactionRecord, cluster []*domain.DisbursementGroup, mtype domain.MatchType, conf float64) outcome {
	refs := make([]string, 0, len(cluster))
	total := decimal.Zero
	var txIDs, names, emails, orders []string
	seenTx := make(map[string]bool)
	seenName := make(map[string]bool)
	seenEmail := make(map[string]bool)
	seenOrder := make(map[string]bool)
	for _, g := range cluster {
		refs = append(refs, g.Reference)
		total = total.Add(g.Amount)
		for _, v := range g.TransactionIDs {
			addUnique(&txIDs, seenTx, v)
		}
		for _, v := range g.CustomerNames {
			addUnique(&names, seenName, v)
		}
		for _, v := range g.CustomerEmails {
			addUnique(&emails, seenEmail, v)
		}
		for _, v := range g.OrderIDs {
			addUnique(&orders, seenOrder, v)
		}
	}
	return outcome{
		result: domain.MatchResult{
			BankRecordID:   row.ID,
			BankSource:     row.Source,
			Date:           row.TransactionDate,
			Amount:         row.Amount.Round(2),
			Description:    snippet(row.Description),
			Level:          domain.LevelAmountCluster,
			MatchType:      mtype,
			Reference:      strings.Join(refs, "+"),
			Gateway:        cluster[0].Source,
			Confidence:     conf,
			GroupAmount:    total.Round(2),
			TransactionIDs: txIDs,
			CustomerNames:  names,
			CustomerEmails: emails,
			OrderIDs:       orders,
		},
		refs: refs,
	}
}

// dayDistance is the whole-day distance between two dates. A zero date
// never matches any window.
func dayDistance(a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return 1 << 30
	}
	ad := a.Truncate(24 * time.Hour)
	bd := b.Truncate(24 * time.Hour)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// snippet truncates a bank description for match output, backing up to
// a rune boundary so a multi-byte character is never split.
func snippet(s string) string {
	if len(s) <= descriptionSnippetLen {
		return s
	}
	cut := descriptionSnippetLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
