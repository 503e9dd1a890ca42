// Package report turns what a run left in the store into a summary for delivery.
package report

import (
	"context"
	"finsync/src/models"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Contribution is an account's share of net worth. Credit and loan balances are owed,
// so they count against net worth whatever sign the provider reported.
func Contribution(accountType string, current decimal.Decimal) decimal.Decimal {
	switch strings.ToLower(accountType) {
	case "credit", "loan":
		return current.Abs().Neg()
	default:
		return current
	}
}

// NetWorth sums contributions. Accounts without a current balance are skipped.
func NetWorth(balances []models.AccountBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		if !b.Current.Valid {
			continue
		}
		total = total.Add(Contribution(b.Type, b.Current.Decimal))
	}
	return total
}

// PostedLines caps the transaction lines carried by a summary.
const PostedLines = 10

type Store interface {
	BalancesForRun(ctx context.Context, runID int64) ([]models.AccountBalance, error)
	SyncStatusCounts(ctx context.Context, runID int64) (map[models.SyncStatus]int, error)
	FlowTotals(ctx context.Context, runID int64) (spent, received decimal.Decimal, err error)
	PeriodTotals(ctx context.Context, from, to time.Time) (spent, received decimal.Decimal, err error)
	LatestBalances(ctx context.Context) (int64, []models.AccountBalance, error)
	PostedTransactions(ctx context.Context, runID int64, limit int) ([]models.PostedTransaction, error)
}

type RunSource interface {
	Get(ctx context.Context, runID int64) (*models.Run, error)
}

type Flow struct {
	Spent    decimal.Decimal `json:"spent"`
	Received decimal.Decimal `json:"received"`
}

// Periods are calendar-to-date flows ending on the local date the run started.
// Weeks start on Monday.
type Periods struct {
	AsOf        string `json:"as_of"`
	Today       Flow   `json:"today"`
	WeekToDate  Flow   `json:"week_to_date"`
	MonthToDate Flow   `json:"month_to_date"`
}

type Summary struct {
	Run      models.Run                `json:"run"`
	NetWorth decimal.Decimal           `json:"net_worth"`
	Accounts []models.AccountBalance   `json:"accounts"`
	Counts   map[models.SyncStatus]int `json:"transaction_counts"`
	Spent    decimal.Decimal           `json:"spent"`
	Received decimal.Decimal           `json:"received"`
	Periods  Periods                   `json:"periods"`

	// LatestNetWorth comes from the newest successful run that captured balances,
	// which is not necessarily this one. Null when no such run exists.
	LatestNetWorth      decimal.NullDecimal        `json:"latest_net_worth"`
	LatestBalancesRunID int64                      `json:"latest_balances_run_id,omitempty"`
	Posted              []models.PostedTransaction `json:"posted"`
}

// Text renders the summary as a short plain-text digest.
func (s *Summary) Text(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run %d (%s, %s) %s at %s\n",
		s.Run.ID, s.Run.Type, s.Run.Environment, s.Run.Status, s.Run.StartedAt.In(loc).Format("2006-01-02 15:04"))
	if s.Run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", s.Run.Error)
	}
	fmt.Fprintf(&b, "Net worth: %s across %d accounts\n", s.NetWorth.StringFixed(2), len(s.Accounts))
	if s.LatestNetWorth.Valid && s.LatestBalancesRunID != s.Run.ID {
		fmt.Fprintf(&b, "Latest net worth: %s (run %d)\n", s.LatestNetWorth.Decimal.StringFixed(2), s.LatestBalancesRunID)
	}
	fmt.Fprintf(&b, "Transactions: %d added, %d modified, %d removed\n",
		s.Counts[models.SyncStatusAdded], s.Counts[models.SyncStatusModified], s.Counts[models.SyncStatusRemoved])
	fmt.Fprintf(&b, "Spent %s, received %s", s.Spent.StringFixed(2), s.Received.StringFixed(2))
	if s.Periods.AsOf != "" {
		fmt.Fprintf(&b, "\n%s: today spent %s received %s | week spent %s received %s | month spent %s received %s",
			s.Periods.AsOf,
			s.Periods.Today.Spent.StringFixed(2), s.Periods.Today.Received.StringFixed(2),
			s.Periods.WeekToDate.Spent.StringFixed(2), s.Periods.WeekToDate.Received.StringFixed(2),
			s.Periods.MonthToDate.Spent.StringFixed(2), s.Periods.MonthToDate.Received.StringFixed(2))
	}
	for _, p := range s.Posted {
		fmt.Fprintf(&b, "\n- %s %s (%s, %s)", postedName(p), postedAmount(p.Amount), p.AccountName, p.ItemLabel)
	}
	return b.String()
}

func postedName(p models.PostedTransaction) string {
	if name := strings.TrimSpace(p.MerchantName); name != "" {
		return name
	}
	return strings.TrimSpace(p.Name)
}

// Money in is shown with a leading plus.
func postedAmount(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "+" + amount.Neg().StringFixed(2)
	}
	return amount.StringFixed(2)
}

// periodStarts returns the local calendar date of t and the first days of its week
// and month, as midnight UTC dates.
func periodStarts(t time.Time, loc *time.Location) (day, week, month time.Time) {
	y, m, d := t.In(loc).Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	week = day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	month = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return day, week, month
}

type Service struct {
	store Store
	runs  RunSource
	loc   *time.Location
}

// NewService builds summaries whose period totals follow the calendar in loc.
func NewService(store Store, runs RunSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, runs: runs, loc: loc}
}

func (s *Service) Summary(ctx context.Context, runID int64) (*Summary, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}

	balances, err := s.store.BalancesForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("balances for run %d: %w", runID, err)
	}
	counts, err := s.store.SyncStatusCounts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("sync counts for run %d: %w", runID, err)
	}
	spent, received, err := s.store.FlowTotals(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("flow totals for run %d: %w", runID, err)
	}

	summary := &Summary{
		Run:      *run,
		NetWorth: NetWorth(balances),
		Accounts: balances,
		Counts:   counts,
		Spent:    spent,
		Received: received,
	}

	if summary.Periods, err = s.periods(ctx, run.StartedAt); err != nil {
		return nil, err
	}

	latestRunID, latest, err := s.store.LatestBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest balances: %w", err)
	}
	if latestRunID != 0 {
		summary.LatestBalancesRunID = latestRunID
		summary.LatestNetWorth = decimal.NewNullDecimal(NetWorth(latest))
	}

	if summary.Posted, err = s.store.PostedTransactions(ctx, runID, PostedLines); err != nil {
		return nil, fmt.Errorf("posted transactions for run %d: %w", runID, err)
	}

	return summary, nil
}

func (s *Service) periods(ctx context.Context, at time.Time) (Periods, error) {
	day, week, month := periodStarts(at, s.loc)
	p := Periods{AsOf: day.Format(time.DateOnly)}

	for _, period := range []struct {
		name string
		from time.Time
		dst  *Flow
	}{
		{"today", day, &p.Today},
		{"week to date", week, &p.WeekToDate},
		{"month to date", month, &p.MonthToDate},
	} {
		spent, received, err := s.store.PeriodTotals(ctx, period.from, day)
		if err != nil {
			return p, fmt.Errorf("%s totals: %w", period.name, err)
		}
		*period.dst = Flow{Spent: spent, Received: received}
	}
	return p, nil
}
