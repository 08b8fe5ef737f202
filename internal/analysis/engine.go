// Package analysis computes monthly income and expense summaries, the ranked
// per-category expense breakdown and the pie chart geometry derived from it.
//
// Every function in this package is pure: results depend only on the
// arguments and the engine configuration, and nothing is cached between calls.
package analysis

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
)

// UnknownCategoryID is the id of the catch-all entry produced in bucket mode.
const UnknownCategoryID = "unknown"

// UnknownMode controls what happens to expenses whose category is missing
// from the catalog.
type UnknownMode int

const (
	// DropUnknown leaves unknown categories out of the breakdown. Their
	// amounts still count toward the expense total.
	DropUnknown UnknownMode = iota
	// BucketUnknown merges every unknown category into one catch-all entry.
	BucketUnknown
)

// ParseUnknownMode maps the configuration values "drop" and "bucket".
func ParseUnknownMode(s string) (UnknownMode, bool) {
	switch s {
	case "", "drop":
		return DropUnknown, true
	case "bucket":
		return BucketUnknown, true
	default:
		return DropUnknown, false
	}
}

var unknownCategory = core.Category{
	ID:    UnknownCategoryID,
	Name:  "Desconhecido",
	Icon:  "help_outline",
	Type:  core.Expense,
	Color: "#94a3b8",
}

// BreakdownEntry is the expense total of one category within a period.
type BreakdownEntry struct {
	CategoryID       string          `json:"categoryId"`
	Name             string          `json:"name"`
	Icon             string          `json:"icon"`
	Color            string          `json:"color"`
	Amount           decimal.Decimal `json:"amount"`
	Percentage       float64         `json:"percentage"`
	TransactionCount int             `json:"transactionCount"`
}

// Result is the monthly analysis of one user's transactions.
type Result struct {
	Month             int                `json:"month"`
	Year              int                `json:"year"`
	TotalIncome       decimal.Decimal    `json:"totalIncome"`
	TotalExpense      decimal.Decimal    `json:"totalExpense"`
	Balance           decimal.Decimal    `json:"balance"`
	Transactions      []core.Transaction `json:"transactions"`
	CategoryBreakdown []BreakdownEntry   `json:"categoryBreakdown"`
}

// Period returns the month the result covers.
func (r Result) Period() core.Period {
	return core.Period{Month: r.Month, Year: r.Year}
}

// Engine aggregates transactions against a category catalog.
type Engine struct {
	catalog core.CategoryLookup
	loc     *time.Location
	unknown UnknownMode
}

type Option func(*Engine)

// WithLocation sets the time zone month boundaries are computed in. The
// default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithUnknownMode selects how unknown categories are reported.
func WithUnknownMode(m UnknownMode) Option {
	return func(e *Engine) { e.unknown = m }
}

// WithUnknownBucket surfaces unknown categories as a single catch-all entry.
func WithUnknownBucket() Option {
	return WithUnknownMode(BucketUnknown)
}

// New returns an engine resolving categories through catalog. A nil catalog
// uses core.DefaultCatalog.
func New(catalog core.CategoryLookup, opts ...Option) *Engine {
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	e := &Engine{catalog: catalog, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the time zone used for month boundaries.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// MonthlyAnalysis filters transactions to the given month, sums income and
// expense and ranks expense categories. The input slice is not modified; the
// returned transactions are ordered most recent first.
func (e *Engine) MonthlyAnalysis(transactions []core.Transaction, month, year int) (Result, error) {
	period, err := core.NewPeriod(month, year)
	if err != nil {
		return Result{}, err
	}
	start, end := period.Bounds(e.loc)

	inMonth := make([]core.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		inMonth = append(inMonth, tx)
	}
	core.SortByDateDesc(inMonth)

	totals := core.Sum(inMonth)
	return Result{
		Month:             month,
		Year:              year,
		TotalIncome:       totals.Income,
		TotalExpense:      totals.Expense,
		Balance:           totals.Balance(),
		Transactions:      inMonth,
		CategoryBreakdown: e.CategoryBreakdown(inMonth),
	}, nil
}

type accumulator struct {
	category core.Category
	amount   decimal.Decimal
	count    int
}

// CategoryBreakdown groups expense transactions by category and returns the
// groups ordered by amount, largest first. Groups with equal amounts keep the
// order in which their category first appeared. Percentages are relative to
// every expense in transactions, including those in unknown categories.
func (e *Engine) CategoryBreakdown(transactions []core.Transaction) []BreakdownEntry {
	total := decimal.Zero
	groups := make(map[string]*accumulator)
	var order []*accumulator

	for _, tx := range transactions {
		if tx.Type != core.Expense {
			continue
		}
		total = total.Add(tx.Amount)

		cat, ok := e.catalog.Lookup(tx.Category)
		if !ok {
			if e.unknown != BucketUnknown {
				continue
			}
			cat = unknownCategory
		}

		acc, seen := groups[cat.ID]
		if !seen {
			acc = &accumulator{category: cat, amount: decimal.Zero}
			groups[cat.ID] = acc
			order = append(order, acc)
		}
		acc.amount = acc.amount.Add(tx.Amount)
		acc.count++
	}

	entries := make([]BreakdownEntry, 0, len(order))
	for _, acc := range order {
		entries = append(entries, BreakdownEntry{
			CategoryID:       acc.category.ID,
			Name:             acc.category.Name,
			Icon:             acc.category.Icon,
			Color:            acc.category.Color,
			Amount:           acc.amount,
			Percentage:       percentage(acc.amount, total),
			TransactionCount: acc.count,
		})
	}
	slices.SortStableFunc(entries, func(a, b BreakdownEntry) int {
		return b.Amount.Cmp(a.Amount)
	})
	return entries
}

// percentage returns part/total*100 rounded to one decimal, or 0 when total
// is zero.
func percentage(part, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return part.Mul(decimal.NewFromInt(100)).Div(total).Round(1).InexactFloat64()
}

// ComputeMonthlyAnalysis runs MonthlyAnalysis with the default catalog in UTC.
func ComputeMonthlyAnalysis(transactions []core.Transaction, month, year int) (Result, error) {
	return New(nil).MonthlyAnalysis(transactions, month, year)
}

// ComputeCategoryBreakdown runs CategoryBreakdown with the default catalog.
func ComputeCategoryBreakdown(transactions []core.Transaction) []BreakdownEntry {
	return New(nil).CategoryBreakdown(transactions)
}
