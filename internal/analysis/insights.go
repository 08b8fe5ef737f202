package analysis

import (
	"github.com/shopspring/decimal"

	"financas/internal/core"
)

const (
	colorPositive = "#10b981"
	colorNegative = "#ef4444"
	colorNeutral  = "#64748b"
)

// Insights are the secondary figures shown next to a monthly analysis.
type Insights struct {
	TopExpenseCategory        *BreakdownEntry `json:"topExpenseCategory,omitempty"`
	IncomeCount               int             `json:"incomeCount"`
	ExpenseCount              int             `json:"expenseCount"`
	ExpensePercentageOfIncome float64         `json:"expensePercentageOfIncome"`
	SavingsPercentage         float64         `json:"savingsPercentage"`
	SavingsMessage            string          `json:"savingsMessage"`
	BalanceColor              string          `json:"balanceColor"`
	BalanceIcon               string          `json:"balanceIcon"`
}

// InsightsFor derives insights from an analysis result. Percentages are
// relative to income and are 0 when there is no income.
func InsightsFor(r Result) Insights {
	in := Insights{
		ExpensePercentageOfIncome: percentage(r.TotalExpense, r.TotalIncome),
		SavingsPercentage:         percentage(r.Balance.Abs(), r.TotalIncome),
		BalanceColor:              BalanceColor(r.Balance),
		BalanceIcon:               BalanceIcon(r.Balance),
	}
	if len(r.CategoryBreakdown) > 0 {
		top := r.CategoryBreakdown[0]
		in.TopExpenseCategory = &top
	}
	for _, tx := range r.Transactions {
		switch tx.Type {
		case core.Income:
			in.IncomeCount++
		case core.Expense:
			in.ExpenseCount++
		}
	}
	in.SavingsMessage = SavingsMessage(r.Balance, in.SavingsPercentage)
	return in
}

// SavingsMessage grades a month by how much of its income was kept.
func SavingsMessage(balance decimal.Decimal, savingsPct float64) string {
	switch {
	case balance.IsNegative():
		return "Reduza os gastos!"
	case savingsPct >= 20:
		return "Excelente economia!"
	case savingsPct >= 10:
		return "Boa economia!"
	default:
		return "Continue economizando!"
	}
}

func BalanceColor(balance decimal.Decimal) string {
	if balance.IsNegative() {
		return colorNegative
	}
	return colorPositive
}

// NeutralColor is used when there is no balance to show.
func NeutralColor() string { return colorNeutral }

func BalanceIcon(balance decimal.Decimal) string {
	if balance.IsNegative() {
		return "trending_down"
	}
	return "trending_up"
}
