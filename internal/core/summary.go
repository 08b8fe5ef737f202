package core

import "github.com/shopspring/decimal"

// Totals holds income and expense sums over a set of transactions.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Balance is income minus expense. It may be negative.
func (t Totals) Balance() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// Sum accumulates income and expense amounts. Transactions of any other type
// are ignored.
func Sum(txs []Transaction) Totals {
	totals := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			totals.Income = totals.Income.Add(tx.Amount)
		case Expense:
			totals.Expense = totals.Expense.Add(tx.Amount)
		}
	}
	return totals
}
