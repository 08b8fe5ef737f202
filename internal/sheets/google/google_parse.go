package google

import (
	"fmt"
	"strings"

	"financas/internal/core"
)

// Column layout of the mirror sheet. Row 1 holds the header.
var header = []any{"ID", "Data", "Mês", "Ano", "Tipo", "Categoria", "Descrição", "Valor", "Usuário"}

const (
	firstColumn = "A"
	lastColumn  = "I"
	dateLayout  = "2006-01-02"
)

// transactionRow renders tx as one sheet row. Amounts are written with a dot
// and two decimals so USER_ENTERED keeps them numeric.
func transactionRow(tx core.Transaction, catalog *core.Catalog) []any {
	typeLabel := "Despesa"
	if tx.Type == core.Income {
		typeLabel = "Receita"
	}
	return []any{
		tx.ID,
		tx.Date.Format(dateLayout),
		int(tx.Date.Month()),
		tx.Date.Year(),
		typeLabel,
		catalog.Name(tx.Category),
		tx.Description,
		tx.Amount.StringFixed(2),
		tx.UserID,
	}
}

// rowNumber returns the 1-based sheet row holding id in column A, or 0.
func rowNumber(values [][]any, id string) int {
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		if cellString(row, 0) == id {
			return i + 1
		}
	}
	return 0
}

// parseIDs lists the non-empty ids in column A, skipping the header.
func parseIDs(values [][]any) []string {
	ids := make([]string, 0, len(values))
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		if id := cellString(row, 0); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func isHeader(row []any) bool {
	return strings.EqualFold(cellString(row, 0), fmt.Sprint(header[0]))
}

func cellString(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), firstColumn, row, lastColumn, row)
}

func idColumnRange(sheet string) string {
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), firstColumn, firstColumn)
}

func tableRange(sheet string) string {
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), firstColumn, lastColumn)
}

// quoteSheet wraps sheet names containing spaces or quotes in A1 notation.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
