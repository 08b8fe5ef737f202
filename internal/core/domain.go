package core

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	// TransactionType is either income or expense. Categories carry the same type.
	TransactionType string

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		PasswordHash []byte    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

const (
	minDescriptionLen = 3
	maxDescriptionLen = 200
)

// MinAmount is the smallest amount a transaction may carry (one cent).
var MinAmount = decimal.New(1, -2)

var (
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrShortDescription     = errors.New("description must have at least 3 characters")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory        = errors.New("empty category")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrCategoryTypeMismatch = errors.New("category does not match transaction type")
	ErrZeroDate             = errors.New("date cannot be zero")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidYear          = errors.New("invalid year")
)

// IsValid reports whether t is income or expense.
func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType accepts the type names case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Validate checks the fields a caller controls. Ownership, ids and timestamps
// are assigned by the service and the store.
func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if t.Amount.LessThan(MinAmount) {
		return ErrInvalidAmount
	}
	desc := strings.TrimSpace(t.Description)
	if len([]rune(desc)) < minDescriptionLen {
		return ErrShortDescription
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// ValidateCategory checks that the category exists in the catalog and has the
// same type as the transaction.
func (t Transaction) ValidateCategory(c *Catalog) error {
	cat, ok := c.Lookup(t.Category)
	if !ok {
		return ErrUnknownCategory
	}
	if cat.Type != t.Type {
		return ErrCategoryTypeMismatch
	}
	return nil
}

// IsValidationError reports whether err is one of the input validation errors
// defined in this package.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidType, ErrInvalidAmount, ErrShortDescription, ErrDescriptionTooLong,
		ErrEmptyCategory, ErrUnknownCategory, ErrCategoryTypeMismatch, ErrZeroDate,
		ErrInvalidMonth, ErrInvalidYear,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SortByDateDesc orders transactions most recent first. Equal dates keep their
// relative order.
func SortByDateDesc(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		return b.Date.Compare(a.Date)
	})
}
