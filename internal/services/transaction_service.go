package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"financas/internal/amqp"
	"financas/internal/analysis"
	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/store"
)

// DefaultRecentLimit is the number of transactions Recent returns when the
// caller does not ask for a specific amount.
const DefaultRecentLimit = 5

// EventPublisher announces committed writes.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// Filter narrows a transaction listing by type.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterIncome  Filter = "income"
	FilterExpense Filter = "expense"
)

// ParseFilter accepts all|income|expense. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterIncome, FilterExpense:
		return f, nil
	default:
		return "", fmt.Errorf("invalid filter %q", s)
	}
}

func (f Filter) matches(tx core.Transaction) bool {
	switch f {
	case FilterIncome:
		return tx.Type == core.Income
	case FilterExpense:
		return tx.Type == core.Expense
	default:
		return true
	}
}

// Report is a monthly analysis together with what the analytics page draws.
type Report struct {
	analysis.Result
	Insights analysis.Insights     `json:"insights"`
	Segments []analysis.PieSegment `json:"segments"`
}

// Dashboard is the landing page summary.
type Dashboard struct {
	Period   core.Period        `json:"period"`
	Overall  core.Totals        `json:"overall"`
	Month    core.Totals        `json:"month"`
	Recent   []core.Transaction `json:"recent"`
	Balance  string             `json:"balance"`
	Income   string             `json:"income"`
	Expenses string             `json:"expenses"`
}

// TransactionService orchestrates transaction writes across the store, the
// snapshot cache and the event bus, and serves the derived views.
type TransactionService struct {
	store     store.TransactionStore
	catalog   *core.Catalog
	engine    *analysis.Engine
	publisher EventPublisher
	snapshots *cache.Snapshots
	logger    *log.Logger
	audit     *log.StructuredLogger
	now       func() time.Time
}

type ServiceOption func(*TransactionService)

// WithPublisher enables event publishing. A nil publisher is ignored.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(s *TransactionService) { s.publisher = p }
}

// WithSnapshots enables the per-user snapshot cache.
func WithSnapshots(c *cache.Snapshots) ServiceOption {
	return func(s *TransactionService) { s.snapshots = c }
}

func WithLogger(l *log.Logger) ServiceOption {
	return func(s *TransactionService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentTransaction)
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *TransactionService) { s.now = now }
}

// NewTransactionService wires a service around st. A nil catalog means the
// default catalog; a nil engine means one built over that catalog in UTC.
func NewTransactionService(st store.TransactionStore, catalog *core.Catalog, engine *analysis.Engine, opts ...ServiceOption) *TransactionService {
	if catalog == nil {
		catalog = core.DefaultCatalog()
	}
	if engine == nil {
		engine = analysis.New(catalog)
	}
	s := &TransactionService{
		store:   st,
		catalog: catalog,
		engine:  engine,
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = log.NewStructuredLogger(s.logger)
	return s
}

func (s *TransactionService) Catalog() *core.Catalog { return s.catalog }

func (s *TransactionService) Engine() *analysis.Engine { return s.engine }

// CurrentPeriod is the month containing now in the engine's location.
func (s *TransactionService) CurrentPeriod() core.Period {
	return core.PeriodOf(s.now().In(s.engine.Location()))
}

// Create validates tx, stores it for userID and announces it.
func (s *TransactionService) Create(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	tx.UserID = userID
	tx.Description = strings.TrimSpace(tx.Description)
	if err := s.validate(tx); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.afterWrite(ctx, log.OpCreate, amqp.EventCreated, saved)
	return saved, nil
}

// Update replaces the editable fields of a transaction owned by userID.
// Transactions of other users are reported as store.ErrNotFound.
func (s *TransactionService) Update(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if _, err := s.Get(ctx, userID, tx.ID); err != nil {
		return core.Transaction{}, err
	}

	tx.UserID = userID
	tx.Description = strings.TrimSpace(tx.Description)
	if err := s.validate(tx); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.afterWrite(ctx, log.OpUpdate, amqp.EventUpdated, saved)
	return saved, nil
}

// Delete removes a transaction owned by userID.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.afterWrite(ctx, log.OpDelete, amqp.EventDeleted, existing)
	return nil
}

// Get returns a transaction owned by userID.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	if id == "" {
		return core.Transaction{}, store.ErrNotFound
	}
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.UserID != userID {
		return core.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

// List returns the user's transactions matching f, most recent first.
func (s *TransactionService) List(ctx context.Context, userID string, f Filter) ([]core.Transaction, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := txs[:0]
	for _, tx := range txs {
		if f.matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// CurrentBalance sums every transaction the user has.
func (s *TransactionService) CurrentBalance(ctx context.Context, userID string) (core.Totals, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return core.Totals{}, err
	}
	return core.Sum(txs), nil
}

// Recent returns at most limit transactions, most recent first. A limit
// below one means DefaultRecentLimit.
func (s *TransactionService) Recent(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	if limit < 1 {
		limit = DefaultRecentLimit
	}
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// MonthlyTotals sums the user's transactions inside p.
func (s *TransactionService) MonthlyTotals(ctx context.Context, userID string, p core.Period) (core.Totals, error) {
	res, err := s.analyze(ctx, userID, p)
	if err != nil {
		return core.Totals{}, err
	}
	return core.Totals{Income: res.TotalIncome, Expense: res.TotalExpense}, nil
}

// MonthlyAnalysis runs the aggregation engine over the user's transactions
// and derives the insights and the pie chart.
func (s *TransactionService) MonthlyAnalysis(ctx context.Context, userID string, p core.Period) (Report, error) {
	res, err := s.analyze(ctx, userID, p)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Result:   res,
		Insights: analysis.InsightsFor(res),
		Segments: analysis.PieSegments(res.CategoryBreakdown),
	}, nil
}

// Dashboard combines the overall balance, the current month totals and the
// latest transactions.
func (s *TransactionService) Dashboard(ctx context.Context, userID string, recent int) (Dashboard, error) {
	if recent < 1 {
		recent = DefaultRecentLimit
	}
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	p := s.CurrentPeriod()
	month, err := s.engine.MonthlyAnalysis(txs, p.Month, p.Year)
	if err != nil {
		return Dashboard{}, err
	}

	overall := core.Sum(txs)
	if len(txs) > recent {
		txs = txs[:recent]
	}
	return Dashboard{
		Period:   p,
		Overall:  overall,
		Month:    core.Totals{Income: month.TotalIncome, Expense: month.TotalExpense},
		Recent:   txs,
		Balance:  core.FormatBRL(overall.Balance()),
		Income:   core.FormatBRL(overall.Income),
		Expenses: core.FormatBRL(overall.Expense),
	}, nil
}

func (s *TransactionService) analyze(ctx context.Context, userID string, p core.Period) (analysis.Result, error) {
	if err := p.Validate(); err != nil {
		return analysis.Result{}, err
	}
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return analysis.Result{}, err
	}
	res, err := s.engine.MonthlyAnalysis(txs, p.Month, p.Year)
	if err != nil {
		return analysis.Result{}, err
	}
	s.logger.DebugContext(ctx, "Monthly analysis computed",
		log.FieldUserID, userID,
		log.FieldYear, p.Year,
		log.FieldMonth, p.Month,
		"transactions", len(res.Transactions),
		"categories", len(res.CategoryBreakdown))
	return res, nil
}

// transactions returns a private copy of the user's list, served from the
// snapshot cache when possible.
func (s *TransactionService) transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	var gen uint64
	if s.snapshots != nil {
		if txs, ok := s.snapshots.Get(userID); ok {
			return txs, nil
		}
		gen = s.snapshots.Generation(userID)
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	core.SortByDateDesc(txs)
	if s.snapshots != nil {
		s.snapshots.Put(userID, gen, txs)
	}
	return txs, nil
}

func (s *TransactionService) validate(tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	return tx.ValidateCategory(s.catalog)
}

// afterWrite runs once the store has accepted a write. Nothing here can fail
// the request.
func (s *TransactionService) afterWrite(ctx context.Context, op string, kind amqp.EventKind, tx core.Transaction) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(tx.UserID)
	}

	s.audit.LogTransactionWritten(ctx, op, tx.UserID, tx.ID, tx.Type.String(), tx.Category, tx.Amount.StringFixed(2))

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event bus not configured, skipping transaction event",
			log.FieldTransactionID, tx.ID)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(kind, tx)); err != nil {
		s.audit.LogError(ctx, "Failed to publish transaction event", err, log.ComponentAMQP, op,
			log.NewFields().WithTransaction(tx.ID, tx.Type.String(), tx.Category, "").WithUser(tx.UserID).WithErrorType(log.ErrorTypeNetwork))
	}
}

// IsNotFound reports whether err means the transaction does not exist for
// the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
