package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/store"
	"financas/internal/store/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (f *fakePublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) kinds() []amqp.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventKind, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Kind
	}
	return out
}

// countingStore records how often the list is read.
type countingStore struct {
	*memory.Store
	lists int
}

func (c *countingStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	c.lists++
	return c.Store.ListTransactions(ctx, userID)
}

// gatedStore holds the first list call after it has read the store, until
// release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := g.Store.ListTransactions(ctx, userID)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return txs, err
}

var fixedNow = time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...ServiceOption) (*TransactionService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	opts = append([]ServiceOption{WithPublisher(pub), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewTransactionService(memory.New(), nil, nil, opts...), pub
}

func expense(desc, category, amount string, date time.Time) core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Category:    category,
		Date:        date,
	}
}

func income(desc, category, amount string, date time.Time) core.Transaction {
	tx := expense(desc, category, amount, date)
	tx.Type = core.Income
	return tx
}

func day(month, d int) time.Time {
	return time.Date(2025, time.Month(month), d, 12, 0, 0, 0, time.UTC)
}

func TestCreate(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Create(ctx, "u1", expense("  Mercado  ", "food", "42.50", day(3, 10)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if saved.ID == "" || saved.UserID != "u1" || saved.Description != "Mercado" {
		t.Errorf("unexpected saved transaction %+v", saved)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("store should assign timestamps")
	}

	events := pub.events
	if len(events) != 1 || events[0].Kind != amqp.EventCreated || events[0].TransactionID != saved.ID {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Transaction == nil || events[0].Transaction.UserID != "u1" {
		t.Error("created event should carry the stored transaction")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"short description", expense("ab", "food", "1", day(3, 1)), core.ErrShortDescription},
		{"zero amount", expense("Mercado", "food", "0", day(3, 1)), core.ErrInvalidAmount},
		{"unknown category", expense("Mercado", "ghost", "1", day(3, 1)), core.ErrUnknownCategory},
		{"type mismatch", expense("Mercado", "salary", "1", day(3, 1)), core.ErrCategoryTypeMismatch},
		{"no date", expense("Mercado", "food", "1", time.Time{}), core.ErrZeroDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tt.tx)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create error = %v, want %v", err, tt.want)
			}
			if !core.IsValidationError(err) {
				t.Error("expected a validation error")
			}
		})
	}
	if len(pub.events) != 0 {
		t.Error("rejected writes must not publish")
	}
}

func TestCreate_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")

	saved, err := svc.Create(context.Background(), "u1", expense("Mercado", "food", "10", day(3, 1)))
	if err != nil {
		t.Fatalf("Create should succeed when publishing fails: %v", err)
	}
	txs, _ := svc.List(context.Background(), "u1", FilterAll)
	if len(txs) != 1 || txs[0].ID != saved.ID {
		t.Errorf("transaction not stored: %+v", txs)
	}
}

func TestCreate_WithoutPublisher(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil, nil)
	if _, err := svc.Create(context.Background(), "u1", expense("Mercado", "food", "10", day(3, 1))); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestUpdateAndDelete_Ownership(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Create(ctx, "owner", expense("Mercado", "food", "10", day(3, 1)))
	if err != nil {
		t.Fatal(err)
	}

	edit := saved
	edit.Amount = decimal.RequireFromString("12")
	if _, err := svc.Update(ctx, "intruder", edit); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update by another user = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "intruder", saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete by another user = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, "intruder", saved.ID); !IsNotFound(err) {
		t.Errorf("Get by another user = %v, want not found", err)
	}

	updated, err := svc.Update(ctx, "owner", edit)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Amount.Equal(decimal.NewFromInt(12)) || !updated.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("unexpected update result %+v", updated)
	}

	if err := svc.Delete(ctx, "owner", saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "owner", saved.ID); !IsNotFound(err) {
		t.Errorf("second delete = %v, want not found", err)
	}

	kinds := pub.kinds()
	want := []amqp.EventKind{amqp.EventCreated, amqp.EventUpdated, amqp.EventDeleted}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	if last := pub.events[2]; last.Transaction != nil || last.UserID != "owner" {
		t.Errorf("deleted event = %+v", last)
	}
}

func TestListAndRecent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tx := range []core.Transaction{
		income("Salário", "salary", "5000", day(3, 5)),
		expense("Mercado", "food", "300", day(3, 7)),
		expense("Ônibus", "transport", "50", day(2, 20)),
		expense("Cinema", "entertainment", "40", day(3, 15)),
	} {
		if _, err := svc.Create(ctx, "u1", tx); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = svc.Create(ctx, "u2", expense("Outro", "food", "1", day(3, 1)))

	all, err := svc.List(ctx, "u1", FilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Description != "Cinema" || all[3].Description != "Ônibus" {
		t.Errorf("unexpected order: %v", descriptions(all))
	}

	incomes, _ := svc.List(ctx, "u1", FilterIncome)
	if len(incomes) != 1 || incomes[0].Type != core.Income {
		t.Errorf("income filter = %v", descriptions(incomes))
	}
	expenses, _ := svc.List(ctx, "u1", FilterExpense)
	if len(expenses) != 3 {
		t.Errorf("expense filter = %v", descriptions(expenses))
	}

	recent, _ := svc.Recent(ctx, "u1", 0)
	if len(recent) != 4 {
		t.Errorf("Recent default = %d items", len(recent))
	}
	recent, _ = svc.Recent(ctx, "u1", 2)
	if len(recent) != 2 || recent[0].Description != "Cinema" {
		t.Errorf("Recent(2) = %v", descriptions(recent))
	}
}

func TestBalanceAndMonthlyTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Create(ctx, "u1", income("Salário", "salary", "1000", day(3, 1)))
	_, _ = svc.Create(ctx, "u1", expense("Mercado", "food", "250.50", day(3, 2)))
	_, _ = svc.Create(ctx, "u1", expense("Ônibus", "transport", "100", day(2, 2)))

	bal, err := svc.CurrentBalance(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Balance().Equal(decimal.RequireFromString("649.50")) {
		t.Errorf("balance = %s", bal.Balance())
	}

	march, err := svc.MonthlyTotals(ctx, "u1", core.Period{Month: 3, Year: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if !march.Expense.Equal(decimal.RequireFromString("250.5")) || !march.Income.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("march totals = %+v", march)
	}

	if _, err := svc.MonthlyTotals(ctx, "u1", core.Period{Month: 13, Year: 2025}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("invalid month error = %v", err)
	}
}

func TestMonthlyAnalysis(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Create(ctx, "u1", income("Salário", "salary", "1000", day(3, 1)))
	_, _ = svc.Create(ctx, "u1", expense("Mercado", "food", "300", day(3, 2)))
	_, _ = svc.Create(ctx, "u1", expense("Ônibus", "transport", "100", day(3, 3)))

	rep, err := svc.MonthlyAnalysis(ctx, "u1", core.Period{Month: 3, Year: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Balance.Equal(decimal.NewFromInt(600)) {
		t.Errorf("balance = %s", rep.Balance)
	}
	if len(rep.CategoryBreakdown) != 2 || rep.CategoryBreakdown[0].CategoryID != "food" || rep.CategoryBreakdown[0].Percentage != 75 {
		t.Errorf("breakdown = %+v", rep.CategoryBreakdown)
	}
	if len(rep.Segments) != 2 || rep.Segments[1].EndAngle != 360 {
		t.Errorf("segments = %+v", rep.Segments)
	}
	if rep.Insights.SavingsPercentage != 60 || rep.Insights.SavingsMessage != "Excelente economia!" {
		t.Errorf("insights = %+v", rep.Insights)
	}

	empty, err := svc.MonthlyAnalysis(ctx, "u1", core.Period{Month: 1, Year: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Transactions) != 0 || len(empty.Segments) != 0 || !empty.Balance.IsZero() {
		t.Errorf("empty month = %+v", empty)
	}
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Create(ctx, "u1", income("Salário", "salary", "1000", day(3, 1)))
	_, _ = svc.Create(ctx, "u1", expense("Mercado", "food", "200", day(3, 2)))
	_, _ = svc.Create(ctx, "u1", expense("Ônibus", "transport", "100", day(2, 2)))

	d, err := svc.Dashboard(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if d.Period != (core.Period{Month: 3, Year: 2025}) {
		t.Errorf("period = %v", d.Period)
	}
	if d.Balance != "R$ 700,00" || !d.Month.Balance().Equal(decimal.NewFromInt(800)) {
		t.Errorf("dashboard = %+v", d)
	}
	if len(d.Recent) != 2 {
		t.Errorf("recent = %d", len(d.Recent))
	}
}

func TestSnapshotCache(t *testing.T) {
	cs := &countingStore{Store: memory.New()}
	svc := NewTransactionService(cs, nil, nil, WithSnapshots(cache.NewSnapshots(8, time.Minute)))
	ctx := context.Background()

	_, _ = svc.Create(ctx, "u1", expense("Mercado", "food", "10", day(3, 1)))

	_, _ = svc.List(ctx, "u1", FilterAll)
	_, _ = svc.CurrentBalance(ctx, "u1")
	if cs.lists != 1 {
		t.Errorf("store listed %d times, want 1", cs.lists)
	}

	_, _ = svc.Create(ctx, "u1", expense("Ônibus", "transport", "5", day(3, 2)))
	txs, _ := svc.List(ctx, "u1", FilterAll)
	if len(txs) != 2 {
		t.Errorf("write should invalidate the snapshot, got %d transactions", len(txs))
	}
	if cs.lists != 2 {
		t.Errorf("store listed %d times, want 2", cs.lists)
	}

	// Filtering must not corrupt the cached list.
	_, _ = svc.List(ctx, "u1", FilterIncome)
	again, _ := svc.List(ctx, "u1", FilterAll)
	if len(again) != 2 {
		t.Errorf("cached list damaged: %v", descriptions(again))
	}
}

func TestSnapshotCache_WriteDuringRead(t *testing.T) {
	gs := &gatedStore{Store: memory.New(), read: make(chan struct{}), release: make(chan struct{})}
	svc := NewTransactionService(gs, nil, nil, WithSnapshots(cache.NewSnapshots(8, time.Minute)))
	ctx := context.Background()

	done := make(chan []core.Transaction)
	go func() {
		txs, _ := svc.List(ctx, "u1", FilterAll)
		done <- txs
	}()

	<-gs.read
	if _, err := svc.Create(ctx, "u1", expense("Mercado", "food", "10", day(3, 1))); err != nil {
		t.Fatal(err)
	}
	close(gs.release)

	if before := <-done; len(before) != 0 {
		t.Fatalf("read started before the write saw %d transactions", len(before))
	}

	txs, err := svc.List(ctx, "u1", FilterAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Errorf("after create, List returns %d transactions, want 1", len(txs))
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"Income", FilterIncome, false},
		{"expense", FilterExpense, false},
		{"transfer", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFilter(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func descriptions(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Description
	}
	return out
}
