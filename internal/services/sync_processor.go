package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/sheets"
	"financas/internal/store"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// ReconcileInterval is how often the mirror is compared with the store (default: 5m)
	ReconcileInterval time.Duration

	// BatchSize is the number of transactions read per store page (default: 100)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		ReconcileInterval: 5 * time.Minute,
		BatchSize:         100,
	}
}

// ReconcileStats reports what one reconciliation pass changed.
type ReconcileStats struct {
	Scanned  int
	Inserted int
	Removed  int
}

// SyncProcessor keeps the spreadsheet mirror in line with the store. Events
// are applied as they arrive; a periodic pass inserts rows that were missed
// and removes rows whose transaction is gone.
type SyncProcessor struct {
	scanner store.TransactionScanner
	mirror  sheets.Mirror
	config  SyncProcessorConfig
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor. A nil scanner disables
// reconciliation; events are still applied.
func NewSyncProcessor(scanner store.TransactionScanner, mirror sheets.Mirror, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = DefaultSyncProcessorConfig().ReconcileInterval
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncProcessor{
		scanner: scanner,
		mirror:  mirror,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent applies one transaction event to the mirror. It has the shape
// of an amqp.Handler.
func (p *SyncProcessor) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	switch ev.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		if ev.Transaction == nil {
			return fmt.Errorf("%s event %s without transaction", ev.Kind, ev.TransactionID)
		}
		if err := p.mirror.UpsertTransaction(ctx, *ev.Transaction); err != nil {
			return fmt.Errorf("upsert row %s: %w", ev.TransactionID, err)
		}
	case amqp.EventDeleted:
		if err := p.mirror.DeleteTransaction(ctx, ev.TransactionID); err != nil {
			return fmt.Errorf("delete row %s: %w", ev.TransactionID, err)
		}
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	p.logger.InfoContext(ctx, "Applied transaction event to mirror",
		log.FieldTransactionID, ev.TransactionID,
		log.FieldUserID, ev.UserID,
		log.FieldEvent, ev.Kind)
	return nil
}

// Start begins the reconciliation loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	if p.scanner == nil {
		return errors.New("sync processor has no transaction scanner")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"reconcile_interval", p.config.ReconcileInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.ReconcileInterval)
	defer ticker.Stop()

	p.reconcileAndLog(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reconcileAndLog(ctx)
		}
	}
}

func (p *SyncProcessor) reconcileAndLog(ctx context.Context) {
	stats, err := p.Reconcile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "Mirror reconciliation failed", log.FieldError, err)
		}
		return
	}
	p.logger.InfoContext(ctx, "Mirror reconciled",
		"scanned", stats.Scanned,
		"inserted", stats.Inserted,
		"removed", stats.Removed)
}

// Reconcile inserts stored transactions missing from the mirror and removes
// mirror rows without a stored transaction. Rows already present are left to
// the event stream.
func (p *SyncProcessor) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	if p.scanner == nil {
		return stats, errors.New("sync processor has no transaction scanner")
	}

	ids, err := p.mirror.ListTransactionIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("list mirror rows: %w", err)
	}
	mirrored := make(map[string]bool, len(ids))
	for _, id := range ids {
		mirrored[id] = false
	}

	err = p.scanner.ScanTransactions(ctx, p.config.BatchSize, func(batch []core.Transaction) error {
		for _, tx := range batch {
			stats.Scanned++
			if _, ok := mirrored[tx.ID]; ok {
				mirrored[tx.ID] = true
				continue
			}
			if err := p.mirror.UpsertTransaction(ctx, tx); err != nil {
				return fmt.Errorf("insert row %s: %w", tx.ID, err)
			}
			stats.Inserted++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan transactions: %w", err)
	}

	for _, id := range ids {
		if mirrored[id] {
			continue
		}
		if err := p.mirror.DeleteTransaction(ctx, id); err != nil {
			return stats, fmt.Errorf("remove row %s: %w", id, err)
		}
		stats.Removed++
	}
	return stats, nil
}
