package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spendwise/internal/logger"
)

// MemoryQueue is an in-process WorkQueue backed by a bounded channel. Failed
// items are retried until MaxAttempts; throttled items are parked and
// redelivered without using up an attempt.
type MemoryQueue struct {
	items       chan WorkItem
	workers     int
	maxAttempts int
	log         *zap.SugaredLogger

	// parked counts throttled items waiting to be redelivered.
	parked atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue holding up to capacity pending items,
// processed by at most workers goroutines.
func NewMemoryQueue(capacity, workers, maxAttempts int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &MemoryQueue{
		items:       make(chan WorkItem, capacity),
		workers:     workers,
		maxAttempts: maxAttempts,
		log:         logger.Named("memory-queue"),
	}
}

// Enqueue blocks while the queue is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, items ...WorkItem) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for _, item := range items {
		select {
		case q.items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Len returns the number of pending items, parked ones excluded.
func (q *MemoryQueue) Len() int {
	return len(q.items)
}

// Consume runs handler on pending items with bounded concurrency until ctx is
// cancelled, then waits for in-flight items.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	var g errgroup.Group
	g.SetLimit(q.workers)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case item := <-q.items:
			g.Go(func() error {
				q.handle(ctx, handler, item)
				return nil
			})
		}
	}
}

// Drain runs handler on pending items until producing is closed, the queue
// is empty and no throttled item is parked. Failed items are retried in
// place rather than requeued.
func (q *MemoryQueue) Drain(ctx context.Context, handler Handler, producing <-chan struct{}) error {
	var g errgroup.Group
	g.SetLimit(q.workers)
	run := func(item WorkItem) {
		g.Go(func() error {
			q.handleInPlace(ctx, handler, item)
			return nil
		})
	}

	for producing != nil {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case item := <-q.items:
			run(item)
		case <-producing:
			producing = nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		select {
		case item := <-q.items:
			run(item)
			continue
		default:
		}

		_ = g.Wait()
		// A parked item is sent before it stops counting, so reading the
		// counter first cannot miss it.
		if q.parked.Load() == 0 && len(q.items) == 0 {
			return nil
		}
		select {
		case item := <-q.items:
			run(item)
		case <-ctx.Done():
		}
	}
}

func (q *MemoryQueue) handleInPlace(ctx context.Context, handler Handler, item WorkItem) {
	for {
		err := handler(ctx, item)
		if err == nil {
			return
		}
		if delay, ok := throttleDelay(err); ok {
			q.park(ctx, item, delay)
			return
		}
		item.Attempt++
		if item.Attempt >= q.maxAttempts || ctx.Err() != nil {
			q.log.Errorw("work item failed, giving up",
				"item_id", item.ID,
				"transaction_id", item.TransactionID,
				"attempts", item.Attempt,
				"error", err,
			)
			return
		}
	}
}

func (q *MemoryQueue) handle(ctx context.Context, handler Handler, item WorkItem) {
	err := handler(ctx, item)
	if err == nil {
		return
	}
	if delay, ok := throttleDelay(err); ok {
		q.park(ctx, item, delay)
		return
	}

	item.Attempt++
	if item.Attempt >= q.maxAttempts || ctx.Err() != nil {
		q.log.Errorw("work item failed, giving up",
			"item_id", item.ID,
			"kind", item.Kind,
			"transaction_id", item.TransactionID,
			"attempts", item.Attempt,
			"error", err,
		)
		return
	}

	q.log.Warnw("work item failed, retrying",
		"item_id", item.ID,
		"transaction_id", item.TransactionID,
		"attempt", item.Attempt,
		"error", err,
	)
	// Requeue off the worker so a full channel cannot stall the pool.
	go func() {
		if err := q.Enqueue(ctx, item); err != nil {
			q.log.Errorw("failed to requeue work item", "item_id", item.ID, "error", err)
		}
	}()
}

// park redelivers item after delay. It bypasses Enqueue so a parked item
// still lands after Close.
func (q *MemoryQueue) park(ctx context.Context, item WorkItem, delay time.Duration) {
	q.parked.Add(1)
	go func() {
		defer q.parked.Add(-1)

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			q.log.Warnw("dropping throttled work item", "item_id", item.ID, "transaction_id", item.TransactionID)
			return
		}

		select {
		case q.items <- item:
		case <-ctx.Done():
			q.log.Warnw("dropping throttled work item", "item_id", item.ID, "transaction_id", item.TransactionID)
		}
	}()
}

// Close rejects further Enqueue calls. Pending items stay until consumed.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
