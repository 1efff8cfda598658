package pathsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncAction names the operation a queued item replays against the remote.
type SyncAction string

const (
	ActionUpdate   SyncAction = "update"
	ActionSave     SyncAction = "save"
	ActionComplete SyncAction = "complete"
	ActionReset    SyncAction = "reset"
)

// SyncQueueItem is one deferred write. Data is the full progress snapshot at
// enqueue time, so replaying the item never needs the local store.
type SyncQueueItem struct {
	ID        string            `json:"id"`
	Action    SyncAction        `json:"action"`
	Key       ProgressKey       `json:"key"`
	Data      *ActivityProgress `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SyncQueue is the durable outbox of writes that could not reach the remote
// store. The whole queue lives under one storage key and every mutation is a
// read-modify-write of the full list, so concurrent controllers sharing a
// store see a consistent queue.
type SyncQueue struct {
	store  LocalStore
	codec  Codec
	logger *slog.Logger

	// mu serializes list mutations; drainMu keeps at most one drain running.
	mu      sync.Mutex
	drainMu sync.Mutex

	enqueued     uint64
	flushedTotal uint64
	failedTotal  uint64
}

// SyncQueueStats is a snapshot of queue counters.
type SyncQueueStats struct {
	Pending  int    `json:"pending"`
	Enqueued uint64 `json:"enqueued_total"`
	Flushed  uint64 `json:"flushed_total"`
	Failed   uint64 `json:"failed_total"`
}

// NewSyncQueue creates a queue persisted in the given store.
func NewSyncQueue(store LocalStore, codec Codec, logger *slog.Logger) *SyncQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncQueue{store: store, codec: codec, logger: logger}
}

func (q *SyncQueue) load(ctx context.Context) ([]SyncQueueItem, error) {
	raw, err := q.store.Get(ctx, outboxStorageKey)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync queue: load: %w", err)
	}

	var items []SyncQueueItem
	if err := q.codec.Decode(raw, &items); err != nil {
		return nil, fmt.Errorf("sync queue: decode: %w", err)
	}
	return items, nil
}

func (q *SyncQueue) save(ctx context.Context, items []SyncQueueItem) error {
	if len(items) == 0 {
		return q.store.Remove(ctx, outboxStorageKey)
	}

	raw, err := q.codec.Encode(items)
	if err != nil {
		return fmt.Errorf("sync queue: encode: %w", err)
	}
	if err := q.store.Set(ctx, outboxStorageKey, raw); err != nil {
		return fmt.Errorf("sync queue: save: %w", err)
	}
	return nil
}

// Enqueue appends a deferred write. The snapshot is deep-copied so later
// local mutations cannot rewrite queued history.
func (q *SyncQueue) Enqueue(ctx context.Context, action SyncAction, key ProgressKey, data *ActivityProgress) (SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return SyncQueueItem{}, err
	}

	item := SyncQueueItem{
		ID:        newTimeOrderedID(),
		Action:    action,
		Key:       key,
		Data:      data.Clone(),
		Timestamp: time.Now().UTC(),
	}
	items = append(items, item)

	if err := q.save(ctx, items); err != nil {
		return SyncQueueItem{}, err
	}
	q.enqueued++

	q.logger.Debug("queued offline write",
		"action", string(action),
		"progress_id", key.ID(),
		"queue_len", len(items))
	return item, nil
}

// Snapshot returns a copy of the current queue in insertion order.
func (q *SyncQueue) Snapshot(ctx context.Context) ([]SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Remove deletes the item with the given ID. Removing an unknown ID is a
// no-op, which makes drain completion idempotent.
func (q *SyncQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return q.save(ctx, kept)
}

// Len returns the number of pending items.
func (q *SyncQueue) Len(ctx context.Context) (int, error) {
	items, err := q.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Clear drops every pending item.
func (q *SyncQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(ctx, nil)
}

// Drain replays pending items through fn in insertion order. Items whose fn
// call succeeds are removed; failed items stay queued without blocking the
// rest, so one poisoned write cannot wedge the outbox. At most one drain
// runs at a time; concurrent calls return immediately.
func (q *SyncQueue) Drain(ctx context.Context, fn func(ctx context.Context, item SyncQueueItem) error) (flushed, failed int, err error) {
	if !q.drainMu.TryLock() {
		return 0, 0, nil
	}
	defer q.drainMu.Unlock()

	items, err := q.Snapshot(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return flushed, failed, ctx.Err()
		}

		if err := fn(ctx, item); err != nil {
			failed++
			q.logger.Warn("queued write failed, keeping for retry",
				"action", string(item.Action),
				"progress_id", item.Key.ID(),
				"error", err)
			continue
		}

		if err := q.Remove(ctx, item.ID); err != nil {
			return flushed, failed, err
		}
		flushed++
	}

	q.mu.Lock()
	q.flushedTotal += uint64(flushed)
	q.failedTotal += uint64(failed)
	q.mu.Unlock()

	if flushed > 0 || failed > 0 {
		q.logger.Info("drained sync queue", "flushed", flushed, "failed", failed)
	}
	return flushed, failed, nil
}

// Stats returns queue counters alongside the current pending count.
func (q *SyncQueue) Stats(ctx context.Context) (SyncQueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return SyncQueueStats{}, err
	}
	return SyncQueueStats{
		Pending:  len(items),
		Enqueued: q.enqueued,
		Flushed:  q.flushedTotal,
		Failed:   q.failedTotal,
	}, nil
}
