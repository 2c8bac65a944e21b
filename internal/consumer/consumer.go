// Package consumer drives the event-to-aggregate pipeline: startup reset,
// subscription lifecycle, and the per-event dual-sink update sequence
// against the counter store and the snapshot mirror.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/buzzline-lab/buzztrack/internal/core/storage"
	"github.com/buzzline-lab/buzztrack/internal/event"
	"github.com/buzzline-lab/buzztrack/internal/feed"
)

// ErrInitialization is returned when a startup reset fails. Fatal: the run
// loop is never entered and the process exits.
var ErrInitialization = errors.New("initialization failed")

// Mirror is the write-through snapshot sink the consumer updates after each
// durable increment.
type Mirror interface {
	Reset() error
	WriteFull(counts map[string]int64) error
}

// Consumer owns the counter store and the mirror for the lifetime of one
// process run and applies increments in the exact order events arrive.
// One event is fully processed before the next is pulled, which keeps the
// dual-sink update trivially serializable.
type Consumer struct {
	store  storage.CounterStore
	mirror Mirror
	feed   feed.Feed
	runID  string

	mu    sync.RWMutex
	state State
}

// New wires the consumer to its collaborators. runID tags this run's logs.
func New(store storage.CounterStore, mirror Mirror, f feed.Feed, runID string) *Consumer {
	return &Consumer{
		store:  store,
		mirror: mirror,
		feed:   f,
		runID:  runID,
		state:  StateUninitialized,
	}
}

// State reports the current lifecycle state. Safe for concurrent readers
// (the diagnostics endpoint polls it while the loop runs).
func (c *Consumer) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	slog.Info("[Consumer] State transition", "from", prev, "to", s, "run_id", c.runID)
}

// Run resets both sinks, then consumes events until the feed ends, the
// context is cancelled, or the bus becomes unreachable. Per-event failures
// never escape the loop; only feed-level and initialization failures are
// returned.
func (c *Consumer) Run(ctx context.Context) error {
	c.setState(StateResetting)

	// Durable store first: it is the source of truth, so it is safe to
	// drop before the mirror.
	if err := c.store.Reset(ctx); err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("%w: counter store reset: %v", ErrInitialization, err)
	}
	if err := c.mirror.Reset(); err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("%w: snapshot mirror reset: %v", ErrInitialization, err)
	}

	c.setState(StateSubscribing)
	c.setState(StateRunning)

	err := c.consume(ctx)
	c.setState(StateStopped)
	return err
}

func (c *Consumer) consume(ctx context.Context) error {
	var processed, skipped, dropped int64

	defer func() {
		slog.Info("[Consumer] Run complete",
			"run_id", c.runID,
			"processed", processed,
			"skipped", skipped,
			"dropped", dropped,
		)
	}()

	for {
		// The only cancellation point: a stop signal takes effect between
		// events, never partway through a single event's dual-sink update.
		select {
		case <-ctx.Done():
			slog.Info("[Consumer] Cancelled, stopping", "run_id", c.runID)
			return nil
		default:
		}

		evt, err := c.feed.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				slog.Info("[Consumer] Cancelled while waiting for events", "run_id", c.runID)
				return nil
			case errors.Is(err, feed.ErrEndOfStream):
				slog.Info("[Consumer] Feed ended", "run_id", c.runID)
				return nil
			case errors.Is(err, event.ErrMalformedPayload), errors.Is(err, event.ErrMissingKeyword):
				slog.Warn("[Consumer] Skipping undecodable event", "error", err)
				skipped++
				continue
			default:
				return fmt.Errorf("pulling next event: %w", err)
			}
		}

		if err := c.applyEvent(ctx, evt); err != nil {
			dropped++
			continue
		}
		processed++
	}
}

// applyEvent runs one event's update sequence: durable increment first,
// then the full-snapshot rewrite. A failed increment drops the event; a
// failed mirror write leaves the mirror stale by at most this one increment
// until the next successful event rewrites it.
func (c *Consumer) applyEvent(ctx context.Context, evt event.KeywordEvent) error {
	slog.Debug("[Consumer] Processing event", "keyword", evt.Keyword)

	if err := c.store.Increment(ctx, evt.Keyword); err != nil {
		slog.Warn("[Consumer] Counter increment failed, event dropped",
			"keyword", evt.Keyword,
			"error", err,
		)
		return err
	}

	counts, err := c.store.GetAll(ctx)
	if err != nil {
		slog.Warn("[Consumer] Could not read counts, mirror left stale",
			"keyword", evt.Keyword,
			"error", err,
		)
		return nil
	}

	if err := c.mirror.WriteFull(counts); err != nil {
		slog.Warn("[Consumer] Snapshot write failed, mirror left stale",
			"keyword", evt.Keyword,
			"error", err,
		)
	}
	return nil
}
