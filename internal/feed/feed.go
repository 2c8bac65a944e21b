// Package feed adapts the external message bus into a sequential pull of
// decoded keyword events. The underlying consumer-group client owns offset
// tracking and at-least-once delivery; the consumer only pulls.
package feed

import (
	"context"
	"errors"

	"github.com/buzzline-lab/buzztrack/internal/event"
)

var (
	// ErrUnavailable is returned when the bus connection is lost. No events
	// can be pulled past this point; the caller decides whether to exit.
	ErrUnavailable = errors.New("feed unavailable")

	// ErrEndOfStream is returned when the feed has been closed and no more
	// events will arrive. A clean stop, not a failure.
	ErrEndOfStream = errors.New("end of stream")
)

// Feed is the sequential event pull the consumer runs on. Next blocks until
// a message is available, the subscription is cancelled, or the connection
// fails. Per-event decode failures come back as the decoder's errors so the
// caller can skip the message and keep pulling.
type Feed interface {
	Next(ctx context.Context) (event.KeywordEvent, error)
	Close() error
}
