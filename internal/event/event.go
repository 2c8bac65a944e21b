// Package event defines the decoded unit of work flowing through the
// consumer and the decoder that produces it from raw bus payloads.
package event

import "errors"

// Common decode errors. Both are per-event conditions: the consumer skips
// the offending message and keeps pulling from the feed.
var (
	// ErrMalformedPayload is returned when the payload is not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMissingKeyword is returned when keyword_mentioned is absent or empty.
	ErrMissingKeyword = errors.New("missing keyword_mentioned field")
)

// KeywordEvent is a single decoded keyword mention. Ephemeral: created per
// incoming message, applied to the stores, never persisted itself.
type KeywordEvent struct {
	Keyword string
}
