package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/buzzline-lab/buzztrack/internal/event"
)

// messageReader is the slice of kafka.Reader the feed depends on.
// Tests substitute a scripted reader.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaFeed pulls keyword events from a Kafka topic through a consumer-group
// reader. The group reader commits offsets itself after each ReadMessage, so
// delivery is at-least-once and the feed never manages offsets directly.
type KafkaFeed struct {
	reader messageReader
	topic  string
}

// NewKafkaFeed subscribes to the topic with the given consumer group.
func NewKafkaFeed(brokers []string, topic, groupID string) *KafkaFeed {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})

	slog.Info("[Kafka] Feed subscribed",
		"brokers", brokers,
		"topic", topic,
		"group_id", groupID,
	)

	return &KafkaFeed{reader: reader, topic: topic}
}

// Next blocks until the next message arrives, then decodes it.
//
// Error contract:
//   - decode failures (event.ErrMalformedPayload, event.ErrMissingKeyword)
//     are per-message; the caller skips and pulls again
//   - context cancellation surfaces as the context's error
//   - a closed reader surfaces as ErrEndOfStream
//   - anything else from the bus surfaces as ErrUnavailable
func (f *KafkaFeed) Next(ctx context.Context) (event.KeywordEvent, error) {
	msg, err := f.reader.ReadMessage(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return event.KeywordEvent{}, err
		case errors.Is(err, io.EOF):
			return event.KeywordEvent{}, ErrEndOfStream
		default:
			return event.KeywordEvent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	evt, err := event.Decode(msg.Value)
	if err != nil {
		return event.KeywordEvent{}, fmt.Errorf("decoding message at offset %d: %w", msg.Offset, err)
	}

	slog.Debug("[Kafka] Pulled event",
		"topic", f.topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"keyword", evt.Keyword,
	)

	return evt, nil
}

// Close shuts the reader down; a blocked Next returns ErrEndOfStream.
func (f *KafkaFeed) Close() error {
	return f.reader.Close()
}
