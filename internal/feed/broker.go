package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// VerifyBusReachable dials the first broker and asks it for the cluster's
// broker list. Run once at startup; failure means no events can ever be
// pulled, so the caller treats it as fatal.
func VerifyBusReachable(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("%w: no brokers configured", ErrUnavailable)
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("%w: dialing broker %s: %v", ErrUnavailable, brokers[0], err)
	}
	defer conn.Close()

	cluster, err := conn.Brokers()
	if err != nil {
		return fmt.Errorf("%w: listing brokers via %s: %v", ErrUnavailable, brokers[0], err)
	}

	slog.Info("[Kafka] Bus reachable", "broker", brokers[0], "cluster_size", len(cluster))
	return nil
}

// IsTopicAvailable reports whether the topic has at least one partition.
// Absence is the caller's to handle; producers may create the topic later,
// so a missing topic does not by itself abort startup.
func IsTopicAvailable(ctx context.Context, brokers []string, topic string) (bool, error) {
	if len(brokers) == 0 {
		return false, fmt.Errorf("%w: no brokers configured", ErrUnavailable)
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return false, fmt.Errorf("%w: dialing broker %s: %v", ErrUnavailable, brokers[0], err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}
