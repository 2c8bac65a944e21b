package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/buzzline-lab/buzztrack/internal/consumer"
	corecfg "github.com/buzzline-lab/buzztrack/internal/core/config"
	"github.com/buzzline-lab/buzztrack/internal/core/storage/sqlite"
	"github.com/buzzline-lab/buzztrack/internal/feed"
	"github.com/buzzline-lab/buzztrack/internal/server"
	"github.com/buzzline-lab/buzztrack/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "buzztrack.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	runID := uuid.New().String()
	slog.Info("Starting buzztrack consumer", "run_id", runID)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"topic", cfg.Kafka.Topic,
		"group_id", cfg.Kafka.GroupID,
		"database", cfg.Database.Path,
		"snapshot", cfg.Snapshot.Path,
	)

	// 2. Initialize Counter Store (SQLite, fresh epoch per run)
	store, err := sqlite.NewAdapter(cfg.Database.Path, cfg.Database.AutoMigrate)
	if err != nil {
		slog.Error("Failed to initialize counter store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 3. Initialize Snapshot Mirror
	mirror := snapshot.NewFileMirror(cfg.Snapshot.Path)

	// 4. Verify Bus and Topic
	dialCtx, dialCancel := context.WithTimeout(context.Background(), cfg.Kafka.ParsedDialTimeout())
	if err := feed.VerifyBusReachable(dialCtx, cfg.Kafka.Brokers); err != nil {
		dialCancel()
		slog.Error("Message bus unreachable", "brokers", cfg.Kafka.Brokers, "error", err)
		os.Exit(1)
	}
	available, err := feed.IsTopicAvailable(dialCtx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	dialCancel()
	if err != nil {
		slog.Error("Failed to check topic availability", "topic", cfg.Kafka.Topic, "error", err)
		os.Exit(1)
	}
	if !available {
		// Producers may create the topic later; subscribing still works.
		slog.Warn("Topic not available yet", "topic", cfg.Kafka.Topic)
	}

	// 5. Initialize Event Feed
	eventFeed := feed.NewKafkaFeed(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer eventFeed.Close()

	// 6. Initialize Consumer
	cons := consumer.New(store, mirror, eventFeed, runID)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler -> triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return cons.Run(gctx)
	})

	if cfg.Server.Enabled {
		srv := server.New(
			fmtAddr(cfg.Server.Host, cfg.Server.Port),
			store.DB(),
			store,
			func() string { return cons.State().String() },
			cfg.Server.Mode,
		)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, consumer.ErrInitialization) {
			slog.Error("Consumer failed during initialization", "error", err)
		} else {
			slog.Error("Consumer stopped with error", "error", err)
		}
		os.Exit(1)
	}

	slog.Info("Shutdown complete", "run_id", runID)
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
