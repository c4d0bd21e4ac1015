// Package main runs the Bookyo sync daemon: it holds the pending-write
// queues, watches connectivity, and drains queued listings and book
// publishes whenever the network comes back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookyo/client/internal/analytics"
	"github.com/bookyo/client/internal/auth"
	"github.com/bookyo/client/internal/config"
	"github.com/bookyo/client/internal/connectivity"
	"github.com/bookyo/client/internal/kvstore"
	"github.com/bookyo/client/internal/listing"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/notifications"
	"github.com/bookyo/client/internal/objectstore"
	"github.com/bookyo/client/internal/pending"
	"github.com/bookyo/client/internal/publish"
	"github.com/bookyo/client/internal/remote"
	"github.com/bookyo/client/internal/worker"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "bookyo_outputs.json", "path to the platform outputs document")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logging.Init(os.Stderr, level)

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bookyo-syncd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Info("Bookyo sync daemon starting",
		map[string]interface{}{"version": Version})

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer kv.Close()

	images, err := pending.NewImageCache(cfg.CacheDir)
	if err != nil {
		return err
	}

	authClient := remote.NewAuthClient(cfg.Auth.Endpoint, cfg.Auth.ClientID)
	session := auth.NewManager(authClient, kv)
	if err := session.Restore(ctx); err != nil {
		logging.Warn("Session restore failed",
			map[string]interface{}{"error": err.Error()})
	}

	api := remote.NewClient(cfg.API.Endpoint, cfg.API.APIKey,
		remote.WithTokenSource(authClient.Token),
		remote.WithRealtimeEndpoint(cfg.API.Realtime))

	store := objectstore.New(&objectstore.Config{
		Endpoint:       cfg.Storage.Endpoint,
		Bucket:         cfg.Storage.Bucket,
		Region:         cfg.Storage.Region,
		AccessKey:      cfg.Storage.AccessKey,
		SecretKey:      cfg.Storage.SecretKey,
		ForcePathStyle: cfg.Storage.ForcePathStyle,
	})

	monitor := connectivity.NewProbeMonitor(cfg.Connectivity.ProbeAddrs,
		connectivity.WithPollInterval(cfg.Connectivity.PollInterval()),
		connectivity.WithDialTimeout(cfg.Connectivity.DialTimeout()))

	recorder := analytics.NewLogRecorder()

	listings := pending.NewListingStore(kv, images)
	publishes := pending.NewPublishStore(kv, images)

	creator := listing.NewCreator(api, store, session, listings, monitor, recorder)
	publisher := publish.NewPublisher(api, store, publishes, monitor, recorder)

	scheduler := worker.NewScheduler(monitor,
		worker.WithInitialBackoff(cfg.Worker.InitialBackoff()))
	defer scheduler.Stop()

	listingWorker := worker.NewListingWorker(scheduler, listings, creator)
	publishWorker := worker.NewPublishWorker(scheduler, publishes, publisher)
	creator.AttachQueue(listingWorker)
	publisher.AttachQueue(publishWorker)

	notifier := notifications.NewService(api, session, monitor)
	notifier.Start(ctx)
	defer notifier.Stop()

	// Anything queued from a previous run gets a drain at startup; after
	// that, every offline-to-online transition triggers another.
	listingWorker.EnqueueAll()
	publishWorker.EnqueueAll()

	drainOnReconnect(ctx, monitor, listingWorker, publishWorker)

	logging.Info("Bookyo sync daemon stopped", nil)
	return nil
}

// drainOnReconnect blocks until ctx is done, enqueueing drain-all work on
// each transition to connected.
func drainOnReconnect(ctx context.Context, monitor connectivity.Monitor,
	listings *worker.ListingWorker, publishes *worker.PublishWorker) {
	wasConnected := false
	for connected := range monitor.Observe(ctx) {
		if connected && !wasConnected {
			logging.Info("Network restored, draining pending queues", nil)
			listings.EnqueueAll()
			publishes.EnqueueAll()
		}
		wasConnected = connected
	}
}
