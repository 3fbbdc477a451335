package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Astrofeed/internal/atproto/firehose"
	"Astrofeed/internal/config"
	"Astrofeed/internal/core/accounts"
	"Astrofeed/internal/core/posts"
	"Astrofeed/internal/core/subscriptions"
	"Astrofeed/internal/db/postgres"
)

func main() {
	cfg, err := config.Load(false)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("Connected to feed database")

	if err := postgres.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	postRepo := postgres.NewPostRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve the start cursor: persisted state, unless overridden.
	if err := subRepo.Init(ctx, subscriptions.FirehoseService); err != nil {
		log.Fatal("Failed to initialize subscription state:", err)
	}
	startCursor, err := subRepo.GetCursor(ctx, subscriptions.FirehoseService)
	if err != nil {
		log.Fatal("Failed to read firehose cursor:", err)
	}
	if cfg.CursorOverride != nil {
		log.Printf("Overriding firehose cursor %d with %d", startCursor, *cfg.CursorOverride)
		startCursor = *cfg.CursorOverride
	}

	// Shared pipeline state.
	var cursor, ops atomic.Int64
	cursor.Store(startCursor)

	queue := firehose.NewFrameQueue(cfg.QueueMaxBytes)
	validDIDs := accounts.NewValidDIDCache(accountRepo, cfg.ValidAuthorTTL)
	knownURIs := posts.NewKnownURICache(postRepo, cfg.KnownPostTTL, cfg.KnownPostWindow)

	manager := firehose.NewManager(firehose.ManagerConfig{
		CheckInterval: cfg.CheckInterval,
		Cursor:        &cursor,
		Ops:           &ops,
		SubRepo:       subRepo,
	})

	clientHB := firehose.NewHeartbeat()
	client := firehose.NewClient(cfg.FirehoseBaseURI, queue, &cursor, clientHB)
	manager.Register("firehose-client", clientHB, client.Run)

	for i := 0; i < cfg.WorkerCount; i++ {
		hb := firehose.NewHeartbeat()
		worker := firehose.NewWorker(firehose.WorkerConfig{
			ID:         i,
			Queue:      queue,
			ValidDIDs:  validDIDs,
			KnownURIs:  knownURIs,
			PostRepo:   postRepo,
			SubRepo:    subRepo,
			Cursor:     &cursor,
			Ops:        &ops,
			Heartbeat:  hb,
			ShareEvery: cfg.CursorShareEvery,
			StoreEvery: cfg.CursorStoreEvery,
			Debug:      cfg.Debug,
		})
		manager.Register(fmt.Sprintf("commit-processor-%d", i), hb, worker.Run)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	log.Printf("Starting ingestion: %d workers, cursor %d", cfg.WorkerCount, startCursor)
	if err := manager.Run(ctx); err != nil {
		log.Printf("Ingestion pipeline failed: %v", err)
		os.Exit(1)
	}
	log.Println("Ingestion stopped cleanly")
}
