package firehose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"Astrofeed/internal/core/accounts"
	"Astrofeed/internal/core/feeds"
	"Astrofeed/internal/core/posts"
	"Astrofeed/internal/core/subscriptions"
	"Astrofeed/internal/metrics"
)

const (
	batchMaxFrames = 50
	batchWait      = 500 * time.Millisecond
	idleSleep      = 100 * time.Millisecond
)

// Worker is one commit processor: it drains batches off the frame queue,
// parses commits, filters them through the shared caches, classifies the
// surviving posts and writes them in one transaction per commit.
type Worker struct {
	id int

	queue     *FrameQueue
	validDIDs *accounts.ValidDIDCache
	knownURIs *posts.KnownURICache
	postRepo  posts.Repository
	subRepo   subscriptions.Repository

	cursor *atomic.Int64 // shared cursor cell, published every shareEvery commits
	ops    *atomic.Int64 // shared op counter for the watchdog's rate log
	hb     *Heartbeat

	shareEvery int
	storeEvery int
	debug      bool

	sinceShare int
	sinceStore int
}

// WorkerConfig wires one worker's dependencies.
type WorkerConfig struct {
	ID         int
	Queue      *FrameQueue
	ValidDIDs  *accounts.ValidDIDCache
	KnownURIs  *posts.KnownURICache
	PostRepo   posts.Repository
	SubRepo    subscriptions.Repository
	Cursor     *atomic.Int64
	Ops        *atomic.Int64
	Heartbeat  *Heartbeat
	ShareEvery int
	StoreEvery int
	Debug      bool
}

// NewWorker creates a commit processor.
func NewWorker(cfg WorkerConfig) *Worker {
	return &Worker{
		id:         cfg.ID,
		queue:      cfg.Queue,
		validDIDs:  cfg.ValidDIDs,
		knownURIs:  cfg.KnownURIs,
		postRepo:   cfg.PostRepo,
		subRepo:    cfg.SubRepo,
		cursor:     cfg.Cursor,
		ops:        cfg.Ops,
		hb:         cfg.Heartbeat,
		shareEvery: cfg.ShareEvery,
		storeEvery: cfg.StoreEvery,
		debug:      cfg.Debug,
	}
}

// Run processes frames until the context is cancelled. A malformed frame is
// logged and skipped; it never takes the worker down.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("Commit processor %d started", w.id)
	for {
		batch, err := w.queue.GetMany(ctx, batchMaxFrames, batchWait)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			w.hb.Beat()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleSleep):
			}
			continue
		}

		for _, frame := range batch {
			w.processFrame(ctx, frame)
			w.ops.Add(1)
		}
		w.hb.Beat()
	}
}

func (w *Worker) processFrame(ctx context.Context, frame []byte) {
	commit, err := ParseCommit(frame)
	if err != nil {
		if !errors.Is(err, ErrNotCommit) {
			log.Printf("Worker %d: dropping frame: %v", w.id, err)
			metrics.ParseErrors.Inc()
		}
		return
	}

	if err := w.processCommit(ctx, commit); err != nil {
		log.Printf("Worker %d: failed to process commit seq %d: %v", w.id, commit.Seq, err)
	}
}

// processCommit filters, classifies and persists one commit, then advances
// the cursor bookkeeping.
func (w *Worker) processCommit(ctx context.Context, commit *Commit) error {
	create, err := w.filterCreates(ctx, commit.Creates)
	if err != nil {
		return err
	}
	deletes, err := w.filterDeletes(ctx, commit.Deletes)
	if err != nil {
		return err
	}

	if len(create) > 0 || len(deletes) > 0 {
		if err := w.postRepo.CreatePosts(ctx, create, deletes); err != nil {
			return err
		}

		for _, p := range create {
			w.knownURIs.Add(p.URI)
		}
		w.knownURIs.Remove(deletes...)

		metrics.PostsIndexed.Add(float64(len(create)))
		metrics.PostsDeleted.Add(float64(len(deletes)))

		if w.debug {
			for _, p := range create {
				log.Printf("Worker %d: indexed %s by %s", w.id, p.URI, p.Author)
			}
		}
	}

	return w.advanceCursor(ctx, commit.Seq)
}

// filterCreates keeps creates from valid authors whose URI is not already
// known. The known-URI check turns replayed and raced creates into no-ops.
func (w *Worker) filterCreates(ctx context.Context, creates []PostCreate) ([]*posts.Post, error) {
	var out []*posts.Post
	for _, c := range creates {
		valid, err := w.validDIDs.Contains(ctx, c.Author)
		if err != nil {
			return nil, fmt.Errorf("check author %s: %w", c.Author, err)
		}
		if !valid {
			continue
		}

		known, err := w.knownURIs.Contains(ctx, c.URI)
		if err != nil {
			return nil, fmt.Errorf("check uri %s: %w", c.URI, err)
		}
		if known {
			continue
		}

		out = append(out, &posts.Post{
			URI:    c.URI,
			CID:    c.CID,
			Author: c.Author,
			Text:   c.Text,
			// Millisecond precision so the timestamp survives a trip
			// through the page cursor unchanged.
			IndexedAt: time.Now().UTC().Truncate(time.Millisecond),
			Feeds:     feeds.Classify(c.Text),
		})
	}
	return out, nil
}

// filterDeletes keeps deletes whose URI the pipeline has indexed. A delete
// for an unknown URI is a no-op; if its create arrives later on another
// worker the insert goes through and is cleaned up by reconciliation.
func (w *Worker) filterDeletes(ctx context.Context, deletes []string) ([]string, error) {
	var out []string
	for _, uri := range deletes {
		known, err := w.knownURIs.Contains(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("check uri %s: %w", uri, err)
		}
		if !known {
			if w.debug {
				log.Printf("Worker %d: delete for unknown uri %s, skipping", w.id, uri)
			}
			continue
		}
		out = append(out, uri)
	}
	return out, nil
}

// advanceCursor publishes seq to the shared cell every shareEvery commits
// and writes it through to the store every storeEvery commits. The cell
// only moves forward; the store write carries its own monotonic guard.
func (w *Worker) advanceCursor(ctx context.Context, seq int64) error {
	w.sinceShare++
	if w.sinceShare >= w.shareEvery {
		w.sinceShare = 0
		for {
			current := w.cursor.Load()
			if seq <= current || w.cursor.CompareAndSwap(current, seq) {
				break
			}
		}
	}

	w.sinceStore++
	if w.sinceStore >= w.storeEvery {
		w.sinceStore = 0
		if err := w.subRepo.SetCursor(ctx, subscriptions.FirehoseService, seq); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
	}
	return nil
}
