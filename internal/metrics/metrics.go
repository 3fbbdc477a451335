// Package metrics holds the prometheus collectors shared by the ingest and
// server processes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FirehoseEvents counts frames received from the relay.
	FirehoseEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astrofeed_firehose_events_total",
		Help: "Raw frames received from the relay subscription.",
	})

	// ParseErrors counts frames that failed to parse. A single malformed
	// frame is skipped, never fatal.
	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astrofeed_firehose_parse_errors_total",
		Help: "Frames dropped due to parse failures.",
	})

	// PostsIndexed counts posts written to the store.
	PostsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astrofeed_posts_indexed_total",
		Help: "Posts inserted by the commit processors.",
	})

	// PostsDeleted counts posts removed from the store.
	PostsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "astrofeed_posts_deleted_total",
		Help: "Posts deleted by the commit processors.",
	})

	// QueueFrames tracks the frame queue depth.
	QueueFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "astrofeed_queue_frames",
		Help: "Frames currently buffered between client and processors.",
	})

	// QueueBytes tracks the frame queue size in bytes.
	QueueBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "astrofeed_queue_bytes",
		Help: "Bytes currently buffered between client and processors.",
	})

	// FeedRequests counts getFeedSkeleton requests per feed short name.
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "astrofeed_feed_requests_total",
		Help: "getFeedSkeleton requests served, by feed.",
	}, []string{"feed"})
)
