package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Astrofeed/internal/api/handlers/feed"
	"Astrofeed/internal/config"
	"Astrofeed/internal/core/feeds"
)

// RegisterFeedRoutes registers the feed generator endpoints on the router.
func RegisterFeedRoutes(r chi.Router, cfg *config.Config, repo feeds.SkeletonRepository) {
	skeleton := feed.NewSkeletonHandler(cfg, repo)
	describe := feed.NewDescribeHandler(cfg)
	wellKnown := feed.NewWellKnownHandler(cfg)
	index := feed.NewIndexHandler(cfg)

	r.Get("/", index.HandleIndex)
	r.Get("/.well-known/did.json", wellKnown.HandleDIDDoc)
	r.Get("/xrpc/app.bsky.feed.describeFeedGenerator", describe.HandleDescribe)
	r.Get("/xrpc/app.bsky.feed.getFeedSkeleton", skeleton.HandleGetFeedSkeleton)
	r.Handle("/metrics", promhttp.Handler())
}
