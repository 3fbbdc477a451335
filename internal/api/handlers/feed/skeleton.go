package feed

import (
	"log"
	"math/rand"
	"net/http"
	"strconv"

	"Astrofeed/internal/config"
	"Astrofeed/internal/core/feeds"
	"Astrofeed/internal/metrics"
)

const defaultLimit = 20

// SkeletonHandler serves app.bsky.feed.getFeedSkeleton.
type SkeletonHandler struct {
	cfg  *config.Config
	repo feeds.SkeletonRepository
}

// NewSkeletonHandler creates the feed skeleton handler.
func NewSkeletonHandler(cfg *config.Config, repo feeds.SkeletonRepository) *SkeletonHandler {
	return &SkeletonHandler{cfg: cfg, repo: repo}
}

type skeletonPost struct {
	Post string `json:"post"`
}

type skeletonResponse struct {
	Cursor string         `json:"cursor"`
	Feed   []skeletonPost `json:"feed"`
}

// HandleGetFeedSkeleton resolves the requested feed URI, pages through the
// store with the composite (indexed_at, cid) cursor and returns the post
// URI list. The first page of a feed gets a weighted-random pinned post at
// position 0 when any are configured.
func (h *SkeletonHandler) HandleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	feedURI := r.URL.Query().Get("feed")
	name, ok := feeds.ResolveURI(h.cfg.PublisherDID, feedURI)
	if !ok {
		writeError(w, http.StatusBadRequest, "UnsupportedAlgorithm", "Unsupported algorithm")
		return
	}
	metrics.FeedRequests.WithLabelValues(name).Inc()

	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursorParam := r.URL.Query().Get("cursor")

	// A feed the client has scrolled to the end of; no reason to hit the
	// database again.
	if cursorParam == feeds.CursorEOF {
		writeJSON(w, http.StatusOK, skeletonResponse{Cursor: feeds.CursorEOF, Feed: []skeletonPost{}})
		return
	}

	var cursor *feeds.Cursor
	if cursorParam != "" {
		parsed, err := feeds.ParseCursor(cursorParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
			return
		}
		cursor = &parsed
	}

	var (
		refs []feeds.PostRef
		err  error
	)
	if name == feeds.SignupName {
		refs, err = h.repo.GetSignupPage(r.Context(), cursor, limit)
	} else {
		refs, err = h.repo.GetFeedPage(r.Context(), name, cursor, limit)
	}
	if err != nil {
		log.Printf("Failed to query feed %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
		return
	}

	resp := skeletonResponse{
		Cursor: feeds.CursorEOF,
		Feed:   make([]skeletonPost, 0, len(refs)+1),
	}

	// First page: pin a post up top.
	if cursor == nil {
		if pinned := pickPinned(h.cfg.PinnedPosts); pinned != "" {
			resp.Feed = append(resp.Feed, skeletonPost{Post: pinned})
		}
	}

	for _, ref := range refs {
		resp.Feed = append(resp.Feed, skeletonPost{Post: ref.URI})
	}
	if len(refs) > 0 {
		last := refs[len(refs)-1]
		resp.Cursor = feeds.BuildCursor(last.IndexedAt, last.CID)
	}

	writeJSON(w, http.StatusOK, resp)
}

// pickPinned draws one pinned post URI by weight, or "" when none are
// configured.
func pickPinned(pinned []config.PinnedPost) string {
	total := 0
	for _, p := range pinned {
		total += p.Weight
	}
	if total == 0 {
		return ""
	}

	n := rand.Intn(total)
	for _, p := range pinned {
		n -= p.Weight
		if n < 0 {
			return p.URI
		}
	}
	return pinned[len(pinned)-1].URI
}
