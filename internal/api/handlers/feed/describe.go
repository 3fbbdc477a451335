package feed

import (
	"net/http"

	"Astrofeed/internal/config"
	"Astrofeed/internal/core/feeds"
)

// DescribeHandler serves app.bsky.feed.describeFeedGenerator.
type DescribeHandler struct {
	cfg *config.Config
}

// NewDescribeHandler creates the describeFeedGenerator handler.
func NewDescribeHandler(cfg *config.Config) *DescribeHandler {
	return &DescribeHandler{cfg: cfg}
}

// HandleDescribe enumerates the published feed URIs.
func (h *DescribeHandler) HandleDescribe(w http.ResponseWriter, _ *http.Request) {
	uris := feeds.PublishedURIs(h.cfg.PublisherDID)
	feedList := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		feedList = append(feedList, map[string]string{"uri": uri})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"did":   h.cfg.ServiceDID,
		"feeds": feedList,
	})
}
