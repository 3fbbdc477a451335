package posts

import "time"

// Post is one indexed firehose post. Feed membership is stored as one
// boolean per configured feed, keyed by feed short name.
type Post struct {
	ID        int64
	URI       string // at://<author-did>/app.bsky.feed.post/<rkey>
	CID       string
	Author    string // author DID
	Text      string
	IndexedAt time.Time
	Hidden    bool

	// Feeds maps feed short name to membership, as produced by the
	// classifier. Absent names are treated as false on write.
	Feeds map[string]bool
}
