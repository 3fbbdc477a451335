package feeds

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CursorEOF is the sentinel returned when a page exhausts the feed. Clients
// hand it back and get an empty page without a database round trip.
const CursorEOF = "eof"

// Cursor is the composite pagination position: the indexed_at timestamp of
// the last returned row in epoch milliseconds, tie-broken by CID.
type Cursor struct {
	IndexedAtMS int64
	CID         string
}

// IndexedAt returns the timestamp component as a time.Time.
func (c Cursor) IndexedAt() time.Time {
	return time.UnixMilli(c.IndexedAtMS)
}

// String encodes the cursor in the wire form "<epoch_ms>::<cid>".
func (c Cursor) String() string {
	return fmt.Sprintf("%d::%s", c.IndexedAtMS, c.CID)
}

// BuildCursor builds the wire cursor for a row.
func BuildCursor(indexedAt time.Time, cid string) string {
	return Cursor{IndexedAtMS: indexedAt.UnixMilli(), CID: cid}.String()
}

// ParseCursor decodes a wire cursor. The CursorEOF sentinel must be handled
// by the caller before parsing.
func ParseCursor(s string) (Cursor, error) {
	parts := strings.SplitN(s, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Cursor{}, fmt.Errorf("malformed cursor %q", s)
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor timestamp %q", parts[0])
	}

	return Cursor{IndexedAtMS: ms, CID: parts[1]}, nil
}
