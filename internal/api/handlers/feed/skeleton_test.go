package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Astrofeed/internal/config"
	"Astrofeed/internal/core/feeds"
)

const (
	testPublisher = "did:plc:pub"
	testPinned    = "at://did:plc:pub/app.bsky.feed.post/pinned"
)

// mockSkeletonRepo implements feeds.SkeletonRepository for testing.
type mockSkeletonRepo struct {
	getFeedPageFunc   func(ctx context.Context, feedName string, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error)
	getSignupPageFunc func(ctx context.Context, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error)
}

func (m *mockSkeletonRepo) GetFeedPage(ctx context.Context, feedName string, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error) {
	if m.getFeedPageFunc != nil {
		return m.getFeedPageFunc(ctx, feedName, cursor, limit)
	}
	return nil, nil
}

func (m *mockSkeletonRepo) GetSignupPage(ctx context.Context, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error) {
	if m.getSignupPageFunc != nil {
		return m.getSignupPageFunc(ctx, cursor, limit)
	}
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Hostname:     "feeds.example.com",
		ServiceDID:   "did:web:feeds.example.com",
		PublisherDID: testPublisher,
		PinnedPosts:  []config.PinnedPost{{URI: testPinned, Weight: 1}},
	}
}

func doSkeletonRequest(t *testing.T, repo feeds.SkeletonRepository, query string) (*httptest.ResponseRecorder, skeletonResponse) {
	t.Helper()

	handler := NewSkeletonHandler(testConfig(), repo)
	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.getFeedSkeleton?"+query, nil)
	rec := httptest.NewRecorder()
	handler.HandleGetFeedSkeleton(rec, req)

	var resp skeletonResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, resp
}

func astroFeedQuery() string {
	return "feed=" + feeds.URI(testPublisher, "astro") + "&limit=10"
}

func TestSkeletonFirstPageWithPinnedPost(t *testing.T) {
	repo := &mockSkeletonRepo{
		getFeedPageFunc: func(_ context.Context, feedName string, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error) {
			if feedName != "astro" {
				t.Errorf("queried feed %q, want astro", feedName)
			}
			if cursor != nil {
				t.Error("first page should have a nil cursor")
			}
			return []feeds.PostRef{
				{URI: "at://did:plc:a/app.bsky.feed.post/z", CID: "Cz", IndexedAt: time.UnixMilli(1700000003000)},
				{URI: "at://did:plc:a/app.bsky.feed.post/y", CID: "Cy", IndexedAt: time.UnixMilli(1700000002000)},
			}, nil
		},
	}

	rec, resp := doSkeletonRequest(t, repo, astroFeedQuery())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	if resp.Cursor != "1700000002000::Cy" {
		t.Errorf("cursor = %q, want %q", resp.Cursor, "1700000002000::Cy")
	}
	if len(resp.Feed) != 3 {
		t.Fatalf("feed has %d entries, want 3 (pinned + 2 rows)", len(resp.Feed))
	}
	if resp.Feed[0].Post != testPinned {
		t.Errorf("position 0 = %q, want pinned post", resp.Feed[0].Post)
	}
	if resp.Feed[1].Post != "at://did:plc:a/app.bsky.feed.post/z" ||
		resp.Feed[2].Post != "at://did:plc:a/app.bsky.feed.post/y" {
		t.Errorf("unexpected feed order: %+v", resp.Feed)
	}
}

func TestSkeletonSecondPageEOF(t *testing.T) {
	repo := &mockSkeletonRepo{
		getFeedPageFunc: func(_ context.Context, _ string, cursor *feeds.Cursor, _ int) ([]feeds.PostRef, error) {
			if cursor == nil {
				t.Fatal("second page should carry a cursor")
			}
			if cursor.IndexedAtMS != 1700000002000 || cursor.CID != "Cy" {
				t.Errorf("cursor = (%d, %q), want (1700000002000, Cy)", cursor.IndexedAtMS, cursor.CID)
			}
			return nil, nil
		},
	}

	rec, resp := doSkeletonRequest(t, repo, astroFeedQuery()+"&cursor=1700000002000::Cy")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if resp.Cursor != feeds.CursorEOF {
		t.Errorf("cursor = %q, want eof", resp.Cursor)
	}
	if len(resp.Feed) != 0 {
		t.Errorf("feed should be empty past the end, got %d entries (no pinned insert off the first page)", len(resp.Feed))
	}
}

func TestSkeletonEOFCursorShortCircuits(t *testing.T) {
	repo := &mockSkeletonRepo{
		getFeedPageFunc: func(_ context.Context, _ string, _ *feeds.Cursor, _ int) ([]feeds.PostRef, error) {
			t.Fatal("eof cursor must not hit the repository")
			return nil, nil
		},
	}

	rec, resp := doSkeletonRequest(t, repo, astroFeedQuery()+"&cursor=eof")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if resp.Cursor != feeds.CursorEOF || len(resp.Feed) != 0 {
		t.Errorf("eof request should return empty eof page, got cursor %q with %d entries", resp.Cursor, len(resp.Feed))
	}
}

func TestSkeletonUnknownFeed(t *testing.T) {
	rec, _ := doSkeletonRequest(t, &mockSkeletonRepo{}, "feed=at://did:plc:other/app.bsky.feed.generator/whatever")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown feed status %d, want 400", rec.Code)
	}

	rec, _ = doSkeletonRequest(t, &mockSkeletonRepo{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing feed status %d, want 400", rec.Code)
	}
}

func TestSkeletonMalformedCursor(t *testing.T) {
	for _, cursor := range []string{"garbage", "::", "abc::def::", "12x::Cy"} {
		rec, _ := doSkeletonRequest(t, &mockSkeletonRepo{}, astroFeedQuery()+"&cursor="+cursor)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("cursor %q status %d, want 400", cursor, rec.Code)
		}
	}
}

func TestSkeletonInvalidLimit(t *testing.T) {
	for _, limit := range []string{"0", "-5", "101", "abc"} {
		rec, _ := doSkeletonRequest(t, &mockSkeletonRepo{},
			"feed="+feeds.URI(testPublisher, "astro")+"&limit="+limit)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit %q status %d, want 400", limit, rec.Code)
		}
	}
}

func TestSkeletonSignupFeedDispatch(t *testing.T) {
	called := false
	repo := &mockSkeletonRepo{
		getSignupPageFunc: func(_ context.Context, _ *feeds.Cursor, _ int) ([]feeds.PostRef, error) {
			called = true
			return []feeds.PostRef{
				{URI: "at://did:plc:bot/app.bsky.feed.post/s1", CID: "Cs", IndexedAt: time.UnixMilli(1700000001000)},
			}, nil
		},
		getFeedPageFunc: func(_ context.Context, _ string, _ *feeds.Cursor, _ int) ([]feeds.PostRef, error) {
			t.Fatal("signup feed must not use the classifier feed query")
			return nil, nil
		},
	}

	rec, resp := doSkeletonRequest(t, repo, "feed="+feeds.URI(testPublisher, feeds.SignupRKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !called {
		t.Fatal("signup feed should dispatch to the bot actions query")
	}
	if resp.Cursor != "1700000001000::Cs" {
		t.Errorf("cursor = %q, want 1700000001000::Cs", resp.Cursor)
	}
}

func TestPickPinnedWeighted(t *testing.T) {
	pinned := []config.PinnedPost{
		{URI: "at://a", Weight: 1},
		{URI: "at://b", Weight: 9},
	}

	seen := map[string]int{}
	for i := 0; i < 1000; i++ {
		seen[pickPinned(pinned)]++
	}
	if seen["at://a"] == 0 || seen["at://b"] == 0 {
		t.Errorf("both pinned posts should be drawn eventually: %v", seen)
	}
	if seen["at://b"] <= seen["at://a"] {
		t.Errorf("weight 9 should dominate weight 1: %v", seen)
	}

	if pickPinned(nil) != "" {
		t.Error("no pinned posts configured should pick nothing")
	}
}

func TestDescribeFeedGenerator(t *testing.T) {
	handler := NewDescribeHandler(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.describeFeedGenerator", nil)
	rec := httptest.NewRecorder()
	handler.HandleDescribe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	var resp struct {
		DID   string              `json:"did"`
		Feeds []map[string]string `json:"feeds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DID != "did:web:feeds.example.com" {
		t.Errorf("did = %q", resp.DID)
	}
	if len(resp.Feeds) != len(feeds.All)+1 {
		t.Errorf("published %d feeds, want %d", len(resp.Feeds), len(feeds.All)+1)
	}
}

func TestDIDDocHostGate(t *testing.T) {
	cfg := testConfig()
	handler := NewWellKnownHandler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/did.json", nil)
	rec := httptest.NewRecorder()
	handler.HandleDIDDoc(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("matching host: status %d, want 200", rec.Code)
	}

	var doc struct {
		ID      string `json:"id"`
		Service []struct {
			ServiceEndpoint string `json:"serviceEndpoint"`
		} `json:"service"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID != cfg.ServiceDID {
		t.Errorf("doc id = %q, want %q", doc.ID, cfg.ServiceDID)
	}
	if len(doc.Service) != 1 || doc.Service[0].ServiceEndpoint != "https://feeds.example.com" {
		t.Errorf("unexpected service endpoint: %+v", doc.Service)
	}

	// Identity that does not resolve to this host: 404.
	cfg.ServiceDID = "did:web:somewhere-else.example"
	rec = httptest.NewRecorder()
	handler.HandleDIDDoc(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("mismatched host: status %d, want 404", rec.Code)
	}
}
