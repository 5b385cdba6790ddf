package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avralex/tradebrief/pkg/models"
)

func rssDoc(items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>feed</title>`)
	for i, title := range items {
		pub := time.Now().Add(time.Duration(-i) * time.Hour).Format(time.RFC1123Z)
		fmt.Fprintf(&b, `<item><title>%s</title><link>https://example.com/%d</link><pubDate>%s</pubDate></item>`, title, i, pub)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestFeedNewsHeadlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") != "AAPL" {
			t.Errorf("unexpected symbol: %s", r.URL.Query().Get("s"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssDoc("Apple hits record high", "iPhone sales beat estimates", "Analysts raise targets"))
	}))
	defer server.Close()

	src := NewFeedNewsWithFeeds([]NewsFeed{
		{Name: "Test Feed", URLTemplate: server.URL + "/?s=%s"},
	})

	items, err := src.Headlines(context.Background(), "AAPL", 2)
	if err != nil {
		t.Fatalf("Headlines failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 headlines after limit, got %d", len(items))
	}
	if items[0].Title != "Apple hits record high" {
		t.Errorf("expected newest headline first, got %q", items[0].Title)
	}
	if items[0].Publisher != "Test Feed" {
		t.Errorf("expected publisher 'Test Feed', got %q", items[0].Publisher)
	}
}

func TestFeedNewsSkipsFailedFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc("Still standing"))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()

	src := NewFeedNewsWithFeeds([]NewsFeed{
		{Name: "Bad", URLTemplate: bad.URL + "/?s=%s"},
		{Name: "Good", URLTemplate: good.URL + "/?s=%s"},
	})

	items, err := src.Headlines(context.Background(), "AAPL", 5)
	if err != nil {
		t.Fatalf("Headlines failed despite a surviving feed: %v", err)
	}
	if len(items) != 1 || items[0].Publisher != "Good" {
		t.Fatalf("expected the single surviving headline, got %+v", items)
	}
}

func TestFeedNewsAllFeedsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()

	src := NewFeedNewsWithFeeds([]NewsFeed{
		{Name: "Bad", URLTemplate: bad.URL + "/?s=%s"},
	})

	if _, err := src.Headlines(context.Background(), "AAPL", 5); err == nil {
		t.Fatal("expected error when every feed fails")
	}
}

func TestDigest(t *testing.T) {
	items := []models.Headline{
		{Title: "Bitcoin tops 100k", Publisher: "Yahoo Finance"},
		{Title: "ETF inflows surge", Publisher: "Nasdaq"},
	}
	got := Digest(items)
	want := "- [Yahoo Finance] Bitcoin tops 100k\n- [Nasdaq] ETF inflows surge"
	if got != want {
		t.Errorf("digest mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestDigestEmpty(t *testing.T) {
	if got := Digest(nil); got != NoNewsFallback {
		t.Errorf("expected fallback for empty digest, got %q", got)
	}
}

// failingNews always errors.
type failingNews struct{}

func (failingNews) Name() string { return "failing" }
func (failingNews) Headlines(context.Context, string, int) ([]models.Headline, error) {
	return nil, errors.New("boom")
}

func TestFetchDigestNeverFails(t *testing.T) {
	got := FetchDigest(context.Background(), failingNews{}, "AAPL", 3)
	if got != NewsErrorFallback {
		t.Errorf("expected error fallback, got %q", got)
	}
	if got == "" {
		t.Error("digest must never be empty")
	}
}

func TestCleanHTML(t *testing.T) {
	got := cleanHTML("<b>Apple</b> beats &amp; raises")
	if got != "Apple beats & raises" {
		t.Errorf("cleanHTML mismatch: %q", got)
	}
}

func TestSortHeadlinesByDate(t *testing.T) {
	now := time.Now()
	items := []models.Headline{
		{Title: "old", PublishedAt: now.Add(-2 * time.Hour)},
		{Title: "new", PublishedAt: now},
		{Title: "mid", PublishedAt: now.Add(-1 * time.Hour)},
	}
	sortHeadlinesByDate(items)
	if items[0].Title != "new" || items[2].Title != "old" {
		t.Errorf("expected newest first, got %v %v %v", items[0].Title, items[1].Title, items[2].Title)
	}
}
