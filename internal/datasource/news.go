package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/avralex/tradebrief/pkg/models"
)

// Fallback sentences for the news digest. The digest is never an empty
// string: zero items and fetch failures each map to a fixed sentence.
const (
	NoNewsFallback    = "No recent headlines for this symbol."
	NewsErrorFallback = "Could not load news headlines."
)

// NewsFeed is a per-symbol RSS feed template. The symbol is interpolated
// into URLTemplate with fmt.Sprintf.
type NewsFeed struct {
	Name        string
	URLTemplate string
}

// DefaultNewsFeeds lists the configured per-symbol headline feeds.
var DefaultNewsFeeds = []NewsFeed{
	{
		Name:        "Yahoo Finance",
		URLTemplate: "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US",
	},
	{
		Name:        "Nasdaq",
		URLTemplate: "https://www.nasdaq.com/feed/rssoutbound?symbol=%s",
	},
}

// FeedNews implements NewsSource over per-symbol RSS feeds.
type FeedNews struct {
	feeds   []NewsFeed
	cache   *Cache
	limiter *RateLimiter
	parser  *gofeed.Parser
}

// NewFeedNews creates a news source with the default feeds.
func NewFeedNews() *FeedNews {
	return NewFeedNewsWithFeeds(DefaultNewsFeeds)
}

// NewFeedNewsWithFeeds creates a news source with custom feeds.
func NewFeedNewsWithFeeds(feeds []NewsFeed) *FeedNews {
	return &FeedNews{
		feeds:   feeds,
		cache:   NewCache(10 * time.Minute),
		limiter: NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
	}
}

// Name returns the news source name.
func (n *FeedNews) Name() string { return "RSS Feeds" }

// Headlines returns recent news items for the symbol, newest first.
// All configured feeds are fetched concurrently; a feed that fails is
// skipped. An error is returned only when every feed fails.
func (n *FeedNews) Headlines(ctx context.Context, symbol string, limit int) ([]models.Headline, error) {
	cacheKey := fmt.Sprintf("news:%s:%d", symbol, limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]models.Headline), nil
	}

	results := make([][]models.Headline, len(n.feeds))
	errs := make([]error, len(n.feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range n.feeds {
		i, feed := i, feed
		g.Go(func() error {
			items, err := n.fetchFeed(gctx, feed, symbol)
			if err != nil {
				// Non-critical: record and skip failed feeds.
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Headline
	var firstErr error
	for i, items := range results {
		all = append(all, items...)
		if errs[i] != nil && firstErr == nil {
			firstErr = errs[i]
		}
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}

	sortHeadlinesByDate(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	n.cache.Set(cacheKey, all)
	return all, nil
}

// fetchFeed parses one RSS feed for a symbol.
func (n *FeedNews) fetchFeed(ctx context.Context, feed NewsFeed, symbol string) ([]models.Headline, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	parsed, err := n.parser.ParseURLWithContext(fmt.Sprintf(feed.URLTemplate, symbol), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", feed.Name, err)
	}

	items := make([]models.Headline, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		h := models.Headline{
			Title:     cleanHTML(item.Title),
			Publisher: feed.Name,
			URL:       item.Link,
		}
		if item.PublishedParsed != nil {
			h.PublishedAt = *item.PublishedParsed
		}
		items = append(items, h)
	}

	return items, nil
}

// --- Digest rendering ---

// Digest renders headlines as newline-joined "- [publisher] headline" lines.
func Digest(items []models.Headline) string {
	if len(items) == 0 {
		return NoNewsFallback
	}
	var b strings.Builder
	for i, h := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s] %s", h.Publisher, h.Title)
	}
	return b.String()
}

// FetchDigest fetches headlines from a source and renders the digest.
// It never fails: zero items and errors both map to fallback sentences.
func FetchDigest(ctx context.Context, src NewsSource, symbol string, limit int) string {
	items, err := src.Headlines(ctx, symbol, limit)
	if err != nil {
		return NewsErrorFallback
	}
	return Digest(items)
}

// --- Internal helpers ---

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// sortHeadlinesByDate sorts headlines newest first. Insertion sort is fine
// for slices this small.
func sortHeadlinesByDate(items []models.Headline) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && items[j].PublishedAt.Before(key.PublishedAt) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
