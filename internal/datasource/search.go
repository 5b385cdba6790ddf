package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/avralex/tradebrief/pkg/models"
)

// SearchNews implements NewsSource by scraping the DuckDuckGo HTML endpoint
// for "<symbol> news". It carries no publication dates; result order is the
// engine's relevance order.
type SearchNews struct {
	baseURL string
	cache   *Cache
	limiter *RateLimiter
}

// SearchNewsOption configures the search news source.
type SearchNewsOption func(*SearchNews)

// WithSearchBaseURL overrides the search endpoint (used in tests).
func WithSearchBaseURL(u string) SearchNewsOption {
	return func(s *SearchNews) { s.baseURL = strings.TrimRight(u, "/") }
}

// NewSearchNews creates a DuckDuckGo-backed news source.
func NewSearchNews(opts ...SearchNewsOption) *SearchNews {
	s := &SearchNews{
		baseURL: "https://html.duckduckgo.com",
		cache:   NewCache(10 * time.Minute),
		limiter: NewRateLimiter(1, time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the news source name.
func (s *SearchNews) Name() string { return "DuckDuckGo" }

// Headlines returns up to limit search results for "<symbol> news".
func (s *SearchNews) Headlines(ctx context.Context, symbol string, limit int) ([]models.Headline, error) {
	cacheKey := fmt.Sprintf("search:%s:%d", symbol, limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]models.Headline), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.QueryEscape(symbol + " news")
	reqURL := fmt.Sprintf("%s/html/?q=%s&df=d", s.baseURL, query)

	body, _, err := doGet(ctx, reqURL, map[string]string{
		"Accept": "text/html",
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", symbol, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var items []models.Headline
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(".result__a").Text())
		if title == "" {
			return true
		}
		site := strings.TrimSpace(sel.Find(".result__url").Text())
		items = append(items, models.Headline{
			Title:     title,
			Publisher: hostOnly(site),
			URL:       sel.Find(".result__a").AttrOr("href", ""),
		})
		return limit <= 0 || len(items) < limit
	})

	s.cache.Set(cacheKey, items)
	return items, nil
}

// hostOnly reduces a displayed result URL to its host part.
func hostOnly(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "web"
	}
	return s
}
