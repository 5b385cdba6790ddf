package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Router routes chat requests through a primary provider with an ordered
// fallback chain. A provider failing the whole retry budget hands the
// request to the next one.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// NewRouter creates a new LLM router with the given primary provider name.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]Provider),
		primary:    primary,
		maxRetries: 1,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Name identifies the router as a composite provider.
func (r *Router) Name() string { return "router" }

// Ping checks the primary provider.
func (r *Router) Ping(ctx context.Context) error {
	p, ok := r.GetProvider(r.primary)
	if !ok {
		return fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p.Ping(ctx)
}

// Chat routes a chat request through the provider chain with fallback.
// It tries the primary provider first, then falls back in order.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, name := range chain {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		log.Printf("llm/router: provider %s failed: %v, trying next", name, err)

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		return nil, ErrNoProviders
	}
	return nil, lastErr
}

// chatWithRetry retries a single provider on transient failures.
// Auth and model errors fail immediately.
func (r *Router) chatWithRetry(ctx context.Context, provider Provider, messages []Message, opts *ChatOptions) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrInvalidModel) || errors.Is(err, ErrContextLength) {
			return nil, err
		}
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay * time.Duration(attempt+1)):
		}
	}
	return nil, lastErr
}

// providerChain returns the ordered primary + fallback provider names,
// deduplicated.
func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.fallbacks)+1)
	chain := make([]string, 0, len(r.fallbacks)+1)
	for _, name := range append([]string{r.primary}, r.fallbacks...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return chain
}
