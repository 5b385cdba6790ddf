// Package analyst runs the news → prompt → chat-completion pipeline that
// turns a market snapshot into trading commentary.
package analyst

import (
	"context"
	"log"

	"github.com/avralex/tradebrief/internal/datasource"
	"github.com/avralex/tradebrief/internal/llm"
)

// ErrorPlaceholder is returned in place of the AI verdict when the provider
// fails. The conversation must complete regardless of provider health, so
// failures degrade to this user-visible string instead of an error.
const ErrorPlaceholder = "⚠️ The analysis engine is unavailable right now. Try again in a minute."

// DefaultNewsLimit caps the headlines folded into one prompt.
const DefaultNewsLimit = 3

// Analyst composes prompts from market data and news, and asks the LLM for
// a verdict.
type Analyst struct {
	provider  llm.Provider
	news      datasource.NewsSource
	opts      *llm.ChatOptions
	newsLimit int
}

// Option configures the analyst.
type Option func(*Analyst)

// WithChatOptions overrides the chat sampling options.
func WithChatOptions(opts *llm.ChatOptions) Option {
	return func(a *Analyst) { a.opts = opts }
}

// WithNewsLimit caps the number of headlines per prompt.
func WithNewsLimit(n int) Option {
	return func(a *Analyst) { a.newsLimit = n }
}

// New creates an analyst over the given LLM provider and news source.
func New(provider llm.Provider, news datasource.NewsSource, opts ...Option) *Analyst {
	a := &Analyst{
		provider:  provider,
		news:      news,
		opts:      &llm.ChatOptions{Temperature: 0.3},
		newsLimit: DefaultNewsLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fetches the news digest, composes the prompt, and returns the
// sanitized model verdict. It never returns an error: provider failures
// degrade to ErrorPlaceholder.
func (a *Analyst) Analyze(ctx context.Context, req Request) string {
	digest := datasource.FetchDigest(ctx, a.news, req.Ticker, a.newsLimit)

	messages := []llm.Message{
		llm.SystemMessage(SystemPrompt),
		llm.UserMessage(ComposePrompt(req, digest)),
	}

	resp, err := a.provider.Chat(ctx, messages, a.opts)
	if err != nil {
		log.Printf("analyst: chat failed for %s: %v", req.Ticker, err)
		return ErrorPlaceholder
	}

	verdict := Sanitize(resp.Content)
	if verdict == "" {
		return ErrorPlaceholder
	}
	return verdict
}
