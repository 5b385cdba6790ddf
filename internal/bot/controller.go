// Package bot implements the conversation controller: a three-state dialogue
// that collects a ticker and timeframe, builds the market snapshot, and
// renders the AI trading commentary back to the user.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/avralex/tradebrief/internal/analysis"
	"github.com/avralex/tradebrief/internal/analyst"
	"github.com/avralex/tradebrief/internal/datasource"
	"github.com/avralex/tradebrief/pkg/models"
)

// ReferenceTicker is the dollar-strength index fetched alongside every
// analysis to give the model macro context.
const ReferenceTicker = "DX-Y.NYB"

// MessageLimit is the Telegram per-message character cap. Longer reports are
// paginated on line boundaries rather than truncated.
const MessageLimit = 4096

// Reply is one outbound message.
type Reply struct {
	Text           string
	Keyboard       [][]string // reply keyboard rows, nil for none
	RemoveKeyboard bool
}

// Transport is the outbound messaging surface the controller drives. The
// Telegram client implements it; tests use a fake.
type Transport interface {
	Send(ctx context.Context, chatID int64, r Reply) (msgID int, err error)
	Delete(ctx context.Context, chatID int64, msgID int) error
}

// Verdicter produces the AI commentary for a composed request.
// *analyst.Analyst satisfies it.
type Verdicter interface {
	Analyze(ctx context.Context, req analyst.Request) string
}

// timeframeKeyboard mirrors the timeframes users actually pick; the full
// set is still accepted as typed input.
var timeframeKeyboard = [][]string{
	{"5m", "15m", "30m"},
	{"1h", "4h", "1d"},
}

// Controller runs the per-chat finite state machine.
type Controller struct {
	market    datasource.MarketSource
	analyst   Verdicter
	transport Transport
	sessions  *Store
	refTicker string
}

// New creates a conversation controller.
func New(market datasource.MarketSource, verdicter Verdicter, transport Transport) *Controller {
	return &Controller{
		market:    market,
		analyst:   verdicter,
		transport: transport,
		sessions:  NewStore(),
		refTicker: ReferenceTicker,
	}
}

// Sessions exposes the session store (used by the status command).
func (c *Controller) Sessions() *Store { return c.sessions }

// Handle processes one inbound message for a chat. Turns for the same chat
// are serialized by the session store; no failure escapes a turn.
func (c *Controller) Handle(ctx context.Context, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.sessions.Do(chatID, func(s *Session) {
		switch {
		case isCancel(text):
			s.Reset()
			c.send(ctx, chatID, Reply{
				Text:           "🛑 <b>Stopped.</b> Send /start to begin again.",
				RemoveKeyboard: true,
			})
		case text == "/start":
			s.Reset()
			c.send(ctx, chatID, Reply{
				Text:           "👋 <b>Hi!</b>\nSend me a ticker (e.g. <code>BTC-USD</code>, <code>ETH-USD</code>):",
				RemoveKeyboard: true,
			})
		default:
			switch s.State {
			case StateTicker:
				c.handleTicker(ctx, chatID, s, text)
			case StateTimeframe:
				c.handleTimeframe(ctx, chatID, s, text)
			case StateContext:
				c.handleContext(ctx, chatID, s, text)
			}
		}
	})
}

// isCancel recognizes the global cancellation inputs in any state.
func isCancel(text string) bool {
	switch strings.ToLower(text) {
	case "/cancel", "/stop", "cancel", "stop", "exit":
		return true
	}
	return false
}

// --- State handlers ---

func (c *Controller) handleTicker(ctx context.Context, chatID int64, s *Session, text string) {
	ticker, err := ValidateTicker(text)
	if err != nil {
		c.send(ctx, chatID, Reply{Text: tickerErrorText(err)})
		return
	}

	s.Ticker = ticker
	s.State = StateTimeframe
	c.send(ctx, chatID, Reply{
		Text:     fmt.Sprintf("✅ Ticker: <b>%s</b>.\nNow pick a timeframe:", ticker),
		Keyboard: timeframeKeyboard,
	})
}

func (c *Controller) handleTimeframe(ctx context.Context, chatID int64, s *Session, text string) {
	tf, ok := models.ParseTimeframe(strings.ToLower(text))
	if !ok {
		c.send(ctx, chatID, Reply{Text: "⚠️ Unknown timeframe. Pick one of the buttons."})
		return
	}

	ticker := s.Ticker
	progressID := c.send(ctx, chatID, Reply{
		Text:           fmt.Sprintf("🔎 Fetching <b>%s</b> data on <b>%s</b>...", ticker, tf),
		RemoveKeyboard: true,
	})

	snapshot, err := c.fetchSnapshot(ctx, ticker, tf)
	c.delete(ctx, chatID, progressID)

	if err != nil {
		s.Reset()
		c.send(ctx, chatID, Reply{
			Text: fmt.Sprintf("❌ No data found for <code>%s</code>.\nTry another ticker:", ticker),
		})
		return
	}

	s.Timeframe = tf
	s.Snapshot = snapshot
	s.State = StateContext
	c.send(ctx, chatID, Reply{
		Text: fmt.Sprintf("✅ <b>%s (%s)</b>\nPrice: <code>$%v</code>\n\nAnything I should know? (your read, your position, one word is fine)",
			s.Ticker, tf, snapshot.Price),
	})
}

func (c *Controller) handleContext(ctx context.Context, chatID int64, s *Session, text string) {
	progressID := c.send(ctx, chatID, Reply{Text: "🧠 <b>Analyzing...</b>"})

	// The reference index is best effort: its absence degrades to "N/A"
	// in the prompt, never to a failed turn.
	reference, err := c.fetchSnapshot(ctx, c.refTicker, s.Timeframe)
	if err != nil {
		reference = nil
	}

	verdict := c.analyst.Analyze(ctx, analyst.Request{
		Ticker:    s.Ticker,
		Timeframe: s.Timeframe,
		Snapshot:  s.Snapshot,
		Reference: reference,
		UserNote:  text,
	})

	header := reportHeader(s.Ticker, s.Timeframe, s.Snapshot)
	c.delete(ctx, chatID, progressID)
	for _, page := range splitMessage(header+verdict, MessageLimit) {
		c.send(ctx, chatID, Reply{Text: page})
	}

	s.Reset()
	c.send(ctx, chatID, Reply{Text: "🔄 New analysis? Send a ticker:"})
}

// fetchSnapshot pulls history from the market source and derives the
// snapshot. Short series and provider failures collapse into one error.
func (c *Controller) fetchSnapshot(ctx context.Context, ticker string, tf models.Timeframe) (*models.Snapshot, error) {
	candles, err := c.market.History(ctx, ticker, tf)
	if err != nil {
		return nil, err
	}
	snapshot, err := analysis.BuildSnapshot(ticker, tf, candles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", datasource.ErrNoData, err)
	}
	return snapshot, nil
}

// --- Rendering ---

// reportHeader is the deterministic part of the analysis report.
func reportHeader(ticker string, tf models.Timeframe, s *models.Snapshot) string {
	return fmt.Sprintf(
		"📊 <b>%s (%s)</b>\nPrice: <code>%v</code> | RSI: %v\nTrend: %s | ATR: %v\n──────────────────\n",
		ticker, tf, s.Price, s.RSI, s.Trend, s.ATR,
	)
}

func tickerErrorText(err error) string {
	switch {
	case errors.Is(err, ErrTickerScript):
		return "⚠️ Please use Latin letters only (e.g. <code>BTC-USD</code>)."
	case errors.Is(err, ErrTickerLength):
		return "⚠️ A ticker is 2-20 characters. Try again:"
	default:
		return "⚠️ A ticker may only contain letters, digits, '.', '-' and '='. Try again:"
	}
}

// splitMessage paginates text into chunks of at most limit characters,
// splitting on line boundaries. A single line longer than the limit is
// hard-split.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var pages []string
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if b.Len() > 0 {
				pages = append(pages, b.String())
				b.Reset()
			}
			pages = append(pages, line[:limit])
			line = line[limit:]
		}
		if b.Len()+len(line)+1 > limit {
			pages = append(pages, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		pages = append(pages, b.String())
	}
	return pages
}

// --- Transport helpers ---

func (c *Controller) send(ctx context.Context, chatID int64, r Reply) int {
	id, err := c.transport.Send(ctx, chatID, r)
	if err != nil {
		log.Printf("bot: send to %d failed: %v", chatID, err)
		return 0
	}
	return id
}

func (c *Controller) delete(ctx context.Context, chatID int64, msgID int) {
	if msgID == 0 {
		return
	}
	if err := c.transport.Delete(ctx, chatID, msgID); err != nil {
		log.Printf("bot: delete %d/%d failed: %v", chatID, msgID, err)
	}
}
