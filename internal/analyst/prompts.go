package analyst

import (
	"fmt"
	"strings"

	"github.com/avralex/tradebrief/pkg/models"
)

// StopLossMultiple is the ATR multiple used for the stop-loss distance the
// model is instructed to apply.
const StopLossMultiple = 2.0

// SystemPrompt configures the model as a capital-preservation-first risk
// manager and pins down the allowed output markup. Telegram renders a small
// HTML subset, hence the hard ban on Markdown.
const SystemPrompt = `You are a strict hedge-fund risk manager. Your goal is capital preservation.

RULES:
1. Be brief. No filler.
2. Use only HTML tags: <b>bold</b>, <code>code</code>, <i>italic</i>.
3. NO Markdown (no ** or ## symbols).
4. If the technicals contradict the news, recommend [WAIT].
5. Always state a stop-loss level.`

// Request carries everything the prompt composer interpolates.
type Request struct {
	Ticker    string
	Timeframe models.Timeframe
	Snapshot  *models.Snapshot
	Reference *models.Snapshot // secondary dollar-index snapshot, may be nil
	UserNote  string
}

// ComposePrompt builds the user prompt for one analysis request. It is a pure
// function: every numeric field of both snapshots is interpolated
// deterministically and no I/O happens here.
func ComposePrompt(req Request, newsDigest string) string {
	s := req.Snapshot

	refPrice, refTrend := "N/A", "N/A"
	if req.Reference != nil {
		refPrice = fmt.Sprintf("%v", req.Reference.Price)
		refTrend = string(req.Reference.Trend)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ASSET: %s (%s) | Price: %v\n", req.Ticker, req.Timeframe, s.Price)
	fmt.Fprintf(&b, "Technicals: RSI %v, Trend %s, ATR %v\n", s.RSI, s.Trend, s.ATR)
	fmt.Fprintf(&b, "Bollinger: %s | Support: %v | Resistance: %v\n", s.BandStatus, s.Support, s.Resistance)
	fmt.Fprintf(&b, "News:\n%s\n", newsDigest)
	fmt.Fprintf(&b, "Dollar index: %s (trend %s)\n", refPrice, refTrend)
	fmt.Fprintf(&b, "User note: %q\n\n", req.UserNote)
	fmt.Fprintf(&b, "Give a signal. Stop-loss distance = %gx ATR = %v.\n", StopLossMultiple, StopLossMultiple*s.ATR)
	b.WriteString("Format:\n")
	b.WriteString("<b>NEWS:</b> ...\n")
	b.WriteString("<b>TECHNICALS:</b> ...\n")
	b.WriteString("<b>VERDICT:</b> [LONG]/[SHORT]/[WAIT]")
	return b.String()
}

// Sanitize strips markup artifacts the model sometimes emits despite the
// system prompt: code-fence markers and bold markers.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "```", "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}
