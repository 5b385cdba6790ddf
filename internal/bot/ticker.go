package bot

import (
	"errors"
	"regexp"
	"strings"
)

// Ticker validation errors. Each maps to a distinct retry prompt.
var (
	ErrTickerLength  = errors.New("ticker must be 2-20 characters")
	ErrTickerScript  = errors.New("ticker contains non-Latin characters")
	ErrTickerCharset = errors.New("ticker contains invalid characters")
)

// tickerPattern covers everything Yahoo-style symbols use: letters, digits,
// dot (DX-Y.NYB), hyphen (BTC-USD) and equals (EURUSD=X).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-=]+$`)

// ValidateTicker normalizes and validates a user-supplied symbol token.
// Returns the uppercased symbol on success.
func ValidateTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))

	if len(ticker) < 2 || len(ticker) > 20 {
		return "", ErrTickerLength
	}
	for _, r := range ticker {
		if r > 127 {
			return "", ErrTickerScript
		}
	}
	if !tickerPattern.MatchString(ticker) {
		return "", ErrTickerCharset
	}
	return ticker, nil
}
