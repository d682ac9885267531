// Package quote provides current stock prices. Calls perform network I/O and
// must never be made while a store transaction is open.
package quote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable is returned when no price could be obtained.
	ErrUnavailable = errors.New("quote unavailable")
	// ErrUnknownTicker is returned for tickers that are malformed or not listed.
	ErrUnknownTicker = errors.New("unknown ticker")
)

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Oracle returns the current price per share for a ticker.
type Oracle interface {
	Price(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// NormalizeTicker upper-cases and validates a user-supplied ticker.
func NormalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTicker, raw)
	}
	return ticker, nil
}

// StaticOracle serves fixed prices. It is used for local runs and tests.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticOracle(prices map[string]decimal.Decimal) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]decimal.Decimal, len(prices))}
	for k, v := range prices {
		o.prices[strings.ToUpper(k)] = v
	}
	return o
}

func (o *StaticOracle) Set(ticker string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[strings.ToUpper(ticker)] = price
}

func (o *StaticOracle) Price(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[strings.ToUpper(ticker)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return price, nil
}
