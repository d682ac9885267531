package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	yahooChartPath = "/v8/finance/chart/"
	yahooUA        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// yahooChartResponse is the subset of the v8 chart payload we read.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooOracle fetches the regular market price from the Yahoo Finance v8 chart API.
type YahooOracle struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

func NewYahooOracle(httpClient *http.Client, baseURL string, timeout time.Duration) *YahooOracle {
	return &YahooOracle{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Price honours the per-call timeout in addition to ctx. Timeouts and
// transport errors are reported as ErrUnavailable.
func (o *YahooOracle) Price(ctx context.Context, ticker string) (decimal.Decimal, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return decimal.Zero, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	endpoint := o.baseURL + yahooChartPath + url.PathEscape(ticker) + "?interval=1d&range=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		zap.L().Warn("Quote request failed", zap.String("ticker", ticker), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	if resp.StatusCode != http.StatusOK {
		zap.L().Warn("Unexpected quote status", zap.String("ticker", ticker), zap.Int("status", resp.StatusCode))
		return decimal.Zero, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if chart.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %s", ErrUnknownTicker, ticker, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}

	price := chart.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive price for %s", ErrUnavailable, ticker)
	}

	zap.L().Debug("Fetched quote", zap.String("ticker", ticker), zap.Float64("price", price))
	return decimal.NewFromFloat(price).Round(4), nil
}
