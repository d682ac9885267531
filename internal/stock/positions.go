package stock

import (
	"context"

	"invest-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Quote is a display price. Price is invalid when the oracle failed.
type Quote struct {
	Ticker string
	Price  decimal.NullDecimal
}

// Position is a confirmed holding valued at the current quote. Value and
// PnL are invalid when no price is available.
type Position struct {
	Investment models.StockInvestment
	Price      decimal.NullDecimal
	Value      decimal.NullDecimal
	PnL        decimal.NullDecimal
}

// Quotes prices tickers for display. Failures degrade per ticker.
func (s *Service) Quotes(ctx context.Context, tickers []string) []Quote {
	out := make([]Quote, 0, len(tickers))
	for _, t := range tickers {
		q := Quote{Ticker: t}
		price, err := s.livePrice(ctx, t)
		if err != nil {
			zap.L().Warn("Price unavailable", zap.String("ticker", t), zap.Error(err))
		} else {
			q.Price = decimal.NewNullDecimal(price)
		}
		out = append(out, q)
	}
	return out
}

// Positions values the user's confirmed holdings. Each ticker is quoted once
// after the read has finished.
func (s *Service) Positions(ctx context.Context, userId string) ([]Position, error) {
	holdings, err := s.List(ctx, userId, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.NullDecimal)
	positions := make([]Position, 0, len(holdings))
	for _, inv := range holdings {
		price, ok := prices[inv.Ticker]
		if !ok {
			price = s.Quotes(ctx, []string{inv.Ticker})[0].Price
			prices[inv.Ticker] = price
		}

		p := Position{Investment: inv, Price: price}
		if price.Valid {
			value := amountFor(inv.Shares, price.Decimal)
			p.Value = decimal.NewNullDecimal(value)
			p.PnL = decimal.NewNullDecimal(value.Sub(inv.Amount))
		}
		positions = append(positions, p)
	}
	return positions, nil
}
