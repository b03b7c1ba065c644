// Package quotes fetches market prices for tracked assets from external
// sources: a Yahoo-style chart endpoint for stocks and ETFs, and an HTML
// scrape of the asset's fund page for funds carrying a data URL.
//
// Fetch failures never escape the Refresher: every failure is downgraded to
// an absent result plus a log line, so one dead ticker can never abort a
// refresh run or crash the store. There is no caching and no retrying — a
// refresh is a single sequential pass with a courtesy delay between calls.
package quotes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/metrics"
	"github.com/folio/portfolio-engine/internal/model"
)

var (
	// ErrNoQuote is returned when a source's response carries no usable price.
	ErrNoQuote = errors.New("quotes: no quote in response")

	// ErrNoSource means no source knows how to price the asset.
	ErrNoSource = errors.New("quotes: no source for asset")
)

// Source produces a price for one asset.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns the latest price for the asset, or an error. A returned
	// price is always positive.
	Fetch(ctx context.Context, asset model.Asset) (decimal.Decimal, error)
}

// Result is the per-ticker outcome of one refresh pass entry.
type Result struct {
	AssetID string          `json:"asset_id"`
	Ticker  string          `json:"ticker"`
	Source  string          `json:"source,omitempty"`
	Price   decimal.Decimal `json:"price"`
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
}

// Refresher walks the asset list sequentially and collects per-ticker
// outcomes. One failing fetch never aborts the others.
type Refresher struct {
	stock   Source
	fund    Source
	delay   time.Duration // courtesy pause between assets, not a correctness requirement
	timeout time.Duration // per-call bound
}

// NewRefresher wires the two sources. Either may be nil, in which case
// assets routed to it come back as absent.
func NewRefresher(stock, fund Source, delay, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Refresher{stock: stock, fund: fund, delay: delay, timeout: timeout}
}

// pick routes an asset to a source: a fund page URL wins, then the quote
// endpoint for stocks and ETFs. Funds without a data URL have no source.
func (r *Refresher) pick(asset *model.Asset) Source {
	if asset.DataURL != "" && r.fund != nil {
		return r.fund
	}
	if (asset.Type == model.TypeStock || asset.Type == model.TypeETF) && r.stock != nil {
		return r.stock
	}
	return nil
}

// Refresh fetches a price for every asset in order and returns one Result
// per asset. Once started it runs to completion; each call is individually
// bounded by the per-call timeout.
func (r *Refresher) Refresh(ctx context.Context, assets []model.Asset) []Result {
	results := make([]Result, 0, len(assets))

	for i := range assets {
		if i > 0 && r.delay > 0 {
			time.Sleep(r.delay)
		}

		asset := assets[i]
		res := Result{AssetID: asset.ID, Ticker: asset.Ticker}

		src := r.pick(&asset)
		if src == nil {
			res.Error = ErrNoSource.Error()
			slog.Info("quote skipped", "ticker", asset.Ticker, "reason", "no source")
			results = append(results, res)
			continue
		}
		res.Source = src.Name()

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		price, err := src.Fetch(callCtx, asset)
		cancel()
		metrics.QuoteFetchDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			res.Error = err.Error()
			metrics.QuoteFetches.WithLabelValues(src.Name(), "failure").Inc()
			slog.Warn("quote fetch failed", "ticker", asset.Ticker, "source", src.Name(), "err", err)
		} else {
			res.Price = price
			res.OK = true
			metrics.QuoteFetches.WithLabelValues(src.Name(), "success").Inc()
			slog.Info("quote fetched", "ticker", asset.Ticker, "source", src.Name(), "price", price.String())
		}
		results = append(results, res)
	}

	return results
}

// Prices extracts the successful outcomes as an id → price mapping, ready
// for the store's price update.
func Prices(results []Result) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(results))
	for _, r := range results {
		if r.OK {
			prices[r.AssetID] = r.Price
		}
	}
	return prices
}
