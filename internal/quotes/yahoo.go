package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
)

// DefaultChartBaseURL is the public Yahoo Finance chart endpoint.
const DefaultChartBaseURL = "https://query1.finance.yahoo.com"

// ChartSource prices stocks and ETFs off the Yahoo v8 chart endpoint.
// The document is queried with jsonpath rather than a full struct mirror:
// only two leaves of the (large) chart payload matter here.
type ChartSource struct {
	cli     *http.Client
	baseURL string
}

// NewChartSource creates a chart source. An empty baseURL selects the
// public Yahoo endpoint.
func NewChartSource(baseURL string) *ChartSource {
	if baseURL == "" {
		baseURL = DefaultChartBaseURL
	}
	return &ChartSource{
		cli:     &http.Client{Timeout: 8 * time.Second},
		baseURL: baseURL,
	}
}

func (s *ChartSource) Name() string { return "yahoo" }

// Fetch returns the regular market price for the asset's ticker, falling
// back to the last non-zero intraday close when the meta price is missing.
func (s *ChartSource) Fetch(ctx context.Context, asset model.Asset) (decimal.Decimal, error) {
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", s.baseURL, url.PathEscape(asset.Ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "portfolio-engine/1.0")

	resp, err := s.cli.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quotes: yahoo http %d", resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return decimal.Zero, err
	}

	if price, ok := jsonFloat(doc, "$.chart.result[0].meta.regularMarketPrice"); ok && price > 0 {
		return decimal.NewFromFloat(price), nil
	}

	// Meta price missing or zero: walk the intraday closes backwards.
	if closes, err := jsonpath.Get("$.chart.result[0].indicators.quote[0].close", doc); err == nil {
		if list, ok := closes.([]any); ok {
			for i := len(list) - 1; i >= 0; i-- {
				if c, ok := list[i].(float64); ok && c > 0 {
					return decimal.NewFromFloat(c), nil
				}
			}
		}
	}

	return decimal.Zero, ErrNoQuote
}

// jsonFloat evaluates a jsonpath expression expecting a single float64.
// jsonpath is never clear about whether it returns a list of one answer or
// a single answer, so unwrap a singleton list first.
func jsonFloat(doc any, path string) (float64, bool) {
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, false
	}
	if list, ok := val.([]any); ok && len(list) > 0 {
		val = list[0]
	}
	f, ok := val.(float64)
	return f, ok
}
