// Package stats computes derived portfolio statistics as pure functions over
// the owner-filtered collections. Nothing here caches or invalidates: every
// figure is recomputed from scratch on each call, which is O(n) over small
// in-memory slices and cheap enough to run per request.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Every ratio that divides by an aggregate cost is defined as exactly zero
// when that cost is zero, never NaN or an infinity.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
)

// PercentScale is the number of decimal places percentages are rounded to.
var PercentScale int32 = 4

var hundred = decimal.NewFromInt(100)

// dividendLookbackPeriods is the fixed divisor for the estimated monthly
// payout. Not calendar-aware: an acknowledged simplification.
var dividendLookbackPeriods = decimal.NewFromInt(6)

// AssetStats aggregates the holdings view.
type AssetStats struct {
	TotalInvested      decimal.Decimal `json:"total_invested"`
	CurrentMarketValue decimal.Decimal `json:"current_market_value"`
	TotalDividends     decimal.Decimal `json:"total_dividends"`
	ValuePlusDividends decimal.Decimal `json:"value_plus_dividends"`
	ROICurrent         decimal.Decimal `json:"roi_current"`
	ROITotal           decimal.Decimal `json:"roi_total"`
}

// DividendStats aggregates the dividend view.
type DividendStats struct {
	TotalReceived    decimal.Decimal `json:"total_received"`
	TotalReceivedTWD decimal.Decimal `json:"total_received_twd"`
	EstimatedMonthly decimal.Decimal `json:"estimated_monthly"`
	YieldRate        decimal.Decimal `json:"yield_rate"`
	Count            int             `json:"count"`
}

// HistoryStats aggregates realized disposals.
type HistoryStats struct {
	TotalRealizedPnL       decimal.Decimal `json:"total_realized_pnl"`
	TotalRealizedCostBasis decimal.Decimal `json:"total_realized_cost_basis"`
	TotalRealizedROI       decimal.Decimal `json:"total_realized_roi"`
}

// DividendGroup is one ticker's dividends, exDate-descending.
type DividendGroup struct {
	Ticker    string           `json:"ticker"`
	Dividends []model.Dividend `json:"dividends"`
	TotalNet  decimal.Decimal  `json:"total_net"`
}

// Assets computes the holdings aggregates. The dividends slice must come
// from the same owner filter as the assets: received dividends feed the
// with-dividends ROI figure.
func Assets(assets []model.Asset, dividends []model.Dividend) AssetStats {
	var st AssetStats
	for i := range assets {
		st.TotalInvested = st.TotalInvested.Add(assets[i].TotalCost)
		st.CurrentMarketValue = st.CurrentMarketValue.Add(assets[i].MarketValue())
	}
	for i := range dividends {
		st.TotalDividends = st.TotalDividends.Add(dividends[i].NetAmount)
	}
	st.ValuePlusDividends = st.CurrentMarketValue.Add(st.TotalDividends)
	st.ROICurrent = percentOf(st.CurrentMarketValue.Sub(st.TotalInvested), st.TotalInvested)
	st.ROITotal = percentOf(st.ValuePlusDividends.Sub(st.TotalInvested), st.TotalInvested)
	return st
}

// Dividends computes the dividend aggregates. The assets slice supplies the
// invested capital for the yield rate.
func Dividends(dividends []model.Dividend, assets []model.Asset) DividendStats {
	var st DividendStats
	for i := range dividends {
		st.TotalReceived = st.TotalReceived.Add(dividends[i].NetAmount)
		st.TotalReceivedTWD = st.TotalReceivedTWD.Add(dividends[i].NetAmountTWD)
	}
	st.Count = len(dividends)
	st.EstimatedMonthly = st.TotalReceived.Div(dividendLookbackPeriods).Round(PercentScale)

	var invested decimal.Decimal
	for i := range assets {
		invested = invested.Add(assets[i].TotalCost)
	}
	st.YieldRate = percentOf(st.TotalReceived, invested)
	return st
}

// History computes the realized-disposal aggregates.
func History(entries []model.HistoryEntry) HistoryStats {
	var st HistoryStats
	for i := range entries {
		st.TotalRealizedPnL = st.TotalRealizedPnL.Add(entries[i].PnL)
		st.TotalRealizedCostBasis = st.TotalRealizedCostBasis.Add(entries[i].AvgBuyPrice.Mul(entries[i].Shares))
	}
	st.TotalRealizedROI = percentOf(st.TotalRealizedPnL, st.TotalRealizedCostBasis)
	return st
}

// GroupDividends groups dividends by ticker. Groups appear in order of each
// ticker's first appearance; within a group dividends are ordered by exDate
// descending, ties keeping their original insertion order (stable sort).
func GroupDividends(dividends []model.Dividend) []DividendGroup {
	index := make(map[string]int)
	var groups []DividendGroup

	for _, d := range dividends {
		i, ok := index[d.Ticker]
		if !ok {
			i = len(groups)
			index[d.Ticker] = i
			groups = append(groups, DividendGroup{Ticker: d.Ticker})
		}
		groups[i].Dividends = append(groups[i].Dividends, d)
		groups[i].TotalNet = groups[i].TotalNet.Add(d.NetAmount)
	}

	for i := range groups {
		ds := groups[i].Dividends
		// YYYY-MM-DD strings: lexical comparison is chronological.
		sort.SliceStable(ds, func(a, b int) bool { return ds[a].ExDate > ds[b].ExDate })
	}
	return groups
}

// percentOf returns part / whole × 100 rounded to PercentScale, or exactly
// zero when whole is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(PercentScale)
}
