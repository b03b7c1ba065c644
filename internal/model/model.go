// Package model defines the core domain types shared across the portfolio
// engine. All monetary values use shopspring/decimal — never float64 for money.
//
// Dates are carried as "YYYY-MM-DD" strings, validated at the request
// boundary. In that format lexical order equals chronological order, which
// the dividend grouping relies on.
package model

import (
	"github.com/shopspring/decimal"
)

// AssetType classifies a holding.
type AssetType string

const (
	TypeStock AssetType = "Stock"
	TypeETF   AssetType = "ETF"
	TypeFund  AssetType = "Fund"
)

// ValidAssetType reports whether t is one of the supported asset types.
func ValidAssetType(t AssetType) bool {
	switch t {
	case TypeStock, TypeETF, TypeFund:
		return true
	}
	return false
}

// Frequency is the payout cadence of a holding or dividend.
type Frequency string

const (
	FreqWeekly     Frequency = "Weekly"
	FreqMonthly    Frequency = "Monthly"
	FreqQuarterly  Frequency = "Quarterly"
	FreqIndividual Frequency = "Individual"

	// FreqUnknown is the sentinel recorded on dividends at creation time.
	// It is intentionally not inferred from the associated asset.
	FreqUnknown Frequency = "Unknown"
)

// ValidFrequency reports whether f is accepted on asset create/edit.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FreqWeekly, FreqMonthly, FreqQuarterly, FreqIndividual:
		return true
	}
	return false
}

// User is an owner of assets, dividends, and history entries. Ownership is
// by id reference only: deleting or renaming a user never cascades.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is an append-only purchase record embedded in an Asset.
// Never mutated after creation; kept for display, not for average-cost
// recomputation.
type Transaction struct {
	ID    string          `json:"id"`
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
	Units decimal.Decimal `json:"units"`
	Rate  decimal.Decimal `json:"rate"` // exchange rate at purchase
}

// Asset represents one holding for one user.
//
// Invariant: TotalCost == AvgCost × Shares after any mutation that changes
// either operand. Shares never go negative; an asset whose shares reach
// exactly zero through a sell is removed from the store.
type Asset struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Type         AssetType       `json:"type"`
	Frequency    Frequency       `json:"frequency"`
	Currency     string          `json:"currency"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	Shares       decimal.Decimal `json:"shares"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalCostTWD decimal.Decimal `json:"total_cost_twd"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	DataURL      string          `json:"data_url,omitempty"` // fund NAV page for the scraper
	Transactions []Transaction   `json:"transactions"`
}

// MarketValue returns CurrentPrice × Shares.
func (a *Asset) MarketValue() decimal.Decimal {
	return a.CurrentPrice.Mul(a.Shares)
}

// Dividend is one dividend receipt.
//
// Invariants: GrossAmount == AmountPerShare × Shares;
// NetAmount == GrossAmount − Tax; Tax is either zero or exactly
// GrossAmount × 0.30 (the only withholding rate modeled).
// Lifecycle is independent from the asset: no cascade delete.
type Dividend struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	AssetID        string          `json:"asset_id,omitempty"`
	Ticker         string          `json:"ticker"`
	ExDate         string          `json:"ex_date"`
	PayDate        string          `json:"pay_date"`
	AmountPerShare decimal.Decimal `json:"amount_per_share"`
	Shares         decimal.Decimal `json:"shares"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	Tax            decimal.Decimal `json:"tax"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	NetAmountTWD   decimal.Decimal `json:"net_amount_twd"`
	Frequency      Frequency       `json:"frequency"`
}

// HistoryEntry is a realized disposal, created only as the side effect of a
// sell. Immutable thereafter except for deletion.
//
// Invariants: PnL == (SellPrice − AvgBuyPrice) × Shares;
// PnLPercent == PnL / (AvgBuyPrice × Shares) × 100, defined as exactly zero
// when the cost basis is zero.
type HistoryEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name"`
	SellDate    string          `json:"sell_date"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
	Shares      decimal.Decimal `json:"shares"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPercent  decimal.Decimal `json:"pnl_percent"`
	Currency    string          `json:"currency"`
}

// WithholdingRate is the fixed 30% dividend withholding rate. Taxation is
// all-or-nothing: a dividend is either taxed at this rate or not at all.
var WithholdingRate = decimal.NewFromFloat(0.30)
