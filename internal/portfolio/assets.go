package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/metrics"
	"github.com/folio/portfolio-engine/internal/model"
	"github.com/folio/portfolio-engine/internal/stats"
	"github.com/folio/portfolio-engine/internal/store"
)

// AssetRequest is the JSON body for asset creation and edit. Numeric fields
// accept both JSON numbers and numeric strings (decimal handles either), so
// form-shaped clients can post what they have.
type AssetRequest struct {
	UserID       string          `json:"user_id"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Type         model.AssetType `json:"type"`
	Frequency    model.Frequency `json:"frequency"`
	Currency     string          `json:"currency"`
	Units        decimal.Decimal `json:"units"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	BuyDate      string          `json:"buy_date"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	DataURL      string          `json:"data_url"`
}

// normalize applies defaults and validates the request. Returned errors
// wrap ErrValidation.
func (req *AssetRequest) normalize() error {
	if req.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", ErrValidation)
	}
	if !req.Units.IsPositive() {
		return fmt.Errorf("%w: units must be positive", ErrValidation)
	}
	if !req.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit_price must be positive", ErrValidation)
	}
	if req.Type == "" {
		req.Type = model.TypeStock
	}
	if !model.ValidAssetType(req.Type) {
		return fmt.Errorf("%w: unsupported asset type", ErrValidation)
	}
	if req.Frequency == "" {
		req.Frequency = model.FreqIndividual
	}
	if !model.ValidFrequency(req.Frequency) {
		return fmt.Errorf("%w: unsupported frequency", ErrValidation)
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if req.BuyDate == "" {
		req.BuyDate = today()
	}
	if !validDate(req.BuyDate) {
		return fmt.Errorf("%w: buy_date must be YYYY-MM-DD", ErrValidation)
	}
	return nil
}

// SellRequest is the JSON body for POST /assets/{assetID}/sell.
type SellRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Date     string          `json:"date"`
}

// ListAssets handles GET /api/v1/assets?user={userID}.
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// CreateAsset handles POST /api/v1/assets. The entry price doubles as the
// current price until the first refresh, and the purchase is recorded as
// the asset's initial transaction.
func (s *Service) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	rate := req.ExchangeRate
	if !rate.IsPositive() {
		rate = s.fxRate
	}

	totalCost := req.Units.Mul(req.UnitPrice)
	asset := model.Asset{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Ticker:       req.Ticker,
		Name:         req.Name,
		Type:         req.Type,
		Frequency:    req.Frequency,
		Currency:     req.Currency,
		AvgCost:      req.UnitPrice,
		Shares:       req.Units,
		CurrentPrice: req.UnitPrice,
		TotalCost:    totalCost,
		ExchangeRate: rate,
		DataURL:      req.DataURL,
		Transactions: []model.Transaction{{
			ID:    uuid.New().String(),
			Date:  req.BuyDate,
			Price: req.UnitPrice,
			Units: req.Units,
			Rate:  rate,
		}},
	}

	if err := s.store.AddAsset(r.Context(), &asset); err != nil {
		writeError(w, "failed to add asset", http.StatusInternalServerError)
		return
	}

	slog.Info("asset added",
		"id", asset.ID,
		"ticker", asset.Ticker,
		"user", asset.UserID,
		"shares", asset.Shares.String(),
		"total_cost", asset.TotalCost.String(),
	)
	s.syncAssetGauge(r)
	writeJSON(w, http.StatusCreated, asset)
}

// UpdateAsset handles PUT /api/v1/assets/{assetID}. Applies the same field
// recompute as creation, in place. The ticker is immutable at this surface:
// an edit naming a different ticker is rejected, one repeating or omitting
// it passes. An omitted data URL inherits the stored one so an edit never
// cuts a fund off from its NAV page. The current price and the transaction
// log are left untouched.
func (s *Service) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Serialize with the sell flow: an edit landing between a sell's read
	// and its write-back would be overwritten from the stale read.
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.store.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}

	if req.Ticker == "" {
		req.Ticker = asset.Ticker
	}
	if err := req.normalize(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Ticker != asset.Ticker {
		writeError(w, "ticker cannot be changed", http.StatusBadRequest)
		return
	}

	asset.Name = req.Name
	asset.Type = req.Type
	asset.Frequency = req.Frequency
	if req.Currency != "" {
		asset.Currency = req.Currency
	}
	asset.Shares = req.Units
	asset.AvgCost = req.UnitPrice
	asset.TotalCost = req.Units.Mul(req.UnitPrice)
	if req.ExchangeRate.IsPositive() {
		asset.ExchangeRate = req.ExchangeRate
	}
	if req.DataURL != "" {
		asset.DataURL = req.DataURL
	}

	if err := s.store.UpdateAsset(r.Context(), asset); err != nil {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}

	slog.Info("asset updated", "id", asset.ID, "ticker", asset.Ticker)
	writeJSON(w, http.StatusOK, asset)
}

// DeleteAsset handles DELETE /api/v1/assets/{assetID}. Deleting an absent
// asset is a no-op. Dividends and history referencing the asset survive:
// lifecycles are independent.
func (s *Service) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAsset(r.Context(), chi.URLParam(r, "assetID")); err != nil {
		writeError(w, "failed to delete asset", http.StatusInternalServerError)
		return
	}
	s.syncAssetGauge(r)
	w.WriteHeader(http.StatusNoContent)
}

// SellAsset handles POST /api/v1/assets/{assetID}/sell.
//
// P&L uses the asset's current average cost, not a specific lot. A quantity
// at or above the held shares disposes of the whole position and removes
// the asset; a partial sell reduces shares and recomputes the total cost
// while leaving the average cost unchanged. Either way exactly one history
// entry is appended.
func (s *Service) SellAsset(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsPositive() {
		writeError(w, ErrInvalidOperation.Error()+": quantity must be positive", http.StatusConflict)
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		req.Date = today()
	}
	if !validDate(req.Date) {
		writeError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize the read-compute-write sequence.
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.store.GetAsset(ctx, chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}

	costBasis := asset.AvgCost.Mul(req.Quantity)
	pnl := req.Price.Sub(asset.AvgCost).Mul(req.Quantity)
	pnlPercent := decimal.Zero
	if costBasis.IsPositive() {
		pnlPercent = pnl.Div(costBasis).Mul(decimal.NewFromInt(100)).Round(stats.PercentScale)
	}

	entry := model.HistoryEntry{
		ID:          uuid.New().String(),
		UserID:      asset.UserID,
		Ticker:      asset.Ticker,
		Name:        asset.Name,
		SellDate:    req.Date,
		SellPrice:   req.Price,
		AvgBuyPrice: asset.AvgCost,
		Shares:      req.Quantity,
		PnL:         pnl,
		PnLPercent:  pnlPercent,
		Currency:    asset.Currency,
	}
	if err := s.store.AddHistory(ctx, &entry); err != nil {
		writeError(w, "failed to record disposal", http.StatusInternalServerError)
		return
	}

	kind := "partial"
	if req.Quantity.GreaterThanOrEqual(asset.Shares) {
		kind = "full"
		if err := s.store.DeleteAsset(ctx, asset.ID); err != nil {
			writeError(w, "failed to remove sold asset", http.StatusInternalServerError)
			return
		}
	} else {
		asset.Shares = asset.Shares.Sub(req.Quantity)
		asset.TotalCost = asset.Shares.Mul(asset.AvgCost)
		if err := s.store.UpdateAsset(ctx, asset); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, "asset not found", http.StatusNotFound)
				return
			}
			writeError(w, "failed to update asset", http.StatusInternalServerError)
			return
		}
	}
	metrics.SellsTotal.WithLabelValues(kind).Inc()

	slog.Info("asset sold",
		"id", asset.ID,
		"ticker", asset.Ticker,
		"kind", kind,
		"qty", req.Quantity.String(),
		"price", req.Price.String(),
		"pnl", pnl.String(),
	)
	s.syncAssetGauge(r)
	s.notify(WSMessage{Type: "asset_sold", AssetID: asset.ID, Ticker: asset.Ticker})

	writeJSON(w, http.StatusOK, entry)
}
