package portfolio

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/quotes"
)

// PriceUpdateRequest is the JSON body for the manual price update: a
// mapping of asset id to new current price. Ids unknown to the store are
// ignored, matching the refresh flow's tolerance.
type PriceUpdateRequest struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// PriceUpdateResponse reports how many assets actually changed.
type PriceUpdateResponse struct {
	Updated int `json:"updated"`
}

// RefreshResponse is the outcome of one refresh pass: the per-ticker
// results in asset order, plus the number of prices written back.
type RefreshResponse struct {
	Results []quotes.Result `json:"results"`
	Updated int             `json:"updated"`
}

// UpdatePrices handles PUT /api/v1/prices. Only the current price of the
// named assets changes; shares, average cost, and total cost are untouched.
func (s *Service) UpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req PriceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Prices) == 0 {
		writeError(w, "prices mapping is required", http.StatusBadRequest)
		return
	}
	for id, p := range req.Prices {
		if !p.IsPositive() {
			writeError(w, "price for "+id+" must be positive", http.StatusBadRequest)
			return
		}
	}

	updated, err := s.store.UpdatePrices(r.Context(), req.Prices)
	if err != nil {
		writeError(w, "failed to update prices", http.StatusInternalServerError)
		return
	}

	slog.Info("prices updated", "requested", len(req.Prices), "updated", updated)
	s.notify(WSMessage{Type: "prices_updated", Count: updated})
	writeJSON(w, http.StatusOK, PriceUpdateResponse{Updated: updated})
}

// RefreshPrices handles POST /api/v1/prices/refresh?user={userID}.
//
// The pass walks the (optionally owner-scoped) assets sequentially; one
// failing fetch never aborts the others, and every per-ticker outcome is
// both returned and broadcast to WebSocket clients as it happens. Absent
// results leave the stored price alone. Once started the pass runs to
// completion.
func (s *Service) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, "price refresh is not configured", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	assets, err := s.store.ListAssets(ctx, r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.refresher.Refresh(ctx, assets)
	for _, res := range results {
		s.notify(WSMessage{
			Type:    "quote_result",
			AssetID: res.AssetID,
			Ticker:  res.Ticker,
			Price:   res.Price.String(),
			OK:      res.OK,
			Error:   res.Error,
		})
	}

	updated := 0
	if prices := quotes.Prices(results); len(prices) > 0 {
		updated, err = s.store.UpdatePrices(ctx, prices)
		if err != nil {
			writeError(w, "failed to store refreshed prices", http.StatusInternalServerError)
			return
		}
	}

	slog.Info("price refresh finished", "assets", len(assets), "updated", updated)
	s.notify(WSMessage{Type: "prices_updated", Count: updated})

	if results == nil {
		results = []quotes.Result{}
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Results: results, Updated: updated})
}
