package portfolio

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/metrics"
	"github.com/folio/portfolio-engine/internal/model"
	"github.com/folio/portfolio-engine/internal/stats"
)

// DividendRequest is the JSON body for recording or editing a dividend.
// Withholding is all-or-nothing: the Taxable flag selects the fixed 30%
// rate or nothing; there is no partial or custom rate.
type DividendRequest struct {
	UserID         string          `json:"user_id"`
	Ticker         string          `json:"ticker"`
	ExDate         string          `json:"ex_date"`
	AmountPerShare decimal.Decimal `json:"amount_per_share"`
	Units          decimal.Decimal `json:"units"`
	Taxable        bool            `json:"taxable"`
}

func (req *DividendRequest) validate() error {
	if req.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", ErrValidation)
	}
	if !req.AmountPerShare.IsPositive() {
		return fmt.Errorf("%w: amount_per_share must be positive", ErrValidation)
	}
	if !req.Units.IsPositive() {
		return fmt.Errorf("%w: units must be positive", ErrValidation)
	}
	if req.ExDate == "" {
		req.ExDate = today()
	}
	if !validDate(req.ExDate) {
		return fmt.Errorf("%w: ex_date must be YYYY-MM-DD", ErrValidation)
	}
	return nil
}

// buildDividend derives the gross/tax/net triple from the request. The pay
// date mirrors the ex date and the frequency is the Unknown sentinel, both
// as observed behavior; neither is inferred from the associated asset.
func (s *Service) buildDividend(req *DividendRequest) model.Dividend {
	gross := req.AmountPerShare.Mul(req.Units)
	tax := decimal.Zero
	if req.Taxable {
		tax = gross.Mul(model.WithholdingRate)
	}
	net := gross.Sub(tax)

	return model.Dividend{
		UserID:         req.UserID,
		Ticker:         req.Ticker,
		ExDate:         req.ExDate,
		PayDate:        req.ExDate,
		AmountPerShare: req.AmountPerShare,
		Shares:         req.Units,
		GrossAmount:    gross,
		Tax:            tax,
		NetAmount:      net,
		NetAmountTWD:   net.Mul(s.fxRate),
		Frequency:      model.FreqUnknown,
	}
}

// ListDividends handles GET /api/v1/dividends?user={userID}.
func (s *Service) ListDividends(w http.ResponseWriter, r *http.Request) {
	dividends, err := s.store.ListDividends(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, "failed to list dividends", http.StatusInternalServerError)
		return
	}
	if dividends == nil {
		dividends = []model.Dividend{}
	}
	writeJSON(w, http.StatusOK, dividends)
}

// GroupedDividends handles GET /api/v1/dividends/grouped?user={userID}.
// Groups are keyed by ticker with the most recent ex-date first inside
// each group.
func (s *Service) GroupedDividends(w http.ResponseWriter, r *http.Request) {
	dividends, err := s.store.ListDividends(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, "failed to list dividends", http.StatusInternalServerError)
		return
	}

	groups := stats.GroupDividends(dividends)
	if groups == nil {
		groups = []stats.DividendGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// CreateDividend handles POST /api/v1/dividends.
func (s *Service) CreateDividend(w http.ResponseWriter, r *http.Request) {
	var req DividendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	d := s.buildDividend(&req)
	d.ID = uuid.New().String()

	if err := s.store.AddDividend(r.Context(), &d); err != nil {
		writeError(w, "failed to record dividend", http.StatusInternalServerError)
		return
	}

	metrics.DividendsRecorded.WithLabelValues(boolLabel(req.Taxable)).Inc()
	slog.Info("dividend recorded",
		"id", d.ID,
		"ticker", d.Ticker,
		"gross", d.GrossAmount.String(),
		"tax", d.Tax.String(),
		"net", d.NetAmount.String(),
	)
	s.notify(WSMessage{Type: "dividend_recorded", Ticker: d.Ticker})
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDividend handles PUT /api/v1/dividends/{dividendID}. The edit is a
// full recompute of the gross/tax/net triple; the owner never changes.
func (s *Service) UpdateDividend(w http.ResponseWriter, r *http.Request) {
	var req DividendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Same read-compute-write shape as the asset edit: serialize it.
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetDividend(r.Context(), chi.URLParam(r, "dividendID"))
	if err != nil {
		writeError(w, "dividend not found", http.StatusNotFound)
		return
	}

	req.UserID = existing.UserID
	d := s.buildDividend(&req)
	d.ID = existing.ID
	d.AssetID = existing.AssetID

	if err := s.store.UpdateDividend(r.Context(), &d); err != nil {
		writeError(w, "dividend not found", http.StatusNotFound)
		return
	}

	slog.Info("dividend updated", "id", d.ID, "ticker", d.Ticker)
	writeJSON(w, http.StatusOK, d)
}

// DeleteDividend handles DELETE /api/v1/dividends/{dividendID}. Deleting an
// absent dividend is a no-op.
func (s *Service) DeleteDividend(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDividend(r.Context(), chi.URLParam(r, "dividendID")); err != nil {
		writeError(w, "failed to delete dividend", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
