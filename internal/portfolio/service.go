// Package portfolio provides the HTTP handlers and business logic for
// managing holdings, recording dividends, selling positions, and refreshing
// market prices.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Every handler parses its free-form request body at this boundary; domain
// logic below never sees an unvalidated number or date.
package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/metrics"
	"github.com/folio/portfolio-engine/internal/model"
	"github.com/folio/portfolio-engine/internal/quotes"
	"github.com/folio/portfolio-engine/internal/stats"
	"github.com/folio/portfolio-engine/internal/store"
)

var (
	// ErrValidation marks a rejected mutation: a missing or malformed
	// required field. Surfaced as HTTP 400, never a silent no-op.
	ErrValidation = errors.New("portfolio: validation failed")

	// ErrInvalidOperation marks a mutation that is well-formed but not
	// executable, e.g. selling a non-positive quantity. Surfaced as 409.
	ErrInvalidOperation = errors.New("portfolio: invalid operation")
)

// Service handles portfolio operations. Compound mutations (sell, price
// refresh) are serialized with a mutex: the store is safe on its own, but a
// sell is a read-compute-write sequence that must not interleave.
type Service struct {
	store     store.Store
	refresher *quotes.Refresher
	fxRate    decimal.Decimal // TWD per USD, for derived TWD amounts
	mu        sync.Mutex
	wsHub     *WSHub // optional WebSocket hub for change broadcasts
}

// NewService creates a portfolio service. Pass nil for hub if WebSocket
// broadcasting is not needed; refresher may be nil when price refresh is
// disabled.
func NewService(st store.Store, refresher *quotes.Refresher, fxRate decimal.Decimal, hub *WSHub) *Service {
	if !fxRate.IsPositive() {
		fxRate = decimal.NewFromFloat(32.5) // default TWD per USD
	}
	return &Service{
		store:     st,
		refresher: refresher,
		fxRate:    fxRate,
		wsHub:     hub,
	}
}

// Routes mounts every portfolio endpoint under the given router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/users", s.ListUsers)
	r.Post("/users", s.CreateUser)
	r.Put("/users/{userID}", s.RenameUser)

	r.Get("/assets", s.ListAssets)
	r.Post("/assets", s.CreateAsset)
	r.Put("/assets/{assetID}", s.UpdateAsset)
	r.Delete("/assets/{assetID}", s.DeleteAsset)
	r.Post("/assets/{assetID}/sell", s.SellAsset)

	r.Get("/dividends", s.ListDividends)
	r.Get("/dividends/grouped", s.GroupedDividends)
	r.Post("/dividends", s.CreateDividend)
	r.Put("/dividends/{dividendID}", s.UpdateDividend)
	r.Delete("/dividends/{dividendID}", s.DeleteDividend)

	r.Get("/history", s.ListHistory)
	r.Delete("/history/{historyID}", s.DeleteHistory)

	r.Put("/prices", s.UpdatePrices)
	r.Post("/prices/refresh", s.RefreshPrices)

	r.Get("/stats", s.GetStats)

	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}

// --- Users ---

// UserRequest is the JSON body for user creation and rename.
type UserRequest struct {
	Name string `json:"name"`
}

// ListUsers handles GET /api/v1/users.
func (s *Service) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser handles POST /api/v1/users.
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	u := model.User{ID: uuid.New().String(), Name: req.Name}
	if err := s.store.AddUser(r.Context(), &u); err != nil {
		writeError(w, "failed to add user", http.StatusInternalServerError)
		return
	}

	slog.Info("user added", "id", u.ID, "name", u.Name)
	writeJSON(w, http.StatusCreated, u)
}

// RenameUser handles PUT /api/v1/users/{userID}.
func (s *Service) RenameUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "userID")
	if err := s.store.RenameUser(r.Context(), id, req.Name); err != nil {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, model.User{ID: id, Name: req.Name})
}

// --- History ---

// ListHistory handles GET /api/v1/history?user={userID}. Entries come back
// newest first.
func (s *Service) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListHistory(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// DeleteHistory handles DELETE /api/v1/history/{historyID}. Deleting an
// absent entry is a no-op.
func (s *Service) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteHistory(r.Context(), chi.URLParam(r, "historyID")); err != nil {
		writeError(w, "failed to delete history entry", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Stats ---

// StatsResponse bundles the three derived views for one owner filter.
type StatsResponse struct {
	Assets    stats.AssetStats    `json:"assets"`
	Dividends stats.DividendStats `json:"dividends"`
	History   stats.HistoryStats  `json:"history"`
}

// GetStats handles GET /api/v1/stats?user={userID}. Everything is
// recomputed from the current collections on each call.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	assets, dividends, history, err := s.store.FilterByOwner(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, "failed to load collections", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Assets:    stats.Assets(assets, dividends),
		Dividends: stats.Dividends(dividends, assets),
		History:   stats.History(history),
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Shared helpers ---

// validDate reports whether d is a well-formed YYYY-MM-DD date.
func validDate(d string) bool {
	_, err := time.Parse("2006-01-02", d)
	return err == nil
}

// today returns the current date in the wire format.
func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// syncAssetGauge refreshes the tracked-assets gauge after a mutation.
func (s *Service) syncAssetGauge(r *http.Request) {
	if assets, err := s.store.ListAssets(r.Context(), ""); err == nil {
		metrics.TrackedAssets.Set(float64(len(assets)))
	}
}

func (s *Service) notify(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
