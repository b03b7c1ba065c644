package portfolio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
	"github.com/folio/portfolio-engine/internal/portfolio"
	"github.com/folio/portfolio-engine/internal/quotes"
	"github.com/folio/portfolio-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv builds a service over a fresh in-memory store and mounts it the
// way main does. The refresher is nil unless a test installs one.
func newTestEnv(t *testing.T, refresher *quotes.Refresher) (*store.MemoryStore, http.Handler) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := portfolio.NewService(st, refresher, decimal.Zero, nil)
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return st, r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func seedAsset(t *testing.T, st *store.MemoryStore, id, user, ticker string, avgCost, shares float64) {
	t.Helper()
	avg := d(avgCost)
	sh := d(shares)
	err := st.AddAsset(context.Background(), &model.Asset{
		ID:           id,
		UserID:       user,
		Ticker:       ticker,
		Type:         model.TypeStock,
		Currency:     "USD",
		AvgCost:      avg,
		Shares:       sh,
		CurrentPrice: avg,
		TotalCost:    avg.Mul(sh),
	})
	if err != nil {
		t.Fatal(err)
	}
}

// --- Assets ---

func TestCreateAsset(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/assets", map[string]any{
		"user_id":    "u1",
		"ticker":     "QDTE",
		"units":      30,
		"unit_price": 33.30,
		"buy_date":   "2025-05-14",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	asset := decode[model.Asset](t, rec)
	if !asset.TotalCost.Equal(asset.AvgCost.Mul(asset.Shares)) {
		t.Errorf("total cost invariant broken: total=%s avg=%s shares=%s",
			asset.TotalCost, asset.AvgCost, asset.Shares)
	}
	if !asset.TotalCost.Equal(d(999)) {
		t.Errorf("total cost: want 999, got %s", asset.TotalCost)
	}
	if !asset.CurrentPrice.Equal(d(33.30)) {
		t.Errorf("current price should start at entry price, got %s", asset.CurrentPrice)
	}
	if asset.Type != model.TypeStock {
		t.Errorf("type should default to Stock, got %s", asset.Type)
	}
	if len(asset.Transactions) != 1 || asset.Transactions[0].Date != "2025-05-14" {
		t.Errorf("initial transaction not recorded: %+v", asset.Transactions)
	}
}

func TestCreateAsset_Validation(t *testing.T) {
	_, h := newTestEnv(t, nil)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing ticker", map[string]any{"user_id": "u1", "units": 1, "unit_price": 1}},
		{"missing user", map[string]any{"ticker": "X", "units": 1, "unit_price": 1}},
		{"zero units", map[string]any{"user_id": "u1", "ticker": "X", "units": 0, "unit_price": 1}},
		{"negative price", map[string]any{"user_id": "u1", "ticker": "X", "units": 1, "unit_price": -2}},
		{"bad date", map[string]any{"user_id": "u1", "ticker": "X", "units": 1, "unit_price": 1, "buy_date": "05/14/2025"}},
		{"bad type", map[string]any{"user_id": "u1", "ticker": "X", "units": 1, "unit_price": 1, "type": "Bond"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/assets", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("want 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateAsset(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	rec := do(t, h, http.MethodPut, "/api/v1/assets/a1", map[string]any{
		"ticker":     "QDTE",
		"units":      80,
		"unit_price": 32.50,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	asset := decode[model.Asset](t, rec)
	if !asset.Shares.Equal(d(80)) || !asset.AvgCost.Equal(d(32.50)) {
		t.Errorf("edit not applied: shares=%s avg=%s", asset.Shares, asset.AvgCost)
	}
	if !asset.TotalCost.Equal(d(2600)) {
		t.Errorf("total cost: want 2600, got %s", asset.TotalCost)
	}
	// The market price is only ever written by the price flows.
	if !asset.CurrentPrice.Equal(d(33.13)) {
		t.Errorf("current price should be untouched by edit, got %s", asset.CurrentPrice)
	}
}

func TestUpdateAsset_TickerImmutable(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	rec := do(t, h, http.MethodPut, "/api/v1/assets/a1", map[string]any{
		"ticker":     "GOOG",
		"units":      50,
		"unit_price": 33.13,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("changing ticker: want 400, got %d", rec.Code)
	}

	// Omitting the ticker inherits the stored one and passes.
	rec = do(t, h, http.MethodPut, "/api/v1/assets/a1", map[string]any{
		"units":      50,
		"unit_price": 33.13,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("omitted ticker: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateAsset_NotFound(t *testing.T) {
	_, h := newTestEnv(t, nil)
	rec := do(t, h, http.MethodPut, "/api/v1/assets/ghost", map[string]any{
		"ticker": "X", "units": 1, "unit_price": 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("want 404, got %d", rec.Code)
	}
}

func TestDeleteAsset_AbsentIsNoOp(t *testing.T) {
	_, h := newTestEnv(t, nil)
	rec := do(t, h, http.MethodDelete, "/api/v1/assets/ghost", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("want 204, got %d", rec.Code)
	}
}

// --- Sell ---

func TestSellAsset_Full(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	rec := do(t, h, http.MethodPost, "/api/v1/assets/a1/sell", map[string]any{
		"quantity": 50,
		"price":    34,
		"date":     "2025-08-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	entry := decode[model.HistoryEntry](t, rec)
	if !entry.PnL.Equal(d(43.5)) {
		t.Errorf("pnl: want 43.5, got %s", entry.PnL)
	}
	if !entry.PnLPercent.Equal(d(2.6260)) {
		t.Errorf("pnl percent: want 2.6260, got %s", entry.PnLPercent)
	}
	if !entry.AvgBuyPrice.Equal(d(33.13)) || !entry.Shares.Equal(d(50)) {
		t.Errorf("entry basis: avg=%s shares=%s", entry.AvgBuyPrice, entry.Shares)
	}

	// Full disposal removes the position.
	if _, err := st.GetAsset(context.Background(), "a1"); err == nil {
		t.Error("asset should be removed after selling the whole position")
	}
	history, _ := st.ListHistory(context.Background(), "")
	if len(history) != 1 {
		t.Errorf("want exactly 1 history entry, got %d", len(history))
	}
}

func TestSellAsset_OverSellIsFullDisposal(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	rec := do(t, h, http.MethodPost, "/api/v1/assets/a1/sell", map[string]any{
		"quantity": 60,
		"price":    34,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := st.GetAsset(context.Background(), "a1"); err == nil {
		t.Error("selling more than held should still remove the asset")
	}
}

func TestSellAsset_Partial(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	rec := do(t, h, http.MethodPost, "/api/v1/assets/a1/sell", map[string]any{
		"quantity": 20,
		"price":    35,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	asset, err := st.GetAsset(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !asset.Shares.Equal(d(30)) {
		t.Errorf("shares: want 30, got %s", asset.Shares)
	}
	// A partial sell never moves the average cost.
	if !asset.AvgCost.Equal(d(33.13)) {
		t.Errorf("avg cost: want 33.13, got %s", asset.AvgCost)
	}
	if !asset.TotalCost.Equal(d(993.9)) {
		t.Errorf("total cost: want 993.9, got %s", asset.TotalCost)
	}
}

func TestSellAsset_Errors(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	rec := do(t, h, http.MethodPost, "/api/v1/assets/a1/sell", map[string]any{
		"quantity": 0, "price": 34,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("zero quantity: want 409, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/assets/a1/sell", map[string]any{
		"quantity": 10, "price": 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero price: want 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/assets/ghost/sell", map[string]any{
		"quantity": 10, "price": 34,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown asset: want 404, got %d", rec.Code)
	}

	// Nothing above should have left a history entry behind.
	history, _ := st.ListHistory(context.Background(), "")
	if len(history) != 0 {
		t.Errorf("rejected sells must not write history, got %d entries", len(history))
	}
}

// --- Dividends ---

func TestCreateDividend_Taxable(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/dividends", map[string]any{
		"user_id":          "u1",
		"ticker":           "QDTE",
		"ex_date":          "2025-07-15",
		"amount_per_share": 0.31,
		"units":            30,
		"taxable":          true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	div := decode[model.Dividend](t, rec)
	if !div.GrossAmount.Equal(d(9.30)) {
		t.Errorf("gross: want 9.30, got %s", div.GrossAmount)
	}
	if !div.Tax.Equal(d(2.79)) {
		t.Errorf("tax at 30%%: want 2.79, got %s", div.Tax)
	}
	if !div.NetAmount.Equal(d(6.51)) {
		t.Errorf("net: want 6.51, got %s", div.NetAmount)
	}
	if !div.NetAmountTWD.Equal(d(211.575)) {
		t.Errorf("net TWD at 32.5: want 211.575, got %s", div.NetAmountTWD)
	}
	if div.PayDate != div.ExDate {
		t.Errorf("pay date should mirror ex date, got %s vs %s", div.PayDate, div.ExDate)
	}
	if div.Frequency != model.FreqUnknown {
		t.Errorf("frequency: want Unknown sentinel, got %s", div.Frequency)
	}
}

func TestCreateDividend_NonTaxable(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/dividends", map[string]any{
		"user_id":          "u2",
		"ticker":           "00919",
		"amount_per_share": 0.72,
		"units":            1000,
		"taxable":          false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	div := decode[model.Dividend](t, rec)
	if !div.Tax.Equal(decimal.Zero) {
		t.Errorf("tax: want 0, got %s", div.Tax)
	}
	if !div.NetAmount.Equal(div.GrossAmount) {
		t.Errorf("net should equal gross when not taxable: %s vs %s",
			div.NetAmount, div.GrossAmount)
	}
}

func TestCreateDividend_Validation(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/dividends", map[string]any{
		"user_id": "u1", "ticker": "QDTE", "amount_per_share": 0, "units": 30,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero amount: want 400, got %d", rec.Code)
	}
}

func TestUpdateDividend(t *testing.T) {
	st, h := newTestEnv(t, nil)
	err := st.AddDividend(context.Background(), &model.Dividend{
		ID: "d1", UserID: "u1", Ticker: "QDTE",
		AmountPerShare: d(0.31), Shares: d(30),
		GrossAmount: d(9.30), Tax: d(2.79), NetAmount: d(6.51),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodPut, "/api/v1/dividends/d1", map[string]any{
		"ticker":           "QDTE",
		"ex_date":          "2025-07-15",
		"amount_per_share": 0.40,
		"units":            30,
		"taxable":          false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	div := decode[model.Dividend](t, rec)
	if !div.GrossAmount.Equal(d(12)) || !div.Tax.Equal(decimal.Zero) {
		t.Errorf("recompute: gross=%s tax=%s", div.GrossAmount, div.Tax)
	}
	if div.UserID != "u1" {
		t.Errorf("owner must survive edits, got %q", div.UserID)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/dividends/ghost", map[string]any{
		"ticker": "X", "amount_per_share": 1, "units": 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown dividend: want 404, got %d", rec.Code)
	}
}

// --- Prices ---

func TestUpdatePrices(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)
	seedAsset(t, st, "a2", "u1", "GOOG", 203.45, 2)

	rec := do(t, h, http.MethodPut, "/api/v1/prices", map[string]any{
		"prices": map[string]any{"a1": 34.95, "ghost": 1},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[portfolio.PriceUpdateResponse](t, rec)
	if resp.Updated != 1 {
		t.Errorf("updated: want 1, got %d", resp.Updated)
	}

	a1, _ := st.GetAsset(context.Background(), "a1")
	if !a1.CurrentPrice.Equal(d(34.95)) {
		t.Errorf("a1 price: want 34.95, got %s", a1.CurrentPrice)
	}
	a2, _ := st.GetAsset(context.Background(), "a2")
	if !a2.CurrentPrice.Equal(d(203.45)) {
		t.Errorf("a2 price should be untouched, got %s", a2.CurrentPrice)
	}
}

func TestUpdatePrices_Validation(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodPut, "/api/v1/prices", map[string]any{
		"prices": map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty mapping: want 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/prices", map[string]any{
		"prices": map[string]any{"a1": -1},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative price: want 400, got %d", rec.Code)
	}
}

func TestRefreshPrices_NotConfigured(t *testing.T) {
	_, h := newTestEnv(t, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/prices/refresh", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("want 503, got %d", rec.Code)
	}
}

// fakeSource serves canned prices by ticker.
type fakeSource struct {
	prices map[string]decimal.Decimal
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(_ context.Context, asset model.Asset) (decimal.Decimal, error) {
	if p, ok := f.prices[asset.Ticker]; ok {
		return p, nil
	}
	return decimal.Zero, quotes.ErrNoQuote
}

func TestRefreshPrices(t *testing.T) {
	stock := &fakeSource{prices: map[string]decimal.Decimal{"QDTE": d(34.95)}}
	refresher := quotes.NewRefresher(stock, nil, 0, time.Second)

	st, h := newTestEnv(t, refresher)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)
	seedAsset(t, st, "a2", "u1", "DEAD", 5, 10)

	rec := do(t, h, http.MethodPost, "/api/v1/prices/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[portfolio.RefreshResponse](t, rec)
	if len(resp.Results) != 2 {
		t.Fatalf("want a result per asset, got %d", len(resp.Results))
	}
	if resp.Updated != 1 {
		t.Errorf("updated: want 1, got %d", resp.Updated)
	}
	if !resp.Results[0].OK || !resp.Results[0].Price.Equal(d(34.95)) {
		t.Errorf("QDTE result: %+v", resp.Results[0])
	}
	if resp.Results[1].OK || resp.Results[1].Error == "" {
		t.Errorf("DEAD result should carry the failure: %+v", resp.Results[1])
	}

	// One dead ticker never blocks the others' write-back.
	a1, _ := st.GetAsset(context.Background(), "a1")
	if !a1.CurrentPrice.Equal(d(34.95)) {
		t.Errorf("a1 price: want 34.95, got %s", a1.CurrentPrice)
	}
	a2, _ := st.GetAsset(context.Background(), "a2")
	if !a2.CurrentPrice.Equal(d(5)) {
		t.Errorf("a2 price should be untouched, got %s", a2.CurrentPrice)
	}
}

// --- Users, history, stats ---

func TestUsers(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/users", map[string]any{"name": "Nan"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", rec.Code)
	}
	u := decode[model.User](t, rec)
	if u.ID == "" || u.Name != "Nan" {
		t.Errorf("created user: %+v", u)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/users/"+u.ID, map[string]any{"name": "Nan (2)"})
	if rec.Code != http.StatusOK {
		t.Errorf("rename: want 200, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/users/ghost", map[string]any{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("rename unknown user: want 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/users", map[string]any{"name": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: want 400, got %d", rec.Code)
	}
}

func TestDeleteHistory_AbsentIsNoOp(t *testing.T) {
	_, h := newTestEnv(t, nil)
	rec := do(t, h, http.MethodDelete, "/api/v1/history/ghost", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("want 204, got %d", rec.Code)
	}
}

func TestGetStats_EmptyPortfolio(t *testing.T) {
	_, h := newTestEnv(t, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	resp := decode[portfolio.StatsResponse](t, rec)
	if !resp.Assets.ROICurrent.Equal(decimal.Zero) || !resp.Assets.ROITotal.Equal(decimal.Zero) {
		t.Errorf("empty portfolio ROI must be exactly zero: %+v", resp.Assets)
	}
	if !resp.Dividends.YieldRate.Equal(decimal.Zero) {
		t.Errorf("empty portfolio yield must be exactly zero: %s", resp.Dividends.YieldRate)
	}
}

func TestGetStats_OwnerScoped(t *testing.T) {
	st, h := newTestEnv(t, nil)
	seedAsset(t, st, "a1", "u1", "QDTE", 10, 100) // invested 1000
	seedAsset(t, st, "a2", "u2", "GOOG", 200, 10) // invested 2000

	rec := do(t, h, http.MethodGet, "/api/v1/stats?user=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	resp := decode[portfolio.StatsResponse](t, rec)
	if !resp.Assets.TotalInvested.Equal(d(1000)) {
		t.Errorf("u1 invested: want 1000, got %s", resp.Assets.TotalInvested)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/stats", nil)
	resp = decode[portfolio.StatsResponse](t, rec)
	if !resp.Assets.TotalInvested.Equal(d(3000)) {
		t.Errorf("combined invested: want 3000, got %s", resp.Assets.TotalInvested)
	}
}

// gatedStore pauses the first GetAsset until released, exposing the window
// between a sell's read and its write-back.
type gatedStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	gated := false
	g.once.Do(func() { gated = true })
	if gated {
		close(g.entered)
		<-g.release
	}
	return g.MemoryStore.GetAsset(ctx, id)
}

func TestUpdateAsset_SerializedWithSell(t *testing.T) {
	st := store.NewMemoryStore()
	gs := &gatedStore{
		MemoryStore: st,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := portfolio.NewService(gs, nil, decimal.Zero, nil)
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	seedAsset(t, st, "a1", "u1", "QDTE", 33.13, 50)

	sellDone := make(chan int)
	go func() {
		rec := do(t, r, http.MethodPost, "/api/v1/assets/a1/sell", map[string]any{
			"quantity": 20, "price": 35,
		})
		sellDone <- rec.Code
	}()

	// The sell is now paused inside its read, holding the service mutex.
	<-gs.entered

	editDone := make(chan int)
	go func() {
		rec := do(t, r, http.MethodPut, "/api/v1/assets/a1", map[string]any{
			"units": 100, "unit_price": 33.13,
		})
		editDone <- rec.Code
	}()

	// The edit must not slip into the sell's read-write window.
	select {
	case <-editDone:
		t.Fatal("edit ran inside the sell's read-write window")
	case <-time.After(50 * time.Millisecond):
	}

	close(gs.release)
	if code := <-sellDone; code != http.StatusOK {
		t.Fatalf("sell: want 200, got %d", code)
	}
	if code := <-editDone; code != http.StatusOK {
		t.Fatalf("edit: want 200, got %d", code)
	}

	// Sell committed first (30 shares), then the edit applied on top. The
	// sell's stale read must never overwrite the edit.
	asset, err := st.GetAsset(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !asset.Shares.Equal(d(100)) {
		t.Errorf("final shares: want 100 (edit after sell), got %s", asset.Shares)
	}
	if !asset.TotalCost.Equal(d(3313)) {
		t.Errorf("final total cost: want 3313, got %s", asset.TotalCost)
	}
}

func TestUpdateAsset_KeepsDataURL(t *testing.T) {
	st, h := newTestEnv(t, nil)
	err := st.AddAsset(context.Background(), &model.Asset{
		ID:           "f1",
		UserID:       "u2",
		Ticker:       "Allianz-Income",
		Type:         model.TypeFund,
		Currency:     "USD",
		AvgCost:      d(8.38),
		Shares:       d(1000),
		CurrentPrice: d(8.51),
		TotalCost:    d(8380),
		DataURL:      "https://fund.example.com/nav",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Edit without a data_url must not cut the fund off from its NAV page.
	rec := do(t, h, http.MethodPut, "/api/v1/assets/f1", map[string]any{
		"units": 1200, "unit_price": 8.40, "type": "Fund",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	asset := decode[model.Asset](t, rec)
	if asset.DataURL != "https://fund.example.com/nav" {
		t.Errorf("data URL should survive an edit omitting it, got %q", asset.DataURL)
	}

	// A new URL still replaces the stored one.
	rec = do(t, h, http.MethodPut, "/api/v1/assets/f1", map[string]any{
		"units": 1200, "unit_price": 8.40, "type": "Fund",
		"data_url": "https://fund.example.com/nav2",
	})
	asset = decode[model.Asset](t, rec)
	if asset.DataURL != "https://fund.example.com/nav2" {
		t.Errorf("explicit data URL should replace, got %q", asset.DataURL)
	}
}
