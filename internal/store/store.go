// Package store holds the three ordered domain collections — assets,
// dividends, realized history — plus the user roster. The in-memory
// implementation is the only one: persisted state is out of scope, all data
// is seeded at startup and lost on restart.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
// Delete operations never return it: deleting an absent id is a no-op.
var ErrNotFound = errors.New("store: not found")

// Store is the domain store contract. Owner-scoped list methods treat an
// empty ownerID as "all owners, unfiltered".
type Store interface {
	// --- Users ---

	// AddUser registers a new owner.
	AddUser(ctx context.Context, u *model.User) error

	// RenameUser changes a user's display name.
	RenameUser(ctx context.Context, id, name string) error

	// ListUsers returns all users in registration order.
	ListUsers(ctx context.Context) ([]model.User, error)

	// --- Assets ---

	// AddAsset appends a new holding.
	AddAsset(ctx context.Context, a *model.Asset) error

	// GetAsset retrieves a holding by id.
	GetAsset(ctx context.Context, id string) (*model.Asset, error)

	// UpdateAsset replaces a holding in place, preserving its position.
	UpdateAsset(ctx context.Context, a *model.Asset) error

	// DeleteAsset removes a holding. No-op when the id is absent.
	DeleteAsset(ctx context.Context, id string) error

	// ListAssets returns holdings, optionally scoped to one owner.
	ListAssets(ctx context.Context, ownerID string) ([]model.Asset, error)

	// UpdatePrices overwrites CurrentPrice for every asset id present in
	// the mapping. Unknown ids are ignored. No other field is touched.
	// Returns the number of assets actually updated.
	UpdatePrices(ctx context.Context, prices map[string]decimal.Decimal) (int, error)

	// --- Dividends ---

	// AddDividend appends a dividend receipt.
	AddDividend(ctx context.Context, d *model.Dividend) error

	// GetDividend retrieves a dividend by id.
	GetDividend(ctx context.Context, id string) (*model.Dividend, error)

	// UpdateDividend replaces a dividend in place.
	UpdateDividend(ctx context.Context, d *model.Dividend) error

	// DeleteDividend removes a dividend. No-op when the id is absent.
	DeleteDividend(ctx context.Context, id string) error

	// ListDividends returns dividends, optionally scoped to one owner.
	ListDividends(ctx context.Context, ownerID string) ([]model.Dividend, error)

	// --- Realized history ---

	// AddHistory prepends a realized disposal (newest first).
	AddHistory(ctx context.Context, h *model.HistoryEntry) error

	// DeleteHistory removes an entry. No-op when the id is absent.
	DeleteHistory(ctx context.Context, id string) error

	// ListHistory returns history entries, optionally scoped to one owner.
	ListHistory(ctx context.Context, ownerID string) ([]model.HistoryEntry, error)

	// FilterByOwner returns the three collections for one owner, or for
	// everyone when ownerID is empty.
	FilterByOwner(ctx context.Context, ownerID string) ([]model.Asset, []model.Dividend, []model.HistoryEntry, error)
}
