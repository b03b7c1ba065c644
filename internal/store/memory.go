package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/folio/portfolio-engine/internal/model"
)

// MemoryStore implements Store with ordered in-memory slices guarded by a
// RWMutex. Assets keep insertion order; dividends and history are kept
// newest first. The dividend grouping's stable tie-breaks run over this
// list order.
type MemoryStore struct {
	mu        sync.RWMutex
	users     []model.User
	assets    []model.Asset
	dividends []model.Dividend
	history   []model.HistoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// --- Users ---

func (s *MemoryStore) AddUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryStore) RenameUser(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].Name = name
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

// --- Assets ---

func (s *MemoryStore) AddAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, cloneAsset(a))
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.assets {
		if s.assets[i].ID == id {
			a := cloneAsset(&s.assets[i])
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assets {
		if s.assets[i].ID == a.ID {
			s.assets[i] = cloneAsset(a)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assets {
		if s.assets[i].ID == id {
			s.assets = append(s.assets[:i], s.assets[i+1:]...)
			return nil
		}
	}
	return nil // absent id is a no-op
}

func (s *MemoryStore) ListAssets(_ context.Context, ownerID string) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Asset, 0, len(s.assets))
	for i := range s.assets {
		if ownerID != "" && s.assets[i].UserID != ownerID {
			continue
		}
		out = append(out, cloneAsset(&s.assets[i]))
	}
	return out, nil
}

func (s *MemoryStore) UpdatePrices(_ context.Context, prices map[string]decimal.Decimal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for i := range s.assets {
		if p, ok := prices[s.assets[i].ID]; ok {
			s.assets[i].CurrentPrice = p
			updated++
		}
	}
	return updated, nil
}

// --- Dividends ---

func (s *MemoryStore) AddDividend(_ context.Context, d *model.Dividend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dividends = append([]model.Dividend{*d}, s.dividends...)
	return nil
}

func (s *MemoryStore) GetDividend(_ context.Context, id string) (*model.Dividend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.dividends {
		if s.dividends[i].ID == id {
			d := s.dividends[i]
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateDividend(_ context.Context, d *model.Dividend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.dividends {
		if s.dividends[i].ID == d.ID {
			s.dividends[i] = *d
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteDividend(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.dividends {
		if s.dividends[i].ID == id {
			s.dividends = append(s.dividends[:i], s.dividends[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ListDividends(_ context.Context, ownerID string) ([]model.Dividend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Dividend, 0, len(s.dividends))
	for _, d := range s.dividends {
		if ownerID != "" && d.UserID != ownerID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// --- Realized history ---

func (s *MemoryStore) AddHistory(_ context.Context, h *model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]model.HistoryEntry{*h}, s.history...)
	return nil
}

func (s *MemoryStore) DeleteHistory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.history {
		if s.history[i].ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, ownerID string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.HistoryEntry, 0, len(s.history))
	for _, h := range s.history {
		if ownerID != "" && h.UserID != ownerID {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *MemoryStore) FilterByOwner(ctx context.Context, ownerID string) ([]model.Asset, []model.Dividend, []model.HistoryEntry, error) {
	assets, err := s.ListAssets(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, err
	}
	dividends, err := s.ListDividends(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, err
	}
	history, err := s.ListHistory(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, err
	}
	return assets, dividends, history, nil
}

// cloneAsset copies an asset including its transaction slice so callers
// can never mutate stored state through a returned pointer.
func cloneAsset(a *model.Asset) model.Asset {
	out := *a
	if a.Transactions != nil {
		out.Transactions = make([]model.Transaction, len(a.Transactions))
		copy(out.Transactions, a.Transactions)
	}
	return out
}
