// Package registry creates and looks up markets by id.
package registry

import (
	"fmt"
	"unicode/utf8"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

// MaxTitleLen is the longest title in bytes (nine packed words).
const MaxTitleLen = 72

// CreateParams describes a new market. Offsets are relative to the logical
// clock at creation time.
type CreateParams struct {
	Title            string
	StartOffset      uint64
	EndOffset        uint64
	ResolutionOffset uint64
	YesLiquidity     uint64
	NoLiquidity      uint64
}

// Registry owns every market. Ids start at 1, are assigned sequentially
// and never reused; markets are never deleted.
type Registry struct {
	markets map[uint64]model.Market
	ids     []uint64
	nextID  uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		markets: make(map[uint64]model.Market),
		nextID:  1,
	}
}

// Create validates p, assigns the next id and stores the market.
func (r *Registry) Create(now uint64, p CreateParams) (model.Market, error) {
	if len(p.Title) == 0 || len(p.Title) > MaxTitleLen || !utf8.ValidString(p.Title) {
		return model.Market{}, result.ErrInvalidMarketTitle
	}
	start, err := safemath.Add(now, p.StartOffset)
	if err != nil {
		return model.Market{}, err
	}
	end, err := safemath.Add(now, p.EndOffset)
	if err != nil {
		return model.Market{}, err
	}
	resolution, err := safemath.Add(now, p.ResolutionOffset)
	if err != nil {
		return model.Market{}, err
	}
	if start >= end || end > resolution {
		return model.Market{}, result.ErrInvalidMarketTime
	}
	if err := safemath.ValidateLiquidity(p.YesLiquidity); err != nil {
		return model.Market{}, err
	}
	if err := safemath.ValidateLiquidity(p.NoLiquidity); err != nil {
		return model.Market{}, err
	}
	next, err := safemath.Add(r.nextID, 1)
	if err != nil {
		return model.Market{}, err
	}

	m := model.Market{
		ID:             r.nextID,
		Title:          p.Title,
		StartTime:      start,
		EndTime:        end,
		ResolutionTime: resolution,
		YesLiquidity:   p.YesLiquidity,
		NoLiquidity:    p.NoLiquidity,
	}
	r.markets[m.ID] = m
	r.ids = append(r.ids, m.ID)
	r.nextID = next
	return m, nil
}

// Get returns a copy of market id.
func (r *Registry) Get(id uint64) (model.Market, error) {
	m, ok := r.markets[id]
	if !ok {
		return model.Market{}, result.ErrMarketNotFound
	}
	return m, nil
}

// Put replaces an existing market.
func (r *Registry) Put(m model.Market) error {
	if _, ok := r.markets[m.ID]; !ok {
		return result.ErrMarketNotFound
	}
	r.markets[m.ID] = m
	return nil
}

// IDs returns the live market ids in creation order.
func (r *Registry) IDs() []uint64 {
	out := make([]uint64, len(r.ids))
	copy(out, r.ids)
	return out
}

// NextID is the id the next created market will receive.
func (r *Registry) NextID() uint64 {
	return r.nextID
}

// Len returns the number of markets.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Restore replaces the registry contents with persisted state. Every id
// must have a matching market and be below nextID.
func (r *Registry) Restore(nextID uint64, ids []uint64, markets []model.Market) error {
	byID := make(map[uint64]model.Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}
	for _, id := range ids {
		if id == 0 || id >= nextID {
			return fmt.Errorf("registry: market id %d outside [1, %d)", id, nextID)
		}
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("registry: market %d listed but not loaded", id)
		}
	}
	if len(byID) != len(ids) {
		return fmt.Errorf("registry: %d markets loaded for %d ids", len(byID), len(ids))
	}
	r.markets = byID
	r.ids = append([]uint64(nil), ids...)
	r.nextID = nextID
	return nil
}
