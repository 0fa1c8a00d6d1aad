package registry

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

func params() CreateParams {
	return CreateParams{
		Title:            "Will it rain tomorrow?",
		StartOffset:      0,
		EndOffset:        100,
		ResolutionOffset: 150,
		YesLiquidity:     1_000_000,
		NoLiquidity:      1_000_000,
	}
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	r := New()
	for want := uint64(1); want <= 3; want++ {
		m, err := r.Create(10, params())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if m.ID != want {
			t.Errorf("id = %d, want %d", m.ID, want)
		}
	}
	if got := r.IDs(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("ids = %v", got)
	}
	if r.NextID() != 4 {
		t.Errorf("next id = %d, want 4", r.NextID())
	}
}

func TestCreate_AbsoluteTimes(t *testing.T) {
	r := New()
	p := params()
	p.StartOffset = 5
	m, err := r.Create(42, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.StartTime != 47 || m.EndTime != 142 || m.ResolutionTime != 192 {
		t.Errorf("times = %d/%d/%d", m.StartTime, m.EndTime, m.ResolutionTime)
	}
	if m.PrizePool != 0 || m.Resolved || m.Outcome != model.OutcomeNone {
		t.Errorf("new market not pristine: %+v", m)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateParams)
		want   error
	}{
		{"empty title", func(p *CreateParams) { p.Title = "" }, result.ErrInvalidMarketTitle},
		{"long title", func(p *CreateParams) { p.Title = strings.Repeat("x", MaxTitleLen+1) }, result.ErrInvalidMarketTitle},
		{"bad utf8", func(p *CreateParams) { p.Title = "\xff\xfe" }, result.ErrInvalidMarketTitle},
		{"start equals end", func(p *CreateParams) { p.StartOffset = 100 }, result.ErrInvalidMarketTime},
		{"end after resolution", func(p *CreateParams) { p.ResolutionOffset = 99 }, result.ErrInvalidMarketTime},
		{"low liquidity", func(p *CreateParams) { p.YesLiquidity = safemath.MinLiquidity - 1 }, result.ErrInvalidCalculation},
		{"high liquidity", func(p *CreateParams) { p.NoLiquidity = safemath.MaxLiquidity + 1 }, result.ErrLiquidityTooHigh},
		{"offset overflow", func(p *CreateParams) { p.ResolutionOffset = math.MaxUint64 }, result.ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			p := params()
			tt.mutate(&p)
			if _, err := r.Create(1, p); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if r.Len() != 0 || r.NextID() != 1 {
				t.Errorf("failed create changed registry: len=%d next=%d", r.Len(), r.NextID())
			}
		})
	}
}

func TestCreate_EndMayEqualResolution(t *testing.T) {
	r := New()
	p := params()
	p.ResolutionOffset = p.EndOffset
	if _, err := r.Create(0, p); err != nil {
		t.Errorf("end == resolution should be allowed: %v", err)
	}
}

func TestGetPut(t *testing.T) {
	r := New()
	m, _ := r.Create(0, params())

	if _, err := r.Get(99); !errors.Is(err, result.ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}

	m.PrizePool = 500
	if err := r.Put(m); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := r.Get(m.ID)
	if got.PrizePool != 500 {
		t.Errorf("prize pool = %d, want 500", got.PrizePool)
	}

	if err := r.Put(model.Market{ID: 42}); !errors.Is(err, result.ErrMarketNotFound) {
		t.Errorf("put of unknown market should fail, got %v", err)
	}
}

func TestRestore(t *testing.T) {
	r := New()
	markets := []model.Market{{ID: 1, Title: "a"}, {ID: 3, Title: "c"}}
	if err := r.Restore(4, []uint64{1, 3}, markets); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if r.NextID() != 4 || r.Len() != 2 {
		t.Errorf("next=%d len=%d", r.NextID(), r.Len())
	}
	m, _ := r.Create(0, params())
	if m.ID != 4 {
		t.Errorf("id after restore = %d, want 4", m.ID)
	}

	if err := New().Restore(2, []uint64{2}, []model.Market{{ID: 2}}); err == nil {
		t.Error("id >= next id should be rejected")
	}
	if err := New().Restore(5, []uint64{1}, nil); err == nil {
		t.Error("missing market should be rejected")
	}
}
