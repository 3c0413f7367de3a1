package pricing

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/printshop/internal/domain"
)

func TestPrice_ReferenceSize(t *testing.T) {
	p, err := Price(105, 12*8)
	require.NoError(t, err)
	assert.Equal(t, int64(105), p)
}

func TestPrice_FourTimesReferenceArea(t *testing.T) {
	p, err := Price(105, 24*16)
	require.NoError(t, err)
	assert.Equal(t, int64(297), p)
}

func TestPrice_RejectsNonPositiveInputs(t *testing.T) {
	_, err := Price(0, 96)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Price(105, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Price(-5, 96)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPrice_StrictlyIncreasingInArea(t *testing.T) {
	sizes := DefaultSizes()
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].AreaSqIn() < sizes[j].AreaSqIn() })
	for _, m := range DefaultMaterials() {
		var prev int64
		for i, s := range sizes {
			p, err := Price(m.BasePrice, s.AreaSqIn())
			require.NoError(t, err)
			if i > 0 && s.AreaSqIn() > sizes[i-1].AreaSqIn() {
				assert.Greater(t, p, prev, "%s %s", m.Material, s)
			}
			prev = p
		}
	}
}

func TestDPIAndTier(t *testing.T) {
	cases := []struct {
		size domain.PrintSize
		dpi  int
		tier Tier
		ok   bool
	}{
		{domain.PrintSize{Width: 12, Height: 8}, 500, TierMuseum, true},
		{domain.PrintSize{Width: 24, Height: 16}, 250, TierExcellent, true},
		{domain.PrintSize{Width: 36, Height: 24}, 166, TierGood, true},
		{domain.PrintSize{Width: 60, Height: 40}, 100, "", false},
	}
	for _, c := range cases {
		dpi := DPI(6000, 4000, c.size)
		assert.Equal(t, c.dpi, dpi, c.size.String())
		assert.Equal(t, c.ok, Eligible(dpi), c.size.String())
		if c.ok {
			assert.Equal(t, c.tier, TierFor(dpi))
		}
	}
}

func TestDPI_UsesTighterAxis(t *testing.T) {
	// 20x20 from a 6000x4000 original is limited by height: 4000/20.
	assert.Equal(t, 200, DPI(6000, 4000, domain.PrintSize{Width: 20, Height: 20}))
	assert.Equal(t, 0, DPI(6000, 4000, domain.PrintSize{}))
}

func TestOrient(t *testing.T) {
	land := domain.PrintSize{Width: 24, Height: 16}
	assert.Equal(t, land, Orient(land, 6000, 4000))
	assert.Equal(t, domain.PrintSize{Width: 16, Height: 24}, Orient(land, 4000, 6000))
	sq := domain.PrintSize{Width: 20, Height: 20}
	assert.Equal(t, sq, Orient(sq, 4000, 6000))
}

func TestTable_VariantsOnlyEligible(t *testing.T) {
	tbl := DefaultTable()
	variants := tbl.Variants(6000, 4000)
	require.NotEmpty(t, variants)

	got := map[string]bool{}
	for _, v := range variants {
		assert.GreaterOrEqual(t, v.DPI, MinDPI)
		got[string(v.Material)+" "+v.Size.String()] = true
	}
	for _, m := range tbl.Materials() {
		for _, s := range tbl.Sizes() {
			want := Eligible(DPI(6000, 4000, s))
			assert.Equal(t, want, got[string(m.Material)+" "+s.String()], "%s %s", m.Material, s)
		}
	}
}

func TestTable_VariantsPortraitOriginal(t *testing.T) {
	for _, v := range DefaultTable().Variants(4000, 6000) {
		assert.GreaterOrEqual(t, v.Size.Height, v.Size.Width)
	}
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable([]MaterialSpec{{Material: "vinyl", BasePrice: 10}}, nil)
	assert.Error(t, err)

	_, err = NewTable([]MaterialSpec{{Material: domain.MaterialPaper, BasePrice: 0}}, nil)
	assert.Error(t, err)

	_, err = NewTable(DefaultMaterials(), []domain.PrintSize{{Width: 0, Height: 8}})
	assert.Error(t, err)
}

func TestTable_AccessorsReturnCopies(t *testing.T) {
	tbl := DefaultTable()
	ms := tbl.Materials()
	ms[0].BasePrice = 1
	spec, ok := tbl.Material(domain.MaterialCanvas)
	require.True(t, ok)
	assert.Equal(t, int64(105), spec.BasePrice)
}
