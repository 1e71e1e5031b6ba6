package grouper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

type fixture struct {
	members map[string]Member
}

func newFixture(products ...types.RawProduct) *fixture {
	norm := normalizer.New()
	f := &fixture{members: make(map[string]Member, len(products))}
	for _, p := range products {
		f.members[p.ID] = Member{Product: p, Identity: norm.Normalize(p.Title, p.BrandName)}
	}
	return f
}

func (f *fixture) resolve(id string) (Member, bool) {
	m, ok := f.members[id]
	return m, ok
}

func candidates(ids ...string) []types.Candidate {
	out := make([]types.Candidate, len(ids))
	for i, id := range ids {
		out[i] = types.Candidate{ProductID: id, Score: 1 - float64(i)*0.01, MatchedVia: types.MatchExact}
	}
	return out
}

func TestSynonymVariantsMergeAcrossVendors(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Vitamin D3 1000 IU 60 kapsula", Price: 1200, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Vitamin D 1000 IU kapsule", Price: 990, VendorID: "v2"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("a", "b"), "vitamin d", f.resolve)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].ProductCount)
	assert.Equal(t, 2, groups[0].VendorCount)
	assert.Equal(t, "b", groups[0].Products[0].ID, "cheapest offer comes first")
}

func TestBrandVetoSplitsSameCore(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Solgar Vitamin D3 1000 IU", Price: 1590, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Now Foods Vitamin D3 1000 IU", Price: 1100, VendorID: "v2"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("a", "b"), "vitamin d", f.resolve)
	require.NoError(t, err)
	assert.Len(t, groups, 2, "same core name, different brands, never one group")
}

func TestVariantLinesStaySeparate(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Pampers Newborn pelene 2-5kg 43 kom", Price: 1200, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Pampers Maxi pelene 9-14kg 52 kom", Price: 1350, VendorID: "v2"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("a", "b"), "pampers", f.resolve)
	require.NoError(t, err)
	assert.Len(t, groups, 2, "same brand but different variant lines")
}

func TestStrengthBandPenalty(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Vitamin D3 1000 IU kapsule", Price: 900, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Vitamin D3 1200 IU kapsule", Price: 950, VendorID: "v2"},
		types.RawProduct{ID: "c", Title: "Vitamin D3 10000 IU kapsule", Price: 1900, VendorID: "v3"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("a", "b", "c"), "vitamin d 1000", f.resolve)
	require.NoError(t, err)

	// 1000 and 1200 IU share a band and merge via the grouping key; the
	// 10000 IU product sits in another band yet carries an identical core
	// name, so the penalized bar still lets it in.
	require.NotEmpty(t, groups)
	assert.Equal(t, 3, groups[0].ProductCount)
}

func TestSingleWordQueryUsesStrictBar(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Hijaluron serum 30ml", Price: 1500, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Hijaluron maska 50ml", Price: 900, VendorID: "v2"},
	)
	g := New(DefaultConfig())

	single, err := g.Group(context.Background(), candidates("a", "b"), "hijaluron", f.resolve)
	require.NoError(t, err)
	assert.Len(t, single, 2, "single-word query groups conservatively")
}

func TestDesignatorTokensVetoMerge(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Vitamin D 1000 IU tablete", Price: 900, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Vitamin C 1000 mg tablete", Price: 700, VendorID: "v2"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("a", "b"), "vitamin supplement", f.resolve)
	require.NoError(t, err)
	assert.Len(t, groups, 2, "one-letter designators distinguish entire products")
}

func TestGroupOrderFollowsRank(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Magnezijum 375mg kesice", Price: 640, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Vitamin C 500mg tablete", Price: 420, VendorID: "v1"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("a", "b"), "magnezijum vitamin", f.resolve)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 0, groups[0].RelevanceRank)
	assert.Equal(t, 1, groups[1].RelevanceRank)
	assert.Less(t, groups[0].RelevanceRank, groups[1].RelevanceRank)
}

func TestGroupIDStableAcrossRuns(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Vitamin D3 1000 IU", Price: 900, VendorID: "v1"},
	)
	g := New(DefaultConfig())

	first, err := g.Group(context.Background(), candidates("a"), "vitamin d", f.resolve)
	require.NoError(t, err)
	second, err := g.Group(context.Background(), candidates("a"), "vitamin d", f.resolve)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Len(t, first[0].ID, 12)
}

func TestUnresolvableCandidatesSkipped(t *testing.T) {
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Vitamin D3 1000 IU", Price: 900, VendorID: "v1"},
	)
	g := New(DefaultConfig())

	groups, err := g.Group(context.Background(), candidates("ghost", "a"), "vitamin d", f.resolve)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "a", groups[0].Products[0].ID)
}

func TestMaxGroupsBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxGroups = 1
	f := newFixture(
		types.RawProduct{ID: "a", Title: "Magnezijum 375mg", Price: 640, VendorID: "v1"},
		types.RawProduct{ID: "b", Title: "Vitamin C 500mg", Price: 420, VendorID: "v1"},
	)
	g := New(cfg)

	groups, err := g.Group(context.Background(), candidates("a", "b"), "magnezijum vitamin", f.resolve)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}
