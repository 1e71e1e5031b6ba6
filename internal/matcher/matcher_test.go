package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmagician/pharma-engine/internal/index"
	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

func testCatalog() []types.RawProduct {
	return []types.RawProduct{
		{ID: "p1", Title: "Solgar Vitamin D3 1000 IU 60 kapsula", Price: 1590, VendorID: "v1"},
		{ID: "p2", Title: "Vitamin D 1000 IU kapi", Price: 890, VendorID: "v2"},
		{ID: "p3", Title: "Magnezijum 375mg 30 kesica", Price: 640, VendorID: "v1"},
		{ID: "p4", Title: "Pampers Newborn pelene 2-5kg 43 kom", Price: 1200, VendorID: "v3"},
		{ID: "p5", Title: "Now Foods Vitamin D3 2000 IU 120 softgels", Price: 2100, VendorID: "v2"},
	}
}

func buildSnapshot(t *testing.T, norm *normalizer.Normalizer, opts ...index.BuilderOption) *index.Snapshot {
	t.Helper()
	snap, err := index.NewBuilder(norm, opts...).Build(context.Background(), testCatalog())
	require.NoError(t, err)
	return snap
}

func ids(cands []types.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ProductID
	}
	return out
}

func TestMatchVitaminDQuery(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	cands, err := m.Match(context.Background(), snap, "vitamin d", types.ModeAuto)
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	got := ids(cands)
	assert.Contains(t, got, "p1")
	assert.Contains(t, got, "p2")
	assert.NotContains(t, got, "p4", "diapers do not match a vitamin query")

	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
}

func TestMatchShortQuery(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	cands, err := m.Match(context.Background(), snap, "D3", types.ModeAuto)
	require.NoError(t, err)

	got := ids(cands)
	assert.Contains(t, got, "p1", "two-character queries still retrieve")
	assert.Contains(t, got, "p5")
}

func TestMatchTypoFallsToFuzzy(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	cands, err := m.Match(context.Background(), snap, "vitamn", types.ModeAuto)
	require.NoError(t, err)
	assert.Contains(t, ids(cands), "p1")

	exact, err := m.Match(context.Background(), snap, "vitamn", types.ModeExact)
	require.NoError(t, err)
	assert.NotContains(t, ids(exact), "p1", "exact mode never guesses")
}

func TestMatchSubsequenceFallback(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	cands, err := m.Match(context.Background(), snap, "slgr", types.ModeAuto)
	require.NoError(t, err)
	assert.Contains(t, ids(cands), "p1", "subsequence fallback fires on zero hits")
}

func TestMatchDeterministic(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	a, err := m.Match(context.Background(), snap, "vitamin d", types.ModeAuto)
	require.NoError(t, err)
	b, err := m.Match(context.Background(), snap, "vitamin d", types.ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMatchEmptyQuery(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	cands, err := m.Match(context.Background(), snap, "   ", types.ModeAuto)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestMatchHonorsCancellation(t *testing.T) {
	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(DefaultConfig(), norm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Match(ctx, snap, "vitamin d", types.ModeAuto)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func TestSemanticTierDegradesOnEmbedderError(t *testing.T) {
	norm := normalizer.New()
	healthy := &stubEmbedder{vec: []float32{1, 0, 0}}
	snap := buildSnapshot(t, norm, index.WithEmbedder(healthy))
	require.True(t, snap.HasVectors())

	broken := &stubEmbedder{err: errors.New("model down")}
	m := New(DefaultConfig(), norm, WithEmbedder(broken))

	cands, err := m.Match(context.Background(), snap, "vitamin d", types.ModeAuto)
	require.NoError(t, err, "embedding failure must not fail the search")
	assert.NotEmpty(t, cands)
}

func TestSemanticTierContributes(t *testing.T) {
	norm := normalizer.New()
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	snap := buildSnapshot(t, norm, index.WithEmbedder(emb))

	m := New(DefaultConfig(), norm, WithEmbedder(emb))
	cands, err := m.Match(context.Background(), snap, "magnezijum", types.ModeAuto)
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	// Every product embeds to the same vector here, so the semantic tier
	// reaches products the lexical tiers never touch.
	assert.Greater(t, len(cands), 1)
}

func TestExactTrustShrinksInexactTail(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExactTrust = 1
	cfg.TrustedPool = 2

	norm := normalizer.New()
	snap := buildSnapshot(t, norm)
	m := New(cfg, norm)

	cands, err := m.Match(context.Background(), snap, "vitamin d 1000 iu kapi", types.ModeAuto)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.LessOrEqual(t, len(cands), 2)
	assert.Equal(t, "p2", cands[0].ProductID)
	assert.Equal(t, types.MatchExact, cands[0].MatchedVia)
}
