package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

func testCatalog() []types.RawProduct {
	return []types.RawProduct{
		{ID: "p1", Title: "Solgar Vitamin D3 1000 IU 60 kapsula", Price: 1590, VendorID: "v1", VendorName: "Apoteka A"},
		{ID: "p2", Title: "Vitamin D 1000 IU kapi", Price: 890, VendorID: "v2", VendorName: "Apoteka B"},
		{ID: "p3", Title: "Magnezijum 375mg 30 kesica", Price: 640, VendorID: "v1", VendorName: "Apoteka A"},
		{ID: "p4", Title: "Pampers Newborn pelene 2-5kg 43 kom", Price: 1200, VendorID: "v3", VendorName: "Drogerija"},
	}
}

func buildTestSnapshot(t *testing.T, opts ...BuilderOption) *Snapshot {
	t.Helper()
	b := NewBuilder(normalizer.New(), opts...)
	snap, err := b.Build(context.Background(), testCatalog())
	require.NoError(t, err)
	return snap
}

func TestBuildDeterministic(t *testing.T) {
	a := buildTestSnapshot(t)
	b := buildTestSnapshot(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.IDs(), b.IDs())
}

func TestSnapshotLookups(t *testing.T) {
	snap := buildTestSnapshot(t)

	assert.Equal(t, 4, snap.Len())

	p, ok := snap.Product("p1")
	require.True(t, ok)
	assert.Equal(t, "Solgar Vitamin D3 1000 IU 60 kapsula", p.Title)

	ident, ok := snap.Identity("p1")
	require.True(t, ok)
	assert.Equal(t, "vitamin d", ident.CoreName)

	_, ok = snap.Product("nope")
	assert.False(t, ok)

	exact := snap.ExactMatches("vitamin d 1000 iu kapi")
	assert.Equal(t, []string{"p2"}, exact)

	tokens := snap.TokenMatches("vitamin")
	assert.Contains(t, tokens, "p1")
	assert.Contains(t, tokens, "p2")
	assert.NotContains(t, tokens, "p4")
}

func TestShortTokenReachableViaTrigrams(t *testing.T) {
	snap := buildTestSnapshot(t)
	hits := snap.TrigramMatches("d3")
	assert.Contains(t, hits, "p1")
}

func TestScanSubstring(t *testing.T) {
	snap := buildTestSnapshot(t)

	hits, err := snap.ScanSubstring(context.Background(), "pelene", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p4"}, hits)

	hits, err = snap.ScanSubstring(context.Background(), "vitamin", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "limit is honored")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = snap.ScanSubstring(ctx, "vitamin", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestNearestOrdersBySimilarity(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"Solgar Vitamin D 1000 iu": {1, 0, 0},
		"Vitamin D 1000 iu":        {0.9, 0.1, 0},
	}}
	snap := buildTestSnapshot(t, WithEmbedder(emb))
	require.True(t, snap.HasVectors())

	got, err := snap.Nearest(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
	for _, n := range got {
		assert.GreaterOrEqual(t, n.Similarity, 0.0)
		assert.LessOrEqual(t, n.Similarity, 1.0)
	}
}

func TestBuildSurvivesEmbedderFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("model server down")}
	snap := buildTestSnapshot(t, WithEmbedder(emb))
	assert.False(t, snap.HasVectors(), "build degrades to lexical-only")
	assert.Equal(t, 4, snap.Len())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{}}
	snap := buildTestSnapshot(t, WithEmbedder(emb))

	path := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, SaveSnapshot(path, snap))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, snap.Fingerprint(), loaded.Fingerprint())
	assert.Equal(t, snap.Len(), loaded.Len())
	assert.Equal(t, snap.VectorDim(), loaded.VectorDim())

	ident, ok := loaded.Identity("p1")
	require.True(t, ok)
	assert.Equal(t, "vitamin d", ident.CoreName)

	hits := loaded.TrigramMatches("d3")
	assert.Contains(t, hits, "p1")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}
