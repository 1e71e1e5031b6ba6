package normalizer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

func TestNormalizeVitaminD(t *testing.T) {
	n := New()
	ident := n.Normalize("Solgar Vitamin D3 1000 IU 60 kapsula", "")

	assert.Equal(t, "Solgar", ident.Brand)
	assert.InDelta(t, 0.9, ident.BrandConfidence, 0.001)
	require.NotNil(t, ident.Strength)
	assert.Equal(t, 1000.0, ident.Strength.Value)
	assert.Equal(t, "iu", ident.Strength.Unit)
	require.NotNil(t, ident.Quantity)
	assert.Equal(t, 60, ident.Quantity.Value)
	assert.Equal(t, "capsule", ident.Quantity.Unit)
	assert.Equal(t, "capsule", ident.Form)
	assert.Equal(t, "vitamins", ident.Category)
	assert.Equal(t, "vitamin d", ident.CoreName)
}

func TestSynonymVariantsShareGroupingKey(t *testing.T) {
	n := New()
	a := n.Normalize("Vitamin D3 1000 IU", "")
	b := n.Normalize("Vitamin D 1000 IU", "")
	c := n.Normalize("Vitamin D3 1200 IU", "")

	require.NotEmpty(t, a.GroupingKey)
	assert.Equal(t, a.GroupingKey, b.GroupingKey)
	assert.Equal(t, a.GroupingKey, c.GroupingKey, "1000 and 1200 IU share a strength band")

	low := n.Normalize("Vitamin D3 400 IU", "")
	assert.NotEqual(t, a.GroupingKey, low.GroupingKey, "400 IU is a different band")
}

func TestDistinctVariantLinesStaySeparate(t *testing.T) {
	n := New()
	newborn := n.Normalize("Pampers Newborn pelene 2-5kg 43 kom", "")
	maxi := n.Normalize("Pampers Maxi pelene 9-14kg 52 kom", "")

	assert.Equal(t, "Pampers", newborn.Brand)
	assert.Equal(t, "Pampers", maxi.Brand)
	assert.Nil(t, newborn.Strength, "kg ranges are pack descriptors, not dosages")
	assert.NotEqual(t, newborn.GroupingKey, maxi.GroupingKey)
	assert.NotEqual(t, newborn.CoreName, maxi.CoreName)
	assert.Contains(t, newborn.Variant, "newborn")
	assert.Contains(t, maxi.Variant, "maxi")
}

func TestKnownBrandOverridesHeuristics(t *testing.T) {
	n := New()
	ident := n.Normalize("Magnezijum 375mg 30 kesica", "Biofar")
	assert.Equal(t, "Biofar", ident.Brand)
	assert.InDelta(t, 0.95, ident.BrandConfidence, 0.001)
	assert.Equal(t, "magnesium", ident.CoreName)
}

func TestAllCapsLeadingWordReadsAsBrand(t *testing.T) {
	n := New()
	ident := n.Normalize("ACME Vitamin C 500mg", "")
	assert.Equal(t, "Acme", ident.Brand)
	assert.InDelta(t, 0.7, ident.BrandConfidence, 0.001)

	noBrand := n.Normalize("Vitamin C 500mg", "")
	assert.Empty(t, noBrand.Brand, "title-cased words are not brands")
}

func TestSerbianUnitSpellings(t *testing.T) {
	n := New()
	tests := []struct {
		title string
		value float64
		unit  string
	}{
		{"Vitamin D3 2000 ij 50 tableta", 2000, "iu"},
		{"Vitamin D3 1000 i.j. kapi", 1000, "iu"},
		{"Magnezijum 300 mg", 300, "mg"},
		{"Protein 2270 gr", 2270, "g"},
		{"Vitamin C 5%", 5, "%"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			ident := n.Normalize(tt.title, "")
			require.NotNil(t, ident.Strength)
			assert.Equal(t, tt.value, ident.Strength.Value)
			assert.Equal(t, tt.unit, ident.Strength.Unit)
		})
	}
}

func TestQuantityNotations(t *testing.T) {
	n := New()
	tests := []struct {
		title string
		value int
	}{
		{"Probiotik a30", 30},
		{"Omega3 kapsule 3x30", 90},
		{"CoQ10 100 kapsula", 100},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			ident := n.Normalize(tt.title, "")
			require.NotNil(t, ident.Quantity)
			assert.Equal(t, tt.value, ident.Quantity.Value)
		})
	}
}

func TestStrengthBucketBands(t *testing.T) {
	tests := []struct {
		name   string
		s      *types.Strength
		bucket string
	}{
		{"nil", nil, ""},
		{"iu low", &types.Strength{Value: 400, Unit: "iu"}, "low-iu"},
		{"iu medium lower edge", &types.Strength{Value: 1000, Unit: "iu"}, "medium-iu"},
		{"iu medium", &types.Strength{Value: 2000, Unit: "iu"}, "medium-iu"},
		{"iu high", &types.Strength{Value: 4000, Unit: "iu"}, "high-iu"},
		{"iu ultra", &types.Strength{Value: 10000, Unit: "iu"}, "ultra-iu"},
		{"mg medium", &types.Strength{Value: 375, Unit: "mg"}, "medium-mg"},
		{"mcg converts to mg", &types.Strength{Value: 500, Unit: "mcg"}, "low-mg"},
		{"g converts to mg", &types.Strength{Value: 2, Unit: "g"}, "ultra-mg"},
		{"ml", &types.Strength{Value: 200, Unit: "ml"}, "medium-ml"},
		{"percent", &types.Strength{Value: 10, Unit: "%"}, "high-pct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bucket, StrengthBucket(tt.s))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New()
	titles := []string{
		"Solgar Vitamin D3 1000 IU 60 kapsula",
		"Magnezijum 375mg direkt kesice",
		"Centrum multivitamin 30 tableta",
	}
	for _, title := range titles {
		first := n.Normalize(title, "")
		second := n.Normalize(first.NormalizedName, "")
		assert.Equal(t, first.GroupingKey, second.GroupingKey, "title %q", title)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := New()
	a := n.Normalize("Solgar Omega-3 700mg 60 softgels", "")
	b := n.Normalize("Solgar Omega-3 700mg 60 softgels", "")
	assert.Equal(t, a, b)
}

func TestEmptyAndGarbageTitles(t *testing.T) {
	n := New()

	empty := n.Normalize("", "")
	assert.Empty(t, empty.CoreName)
	assert.Empty(t, empty.GroupingKey)

	garbage := n.Normalize("!!! ---", "")
	assert.Empty(t, garbage.CoreName)
	assert.Empty(t, garbage.GroupingKey)
	assert.Equal(t, "!!! ---", garbage.NormalizedName, "raw title survives when nothing extracts")
}

func TestDiacriticsFolding(t *testing.T) {
	n := New()
	a := n.Normalize("Šumeće tablete čaj 20 kom", "")
	b := n.Normalize("Sumece tablete caj 20 kom", "")
	assert.Equal(t, a.GroupingKey, b.GroupingKey)
}

func TestCyrillicTransliteration(t *testing.T) {
	n := New()

	cyr := n.Normalize("Витамин Д3 1000 ИЈ", "")
	lat := n.Normalize("Vitamin D3 1000 IJ", "")

	require.NotEmpty(t, cyr.CoreName)
	require.NotEmpty(t, cyr.GroupingKey)
	assert.Equal(t, lat.GroupingKey, cyr.GroupingKey)
	assert.Equal(t, lat.CoreName, cyr.CoreName)
	require.NotNil(t, cyr.Strength)
	assert.Equal(t, "iu", cyr.Strength.Unit)

	assert.Contains(t, cyr.SearchTokens, "vitamin", "Cyrillic titles index under Latin tokens")

	assert.Equal(t, "vitamin d", n.NormalizeQuery("Витамин Д3"))
}

func TestNormalizeQueryAppliesSynonyms(t *testing.T) {
	n := New()
	assert.Equal(t, "vitamin d", n.NormalizeQuery("  Vitamin D3 "))
	assert.Equal(t, "omega3", n.NormalizeQuery("omega 3"))
	assert.Equal(t, "d3", n.NormalizeQuery("D3"), "bare d3 stays literal")
}

func TestLoadSynonymsOverride(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/syn.yaml"
	err := os.WriteFile(path, []byte("core:\n  - canonical: testcanon\n    variants: [\"testvar\"]\n"), 0o644)
	require.NoError(t, err)

	syn, err := LoadSynonyms(path)
	require.NoError(t, err)

	n := New(WithSynonyms(syn))
	assert.Equal(t, "testcanon", n.NormalizeQuery("testvar"))

	_, err = LoadSynonyms(dir + "/missing.yaml")
	assert.Error(t, err)
}

func TestDefaultSynonymsParse(t *testing.T) {
	assert.NotPanics(t, func() { DefaultSynonyms() })
}
