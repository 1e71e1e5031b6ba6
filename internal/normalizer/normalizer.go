// Package normalizer turns raw vendor product titles into structured
// identities: brand, strength, quantity, form, category and a cleaned core
// name. The grouping key derived here is what lets the same product from
// different vendors land in one comparison group.
package normalizer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

type Normalizer struct {
	brands       map[string]string
	brandRes     map[string]*regexp.Regexp
	brandKeys    []string
	units        map[string]string
	forms        map[string]string
	countUnits   map[string]string
	categories   []categoryRule
	stopWords    map[string]struct{}
	noiseWords   map[string]struct{}
	variantWords map[string]struct{}
	syn          *Synonyms

	rangeRe     *regexp.Regexp
	strengthRe  *regexp.Regexp
	percentRe   *regexp.Regexp
	quantityRe  *regexp.Regexp
	packARe     *regexp.Regexp
	bundleRe    *regexp.Regexp
	multRe      *regexp.Regexp
	numTokenRe  *regexp.Regexp
	nonAlnumRe  *regexp.Regexp
	multiSpace  *regexp.Regexp
}

type Option func(*Normalizer)

// WithSynonyms replaces the embedded synonym table, typically with one
// loaded from an operator-supplied YAML file.
func WithSynonyms(s *Synonyms) Option {
	return func(n *Normalizer) {
		if s != nil {
			n.syn = s
		}
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		brands:       buildBrandMap(),
		units:        buildUnitMap(),
		forms:        buildFormMap(),
		countUnits:   buildCountUnits(),
		categories:   buildCategoryRules(),
		stopWords:    buildStopWords(),
		noiseWords:   buildNoiseWords(),
		variantWords: buildVariantWords(),
		syn:          DefaultSynonyms(),

		// Numeric ranges like "2-5kg" are pack descriptors, not dosages.
		rangeRe:    regexp.MustCompile(`\d+(?:[.,]\d+)?\s*-\s*\d+(?:[.,]\d+)?`),
		strengthRe: regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(i\.j\.|mcg|µg|μg|mg|kg|gr|iu|ie|ij|ml|dl|g|l)\b`),
		percentRe:  regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`),
		quantityRe: regexp.MustCompile(`(\d+)\s*(kom|pcs|pc|pieces|tableta|tablete|tablets|tabl|tbl|kapsula|kapsule|capsules|caps|gummies|softgels|softgel|kesica|kesice|sachets|sachet|ampula|ampule|servings|serving)\b`),
		packARe:    regexp.MustCompile(`\ba(\d+)\b`),
		bundleRe:   regexp.MustCompile(`\b(\d+)\s*x\s*(\d+)\b`),
		multRe:     regexp.MustCompile(`\b(\d+)\s*x\b|\bx\s*(\d+)\b`),
		numTokenRe: regexp.MustCompile(`^\d+(?:[.,]\d+)?[a-z%]*$`),
		nonAlnumRe: regexp.MustCompile(`[^a-z0-9]+`),
		multiSpace: regexp.MustCompile(`\s+`),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.brandRes = make(map[string]*regexp.Regexp, len(n.brands))
	n.brandKeys = make([]string, 0, len(n.brands))
	for key := range n.brands {
		n.brandRes[key] = regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`)
		n.brandKeys = append(n.brandKeys, key)
	}
	// Deterministic scan order: longest key first, then lexicographic.
	sort.Slice(n.brandKeys, func(i, j int) bool {
		if len(n.brandKeys[i]) != len(n.brandKeys[j]) {
			return len(n.brandKeys[i]) > len(n.brandKeys[j])
		}
		return n.brandKeys[i] < n.brandKeys[j]
	})
	return n
}

type span struct{ start, end int }

// Normalize extracts a structured identity from a raw title. knownBrand, when
// the catalog carries an explicit brand link, overrides title heuristics.
// The result is deterministic: equal inputs always produce equal identities.
func (n *Normalizer) Normalize(title, knownBrand string) types.ProductIdentity {
	orig := strings.TrimSpace(title)
	folded := foldDiacritics(strings.ToLower(orig))

	masked := n.maskedRanges(folded)
	strength, strengthSpans := n.extractStrength(folded, masked)
	quantity, quantitySpans := n.extractQuantity(folded, strengthSpans)

	brand, brandConf, brandSpans := n.extractBrand(orig, folded, knownBrand)
	form := n.extractForm(folded)

	cut := append(append(strengthSpans, quantitySpans...), brandSpans...)
	core, variant := n.extractCore(folded, cut)
	category := n.extractCategory(folded, core)

	normalizedName := composeName(brand, core, strength)
	if normalizedName == "" {
		// Nothing extractable; the raw title is still the best name we have.
		normalizedName = orig
	}

	ident := types.ProductIdentity{
		Brand:           brand,
		BrandConfidence: brandConf,
		Strength:        strength,
		Quantity:        quantity,
		Form:            form,
		Category:        category,
		CoreName:        core,
		Variant:         variant,
		NormalizedName:  normalizedName,
	}
	ident.SearchTokens = n.searchTokens(folded, core, brand)
	ident.GroupingKey = groupingKey(core, brand, StrengthBucket(strength), category)
	return ident
}

// NormalizeQuery is the light-weight variant used on user queries: lowercase,
// diacritics folding, whitespace collapse, synonym canonicalization. No
// attribute extraction happens so short queries stay intact.
func (n *Normalizer) NormalizeQuery(query string) string {
	q := foldDiacritics(strings.ToLower(strings.TrimSpace(query)))
	q = n.multiSpace.ReplaceAllString(q, " ")
	return n.syn.Apply(q)
}

func (n *Normalizer) maskedRanges(folded string) []span {
	var spans []span
	for _, m := range n.rangeRe.FindAllStringIndex(folded, -1) {
		spans = append(spans, span{m[0], m[1]})
	}
	return spans
}

func inSpans(pos int, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}

func (n *Normalizer) extractStrength(folded string, masked []span) (*types.Strength, []span) {
	var result *types.Strength
	var spans []span

	consider := func(matchStart, matchEnd, numStart int, value, unit string) {
		if inSpans(numStart, masked) {
			return
		}
		// A digit glued to a preceding letter belongs to a name like "b12".
		if numStart > 0 && isLetter(folded[numStart-1]) {
			return
		}
		spans = append(spans, span{matchStart, matchEnd})
		if result != nil {
			return
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
		if err != nil || v <= 0 {
			return
		}
		canonical, ok := n.units[unit]
		if !ok {
			return
		}
		result = &types.Strength{Value: v, Unit: canonical}
	}

	for _, m := range n.strengthRe.FindAllStringSubmatchIndex(folded, -1) {
		consider(m[0], m[1], m[2], folded[m[2]:m[3]], folded[m[4]:m[5]])
	}
	for _, m := range n.percentRe.FindAllStringSubmatchIndex(folded, -1) {
		consider(m[0], m[1], m[2], folded[m[2]:m[3]], "%")
	}
	return result, spans
}

func (n *Normalizer) extractQuantity(folded string, taken []span) (*types.Quantity, []span) {
	var result *types.Quantity
	var spans []span

	record := func(matchStart, matchEnd int, value, unit string) {
		if inSpans(matchStart, taken) {
			return
		}
		spans = append(spans, span{matchStart, matchEnd})
		if result != nil {
			return
		}
		v, err := strconv.Atoi(value)
		if err != nil || v <= 0 {
			return
		}
		result = &types.Quantity{Value: v, Unit: unit}
	}

	for _, m := range n.quantityRe.FindAllStringSubmatchIndex(folded, -1) {
		record(m[0], m[1], folded[m[2]:m[3]], n.countUnits[folded[m[4]:m[5]]])
	}
	// Serbian pack notation: "a30" means a pack of 30.
	for _, m := range n.packARe.FindAllStringSubmatchIndex(folded, -1) {
		record(m[0], m[1], folded[m[2]:m[3]], "pcs")
	}
	// "3x30" bundles: three packs of thirty.
	for _, m := range n.bundleRe.FindAllStringSubmatchIndex(folded, -1) {
		if inSpans(m[0], taken) {
			continue
		}
		spans = append(spans, span{m[0], m[1]})
		if result != nil {
			continue
		}
		a, errA := strconv.Atoi(folded[m[2]:m[3]])
		b, errB := strconv.Atoi(folded[m[4]:m[5]])
		if errA == nil && errB == nil && a > 0 && b > 0 {
			result = &types.Quantity{Value: a * b, Unit: "pcs"}
		}
	}
	for _, m := range n.multRe.FindAllStringSubmatchIndex(folded, -1) {
		g := 2
		if m[2] < 0 {
			g = 4
		}
		record(m[0], m[1], folded[m[g]:m[g+1]], "pcs")
	}
	return result, spans
}

func (n *Normalizer) extractBrand(orig, folded, knownBrand string) (string, float64, []span) {
	if kb := strings.TrimSpace(knownBrand); kb != "" {
		key := foldDiacritics(strings.ToLower(kb))
		display := kb
		if std, ok := n.brands[key]; ok {
			display = std
		}
		re, ok := n.brandRes[key]
		if !ok {
			re = regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`)
		}
		var spans []span
		for _, m := range re.FindAllStringIndex(folded, -1) {
			spans = append(spans, span{m[0], m[1]})
		}
		return display, 0.95, spans
	}

	bestPos := -1
	bestKey := ""
	for _, key := range n.brandKeys {
		loc := n.brandRes[key].FindStringIndex(folded)
		if loc == nil {
			continue
		}
		if bestPos == -1 || loc[0] < bestPos {
			bestPos = loc[0]
			bestKey = key
		}
	}
	if bestKey != "" {
		var spans []span
		for _, m := range n.brandRes[bestKey].FindAllStringIndex(folded, -1) {
			spans = append(spans, span{m[0], m[1]})
		}
		return n.brands[bestKey], 0.9, spans
	}

	// Heuristic of last resort: a leading all-caps word reads as a brand.
	for _, w := range strings.Fields(orig) {
		if len(w) < 3 || !isAllUpper(w) {
			continue
		}
		lw := strings.ToLower(w)
		if _, ok := n.units[lw]; ok {
			continue
		}
		if _, ok := n.forms[lw]; ok {
			continue
		}
		var spans []span
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(lw) + `\b`)
		for _, m := range re.FindAllStringIndex(folded, -1) {
			spans = append(spans, span{m[0], m[1]})
		}
		return titleCase(lw), 0.7, spans
	}
	return "", 0, nil
}

func (n *Normalizer) extractForm(folded string) string {
	for _, tok := range strings.Fields(n.nonAlnumRe.ReplaceAllString(folded, " ")) {
		if form, ok := n.forms[tok]; ok {
			return form
		}
	}
	return ""
}

func (n *Normalizer) extractCategory(folded, core string) string {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(n.nonAlnumRe.ReplaceAllString(folded, " ")) {
		tokens[t] = struct{}{}
	}
	for _, t := range strings.Fields(core) {
		tokens[t] = struct{}{}
	}
	for _, rule := range n.categories {
		for _, kw := range rule.keywords {
			if _, ok := tokens[kw]; ok {
				return rule.name
			}
		}
	}
	return ""
}

func (n *Normalizer) extractCore(folded string, cut []span) (core, variant string) {
	// Blank out extracted attribute spans, then clean what remains.
	b := []byte(folded)
	for _, s := range cut {
		for i := s.start; i < s.end && i < len(b); i++ {
			b[i] = ' '
		}
	}
	cleaned := n.nonAlnumRe.ReplaceAllString(string(b), " ")
	cleaned = n.multiSpace.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	cleaned = n.syn.Apply(cleaned)

	var kept []string
	var variants []string
	for _, tok := range strings.Fields(cleaned) {
		if _, ok := n.stopWords[tok]; ok {
			continue
		}
		if _, ok := n.noiseWords[tok]; ok {
			continue
		}
		if _, ok := n.forms[tok]; ok {
			continue
		}
		if _, ok := n.countUnits[tok]; ok {
			continue
		}
		if _, ok := n.units[tok]; ok {
			continue
		}
		if n.numTokenRe.MatchString(tok) {
			continue
		}
		if _, ok := n.variantWords[tok]; ok {
			variants = append(variants, tok)
		}
		kept = append(kept, tok)
		if len(kept) == 8 {
			break
		}
	}
	return strings.Join(kept, " "), strings.Join(variants, " ")
}

func (n *Normalizer) searchTokens(folded, core, brand string) []string {
	set := make(map[string]struct{})
	add := func(s string) {
		for _, t := range strings.Fields(n.nonAlnumRe.ReplaceAllString(s, " ")) {
			if len(t) >= 2 {
				set[t] = struct{}{}
			}
		}
	}
	add(folded)
	add(core)
	add(foldDiacritics(strings.ToLower(brand)))

	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

func composeName(brand, core string, strength *types.Strength) string {
	var parts []string
	if brand != "" {
		parts = append(parts, brand)
	}
	if core != "" {
		parts = append(parts, titleCase(core))
	}
	if strength != nil {
		parts = append(parts, FormatStrength(strength))
	}
	return strings.Join(parts, " ")
}

func groupingKey(core, brand, bucket, category string) string {
	if core == "" && brand == "" && bucket == "" && category == "" {
		return ""
	}
	return strings.Join([]string{
		core,
		foldDiacritics(strings.ToLower(brand)),
		bucket,
		category,
	}, "|")
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
