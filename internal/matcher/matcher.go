// Package matcher retrieves scored candidates for a query by layering three
// tiers over an index snapshot: literal lexical matching, edit-distance
// fuzzy matching and optional embedding similarity. Later tiers only widen
// the pool; a candidate always keeps the score of its strongest tier.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"

	"github.com/pharmagician/pharma-engine/internal/index"
	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/internal/similarity"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

// Lexical score bands, most literal first. Fuzzy and semantic scores are
// scaled below the exact band so a literal hit always outranks a guess.
const (
	scoreExact       = 1.0
	scoreWordBound   = 0.95
	scorePrefix      = 0.9
	scoreToken       = 0.85
	scoreTokenPrefix = 0.8
	scoreSubstring   = 0.7
	scoreFallback    = 0.3
	scoreSubsequence = 0.25

	fuzzyScale    = 0.9
	semanticScale = 0.85
)

// Band is the threshold/pool pair applied to one query-length class.
// Short queries get permissive thresholds and a wide pool because two
// characters carry almost no lexical signal.
type Band struct {
	Threshold     float64
	Pool          int
	SemanticFloor float64
}

type Config struct {
	ShortBand  Band // single character
	MediumBand Band // two or three characters
	LongBand   Band // everything else
	// FuzzyPoolCap bounds how many candidates the fuzzy tier will score.
	FuzzyPoolCap int
	// ExactTrust: once this many near-exact hits exist, fuzzy and semantic
	// candidates below the prefix band are dropped and the pool shrinks to
	// TrustedPool.
	ExactTrust  int
	TrustedPool int
	// SemanticK is how many nearest neighbors the semantic tier requests.
	SemanticK int
}

func DefaultConfig() Config {
	return Config{
		ShortBand:    Band{Threshold: 0.3, Pool: 1000, SemanticFloor: 0.4},
		MediumBand:   Band{Threshold: 0.5, Pool: 800, SemanticFloor: 0.3},
		LongBand:     Band{Threshold: 0.7, Pool: 500, SemanticFloor: 0.25},
		FuzzyPoolCap: 2000,
		ExactTrust:   5,
		TrustedPool:  200,
		SemanticK:    100,
	}
}

type Matcher struct {
	cfg      Config
	norm     *normalizer.Normalizer
	embedder index.EmbeddingProvider
	log      zerolog.Logger
}

type Option func(*Matcher)

func WithEmbedder(e index.EmbeddingProvider) Option {
	return func(m *Matcher) { m.embedder = e }
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *Matcher) { m.log = log }
}

func New(cfg Config, norm *normalizer.Normalizer, opts ...Option) *Matcher {
	m := &Matcher{cfg: cfg, norm: norm, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type scored struct {
	score  float64
	method string
}

// Match returns candidates sorted by descending score, product id breaking
// ties so equal inputs always produce the identical ordering.
func (m *Matcher) Match(ctx context.Context, snap *index.Snapshot, query string, mode types.SearchMode) ([]types.Candidate, error) {
	q := m.norm.NormalizeQuery(query)
	if q == "" {
		return nil, nil
	}
	rawQ := normalizer.Fold(query)
	band := m.band(q)

	scores := make(map[string]scored)
	add := func(id string, score float64, method string) {
		if prev, ok := scores[id]; ok && prev.score >= score {
			return
		}
		scores[id] = scored{score: score, method: method}
	}

	if err := m.lexical(ctx, snap, q, rawQ, band, add); err != nil {
		return nil, err
	}

	if mode != types.ModeExact {
		if err := m.fuzzy(ctx, snap, q, band, scores, add); err != nil {
			return nil, err
		}
	}
	if mode == types.ModeAuto && m.embedder != nil && snap.HasVectors() {
		if err := m.semantic(ctx, snap, q, band, add); err != nil {
			// A dead embedding backend degrades the search, it does not
			// fail it.
			m.log.Warn().Err(err).Str("query", q).Msg("semantic tier unavailable")
		}
	}

	if len(scores) == 0 && mode != types.ModeExact {
		if err := m.relaxed(ctx, snap, q, band, add); err != nil {
			return nil, err
		}
		// Fallback hits score below every band by construction; the
		// threshold has already done its job by leaving scores empty.
		band.Threshold = 0
	}

	return m.rank(scores, band), nil
}

func (m *Matcher) band(q string) Band {
	switch n := len([]rune(q)); {
	case n < 2:
		return m.cfg.ShortBand
	case n < 4:
		return m.cfg.MediumBand
	default:
		return m.cfg.LongBand
	}
}

func (m *Matcher) lexical(ctx context.Context, snap *index.Snapshot, q, rawQ string, band Band, add func(string, float64, string)) error {
	for _, key := range uniqueStrings(q, rawQ) {
		for _, id := range snap.ExactMatches(key) {
			add(id, scoreExact, types.MatchExact)
		}
	}

	// One substring walk serves the exact, word-boundary, prefix and plain
	// substring bands; each hit is classified by how literally it contains
	// the query.
	hits, err := snap.ScanSubstring(ctx, q, band.Pool)
	if err != nil {
		return err
	}
	for _, id := range hits {
		text := snap.SearchText(id)
		switch {
		case text == q:
			add(id, scoreExact, types.MatchExact)
		case strings.HasPrefix(text, q+" "):
			add(id, scorePrefix, types.MatchPrefix)
		case strings.Contains(text, " "+q+" ") || strings.HasSuffix(text, " "+q):
			add(id, scoreWordBound, types.MatchExact)
		default:
			add(id, scoreSubstring, types.MatchToken)
		}
	}

	qTokens := strings.Fields(q)
	if len(qTokens) > 0 {
		counts := make(map[string]int)
		for _, tok := range qTokens {
			for _, id := range snap.TokenMatches(tok) {
				counts[id]++
			}
		}
		for id, c := range counts {
			add(id, scoreToken*float64(c)/float64(len(qTokens)), types.MatchToken)
		}

		// Token-prefix band: "magnez" should reach "magnezijum" titles.
		last := qTokens[len(qTokens)-1]
		if len(last) >= 2 {
			for _, tok := range snap.TokensWithPrefix(last) {
				if tok == last {
					continue
				}
				for _, id := range snap.TokenMatches(tok) {
					add(id, scoreTokenPrefix, types.MatchPrefix)
				}
			}
		}
	}

	// Trigram band for short queries, where substring and token matching
	// have little to bite on.
	if len([]rune(q)) < 4 {
		if err := m.trigramTier(ctx, snap, q, add); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) trigramTier(ctx context.Context, snap *index.Snapshot, q string, add func(string, float64, string)) error {
	grams := index.Trigrams(q)
	if len(grams) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, g := range grams {
		for _, id := range snap.TrigramMatches(g) {
			counts[id]++
		}
	}
	for id, c := range counts {
		sim := float64(c) / float64(len(grams))
		if sim < 0.34 {
			continue
		}
		add(id, 0.4+0.3*sim, types.MatchToken)
	}
	return nil
}

func (m *Matcher) fuzzy(ctx context.Context, snap *index.Snapshot, q string, band Band, scores map[string]scored, add func(string, float64, string)) error {
	pool := m.fuzzyPool(snap, q, scores)
	for i, id := range pool {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ident, ok := snap.Identity(id)
		if !ok {
			continue
		}
		target := normalizer.Fold(ident.NormalizedName)
		if target == "" {
			target = snap.SearchText(id)
		}
		r := similarity.Best(q, target)
		if r*fuzzyScale < band.Threshold {
			continue
		}
		add(id, r*fuzzyScale, types.MatchFuzzy)
	}
	return nil
}

// fuzzyPool widens the lexical hit set with every product sharing a token
// or trigram with the query, capped and in sorted id order.
func (m *Matcher) fuzzyPool(snap *index.Snapshot, q string, scores map[string]scored) []string {
	seen := make(map[string]struct{}, len(scores))
	for id := range scores {
		seen[id] = struct{}{}
	}
	for _, tok := range strings.Fields(q) {
		for _, id := range snap.TokenMatches(tok) {
			seen[id] = struct{}{}
		}
	}
	for _, g := range index.Trigrams(q) {
		for _, id := range snap.TrigramMatches(g) {
			seen[id] = struct{}{}
		}
	}
	pool := make([]string, 0, len(seen))
	for id := range seen {
		pool = append(pool, id)
	}
	sort.Strings(pool)
	if len(pool) > m.cfg.FuzzyPoolCap {
		pool = pool[:m.cfg.FuzzyPoolCap]
	}
	return pool
}

func (m *Matcher) semantic(ctx context.Context, snap *index.Snapshot, q string, band Band, add func(string, float64, string)) error {
	vec, err := m.embedder.Embed(ctx, q)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	neighbors, err := snap.Nearest(ctx, vec, m.cfg.SemanticK)
	if err != nil {
		return err
	}
	for _, n := range neighbors {
		if n.Similarity < band.SemanticFloor {
			continue
		}
		add(n.ID, n.Similarity*semanticScale, types.MatchSemantic)
	}
	return nil
}

// relaxed is the empty-result fallback: any substring hit, then token
// subsequence matching, both at give-away scores. Returning weak candidates
// beats returning nothing.
func (m *Matcher) relaxed(ctx context.Context, snap *index.Snapshot, q string, band Band, add func(string, float64, string)) error {
	hits, err := snap.ScanSubstring(ctx, q, band.Pool)
	if err != nil {
		return err
	}
	for _, id := range hits {
		add(id, scoreFallback, types.MatchFuzzy)
	}
	if len(hits) > 0 {
		return nil
	}
	for i, id := range snap.IDs() {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if fuzzy.MatchNormalizedFold(q, snap.SearchText(id)) {
			add(id, scoreSubsequence, types.MatchFuzzy)
		}
	}
	return nil
}

func (m *Matcher) rank(scores map[string]scored, band Band) []types.Candidate {
	strong := 0
	for _, s := range scores {
		if s.score >= scoreWordBound {
			strong++
		}
	}
	pool := band.Pool
	trusted := strong >= m.cfg.ExactTrust
	if trusted && m.cfg.TrustedPool < pool {
		pool = m.cfg.TrustedPool
	}

	out := make([]types.Candidate, 0, len(scores))
	for id, s := range scores {
		if s.score < band.Threshold {
			continue
		}
		// Plenty of literal hits: inexact tiers only add noise.
		if trusted && (s.method == types.MatchFuzzy || s.method == types.MatchSemantic) && s.score < scorePrefix {
			continue
		}
		out = append(out, types.Candidate{ProductID: id, Score: s.score, MatchedVia: s.method})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > pool {
		out = out[:pool]
	}
	return out
}

func uniqueStrings(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
