// Package engine is the facade over the search pipeline: normalize, match,
// group, price-annotate, cache. It owns the active index snapshot and swaps
// it atomically on rebuild, so concurrent searches always run against a
// complete index.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pharmagician/pharma-engine/internal/analytics"
	"github.com/pharmagician/pharma-engine/internal/cache"
	"github.com/pharmagician/pharma-engine/internal/config"
	"github.com/pharmagician/pharma-engine/internal/grouper"
	"github.com/pharmagician/pharma-engine/internal/index"
	"github.com/pharmagician/pharma-engine/internal/matcher"
	"github.com/pharmagician/pharma-engine/internal/meili"
	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/internal/store"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

var (
	// ErrIndexNotReady is returned while no snapshot has been installed
	// yet. Callers usually translate it to a 503.
	ErrIndexNotReady = errors.New("search index not ready")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidMode   = errors.New("invalid search mode")
	ErrNotFound      = errors.New("product not found")
	ErrNoStore       = errors.New("no product store configured")
)

type Engine struct {
	cfg   config.Config
	log   zerolog.Logger
	norm  *normalizer.Normalizer
	match *matcher.Matcher
	group *grouper.Grouper
	build *index.Builder
	cache *cache.ResultCache

	holder   index.Holder
	store    store.ProductStore
	remote   *meili.Client
	embedder index.EmbeddingProvider
}

type Option func(*Engine)

func WithStore(s store.ProductStore) Option {
	return func(e *Engine) { e.store = s }
}

func WithRemote(c *meili.Client) Option {
	return func(e *Engine) { e.remote = c }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithEmbedder enables the semantic tier for both index builds and queries.
func WithEmbedder(emb index.EmbeddingProvider) Option {
	return func(e *Engine) { e.embedder = emb }
}

func New(cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}

	normOpts := []normalizer.Option{}
	if cfg.SynonymsPath != "" {
		syn, err := normalizer.LoadSynonyms(cfg.SynonymsPath)
		if err != nil {
			return nil, err
		}
		normOpts = append(normOpts, normalizer.WithSynonyms(syn))
	}
	e.norm = normalizer.New(normOpts...)

	matchOpts := []matcher.Option{matcher.WithLogger(e.log)}
	buildOpts := []index.BuilderOption{index.WithLogger(e.log)}
	if e.embedder != nil {
		matchOpts = append(matchOpts, matcher.WithEmbedder(e.embedder))
		buildOpts = append(buildOpts, index.WithEmbedder(e.embedder))
	}
	e.match = matcher.New(cfg.Match, e.norm, matchOpts...)
	e.group = grouper.New(cfg.Group)
	e.build = index.NewBuilder(e.norm, buildOpts...)
	e.cache = cache.New(cfg.Cache.TTL, cfg.Cache.Capacity)
	return e, nil
}

// Normalize exposes the title normalizer for tooling and diagnostics.
func (e *Engine) Normalize(title, brand string) types.ProductIdentity {
	return e.norm.Normalize(title, brand)
}

// Snapshot returns the active snapshot, nil before the first install.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.holder.Load()
}

// Install atomically publishes a snapshot and drops cached results built
// against the previous one.
func (e *Engine) Install(snap *index.Snapshot) {
	e.holder.Swap(snap)
	e.cache.Purge()
	e.log.Info().Int("products", snap.Len()).Str("fingerprint", snap.Fingerprint()[:12]).Msg("snapshot installed")
}

// BuildIndexes builds a snapshot from the given catalog and installs it.
// On failure the previous snapshot stays live.
func (e *Engine) BuildIndexes(ctx context.Context, catalog []types.RawProduct) (*index.Snapshot, error) {
	snap, err := e.build.Build(ctx, catalog)
	if err != nil {
		return nil, fmt.Errorf("build indexes: %w", err)
	}
	e.Install(snap)
	return snap, nil
}

// Rebuild reloads the catalog from the store and rebuilds the index.
func (e *Engine) Rebuild(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	catalog, err := e.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	_, err = e.BuildIndexes(ctx, catalog)
	return err
}

// Search runs the full pipeline. Group ordering follows match relevance,
// members are price-sorted, and identical requests inside the cache TTL are
// answered from cache.
func (e *Engine) Search(ctx context.Context, query string, filter types.Filters, limit, offset int, mode types.SearchMode) (types.ResultPage, error) {
	limit, offset, mode, err := e.validate(filter, limit, offset, mode)
	if err != nil {
		return types.ResultPage{}, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return types.ResultPage{Limit: limit, Offset: offset}, nil
	}

	snap := e.holder.Load()
	if snap == nil {
		return types.ResultPage{}, ErrIndexNotReady
	}

	// Keyed on the normalized query so spelling variants of the same
	// canonical query share one entry.
	key := cache.Key(e.norm.NormalizeQuery(query), filter, limit, offset, mode)
	if page, ok := e.cache.Get(key); ok {
		e.log.Debug().Str("query", query).Msg("cache hit")
		return page, nil
	}

	cands, err := e.match.Match(ctx, snap, query, mode)
	if err != nil {
		return types.ResultPage{}, err
	}
	cands = e.mergeRemote(ctx, snap, query, filter, cands)
	cands = filterCandidates(snap, cands, filter)

	groups, err := e.group.Group(ctx, cands, query, func(id string) (grouper.Member, bool) {
		p, ok := snap.Product(id)
		if !ok {
			return grouper.Member{}, false
		}
		ident, ok := snap.Identity(id)
		if !ok {
			return grouper.Member{}, false
		}
		return grouper.Member{Product: p, Identity: ident}, true
	})
	if err != nil {
		return types.ResultPage{}, err
	}

	for i := range groups {
		analytics.Annotate(&groups[i])
	}

	page := paginate(groups, limit, offset)
	e.cache.Put(key, page)
	e.log.Debug().
		Str("query", query).
		Int("candidates", len(cands)).
		Int("groups", page.Total).
		Msg("search served")
	return page, nil
}

// Suggest returns indexed tokens extending the given prefix, most frequent
// first. It backs query autocomplete.
func (e *Engine) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.holder.Load()
	if snap == nil {
		return nil, ErrIndexNotReady
	}
	p := normalizer.Fold(strings.TrimSpace(prefix))
	if p == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	tokens := snap.TokensWithPrefix(p)
	sort.SliceStable(tokens, func(i, j int) bool {
		ci, cj := len(snap.TokenMatches(tokens[i])), len(snap.TokenMatches(tokens[j]))
		if ci != cj {
			return ci > cj
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

// BetterDeals finds the comparison group of a product and returns the group
// plus the strictly cheaper offers in it.
func (e *Engine) BetterDeals(ctx context.Context, productID string) (types.ResultGroup, []analytics.Deal, error) {
	snap := e.holder.Load()
	if snap == nil {
		return types.ResultGroup{}, nil, ErrIndexNotReady
	}
	ident, ok := snap.Identity(productID)
	if !ok {
		return types.ResultGroup{}, nil, ErrNotFound
	}

	seed := ident.NormalizedName
	if seed == "" {
		p, _ := snap.Product(productID)
		seed = p.Title
	}
	page, err := e.Search(ctx, seed, types.Filters{}, e.cfg.Search.MaxLimit, 0, types.ModeAuto)
	if err != nil {
		return types.ResultGroup{}, nil, err
	}
	for _, g := range page.Groups {
		for _, p := range g.Products {
			if p.ID == productID {
				return g, analytics.BetterDeals(g, productID), nil
			}
		}
	}
	return types.ResultGroup{}, nil, ErrNotFound
}

// GroupingStats summarizes how well the catalog normalizes, for operators
// judging grouping quality after a rebuild.
type GroupingStats struct {
	Products      int `json:"products"`
	DistinctKeys  int `json:"distinctKeys"`
	WithBrand     int `json:"withBrand"`
	WithStrength  int `json:"withStrength"`
	MultiOfferKey int `json:"multiOfferKeys"`
}

func (e *Engine) GroupingStats() (GroupingStats, error) {
	snap := e.holder.Load()
	if snap == nil {
		return GroupingStats{}, ErrIndexNotReady
	}
	stats := GroupingStats{Products: snap.Len()}
	keyCounts := make(map[string]int)
	for _, id := range snap.IDs() {
		ident, _ := snap.Identity(id)
		if ident.Brand != "" {
			stats.WithBrand++
		}
		if ident.Strength != nil {
			stats.WithStrength++
		}
		if ident.GroupingKey != "" {
			keyCounts[ident.GroupingKey]++
		}
	}
	stats.DistinctKeys = len(keyCounts)
	for _, c := range keyCounts {
		if c > 1 {
			stats.MultiOfferKey++
		}
	}
	return stats, nil
}

func (e *Engine) validate(filter types.Filters, limit, offset int, mode types.SearchMode) (int, int, types.SearchMode, error) {
	if filter.MinPrice != nil && *filter.MinPrice < 0 {
		return 0, 0, "", fmt.Errorf("%w: negative min price", ErrInvalidFilter)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return 0, 0, "", fmt.Errorf("%w: min price above max price", ErrInvalidFilter)
	}
	if limit <= 0 {
		limit = e.cfg.Search.DefaultLimit
	}
	if limit > e.cfg.Search.MaxLimit {
		limit = e.cfg.Search.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	switch mode {
	case "":
		mode = types.ModeAuto
	case types.ModeAuto, types.ModeExact, types.ModeFuzzy:
	default:
		return 0, 0, "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return limit, offset, mode, nil
}

// mergeRemote widens the candidate set with remote lexical hits. The remote
// tier is best-effort: an unreachable Meilisearch degrades, never fails.
func (e *Engine) mergeRemote(ctx context.Context, snap *index.Snapshot, query string, filter types.Filters, cands []types.Candidate) []types.Candidate {
	if e.remote == nil {
		return cands
	}
	remote, err := e.remote.Search(ctx, query, filter, e.cfg.Search.MaxLimit)
	if err != nil {
		e.log.Warn().Err(err).Msg("remote lexical tier unavailable")
		return cands
	}
	have := make(map[string]int, len(cands))
	for i, c := range cands {
		have[c.ProductID] = i
	}
	for _, rc := range remote {
		if _, ok := snap.Product(rc.ProductID); !ok {
			continue
		}
		if i, ok := have[rc.ProductID]; ok {
			if rc.Score > cands[i].Score {
				cands[i].Score = rc.Score
				cands[i].MatchedVia = rc.MatchedVia
			}
			continue
		}
		cands = append(cands, rc)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].ProductID < cands[j].ProductID
	})
	return cands
}

// filterCandidates drops candidates whose product fails the filters, so
// every member of every returned group satisfies them.
func filterCandidates(snap *index.Snapshot, cands []types.Candidate, filter types.Filters) []types.Candidate {
	if filter.MinPrice == nil && filter.MaxPrice == nil && len(filter.VendorIDs) == 0 && len(filter.BrandIDs) == 0 {
		return cands
	}
	vendors := toSet(filter.VendorIDs)
	brands := toSet(filter.BrandIDs)

	out := cands[:0]
	for _, c := range cands {
		p, ok := snap.Product(c.ProductID)
		if !ok {
			continue
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		if len(vendors) > 0 {
			if _, ok := vendors[p.VendorID]; !ok {
				continue
			}
		}
		if len(brands) > 0 {
			if _, ok := brands[p.BrandID]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func paginate(groups []types.ResultGroup, limit, offset int) types.ResultPage {
	page := types.ResultPage{Total: len(groups), Limit: limit, Offset: offset}
	if offset >= len(groups) {
		return page
	}
	end := offset + limit
	if end > len(groups) {
		end = len(groups)
	}
	page.Groups = groups[offset:end]
	return page
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
