// Package grouper clusters matched candidates into comparable-product
// groups. Clustering is greedy single-pass in match-rank order: the best
// unassigned candidate seeds a group and absorbs every later candidate that
// survives the merge gates. Hard gates (brand, category) veto outright;
// the strength band acts as a soft penalty on the name similarity bar.
package grouper

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/pharmagician/pharma-engine/internal/similarity"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

type Config struct {
	// CoreThreshold is the similarity bar for multi-word queries;
	// CoreThresholdStrict applies when the query is a single word, where a
	// loose bar would glue unrelated product lines together.
	CoreThreshold       float64
	CoreThresholdStrict float64
	// BucketPenalty is added to the bar when the two products sit in
	// different strength bands.
	BucketPenalty float64
	// MaxGroups bounds how many groups one query produces.
	MaxGroups int
}

func DefaultConfig() Config {
	return Config{
		CoreThreshold:       0.72,
		CoreThresholdStrict: 0.85,
		BucketPenalty:       0.10,
		MaxGroups:           200,
	}
}

// Member is a candidate resolved to its product and identity. The engine
// supplies the resolver so the grouper never touches the index directly.
type Member struct {
	Product  types.RawProduct
	Identity types.ProductIdentity
}

type Resolver func(productID string) (Member, bool)

type Grouper struct {
	cfg Config
}

func New(cfg Config) *Grouper {
	return &Grouper{cfg: cfg}
}

type pending struct {
	candidate types.Candidate
	rank      int
	member    Member
}

// Group clusters candidates in rank order. Output order follows the rank of
// each group's first member, so the most relevant group comes first and the
// ordering is deterministic for identical input.
func (g *Grouper) Group(ctx context.Context, candidates []types.Candidate, query string, resolve Resolver) ([]types.ResultGroup, error) {
	items := make([]pending, 0, len(candidates))
	for rank, c := range candidates {
		m, ok := resolve(c.ProductID)
		if !ok {
			continue
		}
		items = append(items, pending{candidate: c, rank: rank, member: m})
	}

	strict := len(strings.Fields(strings.TrimSpace(query))) <= 1
	bar := g.cfg.CoreThreshold
	if strict {
		bar = g.cfg.CoreThresholdStrict
	}

	assigned := make([]bool, len(items))
	var groups []types.ResultGroup

	for i := range items {
		if assigned[i] {
			continue
		}
		if i%128 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		assigned[i] = true
		seed := items[i]
		cluster := []pending{seed}

		// Products that share the full grouping key are the same product
		// by construction; no similarity check needed.
		seedKey := seed.member.Identity.GroupingKey
		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			if seedKey != "" && items[j].member.Identity.GroupingKey == seedKey {
				assigned[j] = true
				cluster = append(cluster, items[j])
				continue
			}
			if g.mergeable(seed.member.Identity, items[j].member.Identity, bar) {
				assigned[j] = true
				cluster = append(cluster, items[j])
			}
		}

		groups = append(groups, buildGroup(seed, cluster))
		if len(groups) == g.cfg.MaxGroups {
			break
		}
	}
	return groups, nil
}

// mergeable decides whether two identities describe the same purchasable
// product.
func (g *Grouper) mergeable(a, b types.ProductIdentity, bar float64) bool {
	// Hard gate: conflicting brands never merge, whatever the name says.
	if a.Brand != "" && b.Brand != "" && !strings.EqualFold(a.Brand, b.Brand) {
		return false
	}
	// Hard gate: category conflicts separate e.g. a vitamin from a cream.
	if a.Category != "" && b.Category != "" && a.Category != b.Category {
		return false
	}
	// Hard gate: designator tokens ("d", "c", "b12", "q10") carry the whole
	// distinction between products whose names are otherwise one edit
	// apart. They must match exactly, never approximately.
	if !sameDesignators(coreOf(a), coreOf(b)) {
		return false
	}

	// Different strength bands may still be the same product line, but the
	// names have to agree more convincingly.
	bucketA := bucketOf(a)
	bucketB := bucketOf(b)
	if bucketA != "" && bucketB != "" && bucketA != bucketB {
		bar += g.cfg.BucketPenalty
	}

	return coreSimilarity(a, b) >= bar
}

func bucketOf(ident types.ProductIdentity) string {
	if ident.GroupingKey == "" {
		return ""
	}
	parts := strings.Split(ident.GroupingKey, "|")
	if len(parts) != 4 {
		return ""
	}
	return parts[2]
}

// coreSimilarity is the max of the plain and token-sort ratios over core
// names. Token-set and partial ratios are deliberately absent here: both
// score token subsets as perfect matches, which would glue "hyaluronic acid"
// to "hyaluronic acid maska" and "newborn pelene" to "maxi pelene".
func coreSimilarity(a, b types.ProductIdentity) float64 {
	ca, cb := coreOf(a), coreOf(b)
	if ca == "" || cb == "" {
		return 0
	}
	best := similarity.Ratio(ca, cb)
	if r := similarity.TokenSortRatio(ca, cb); r > best {
		best = r
	}
	return best
}

// sameDesignators compares the short (three runes or fewer) and
// digit-bearing tokens of two core names as sets.
func sameDesignators(a, b string) bool {
	da := designators(a)
	db := designators(b)
	if len(da) != len(db) {
		return false
	}
	for t := range da {
		if _, ok := db[t]; !ok {
			return false
		}
	}
	return true
}

func designators(core string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(core) {
		if len([]rune(tok)) <= 3 || strings.ContainsAny(tok, "0123456789") {
			out[tok] = struct{}{}
		}
	}
	return out
}

func coreOf(ident types.ProductIdentity) string {
	if ident.CoreName != "" {
		return ident.CoreName
	}
	return strings.ToLower(ident.NormalizedName)
}

func buildGroup(seed pending, cluster []pending) types.ResultGroup {
	products := make([]types.GroupProduct, 0, len(cluster))
	vendors := make(map[string]struct{})
	for _, item := range cluster {
		p := item.member.Product
		products = append(products, types.GroupProduct{
			ID:         p.ID,
			Title:      p.Title,
			Price:      p.Price,
			VendorID:   p.VendorID,
			VendorName: p.VendorName,
			BrandName:  brandOf(item),
		})
		if p.VendorID != "" {
			vendors[p.VendorID] = struct{}{}
		}
	}
	// Cheapest offer first; ties break on id to stay deterministic.
	sort.Slice(products, func(i, j int) bool {
		if products[i].Price != products[j].Price {
			return products[i].Price < products[j].Price
		}
		return products[i].ID < products[j].ID
	})

	displayName := seed.member.Identity.NormalizedName
	if displayName == "" {
		displayName = seed.member.Product.Title
	}

	return types.ResultGroup{
		ID:            groupID(seed.member.Identity, seed.member.Product.ID),
		DisplayName:   displayName,
		Products:      products,
		ProductCount:  len(products),
		VendorCount:   len(vendors),
		RelevanceRank: seed.rank,
	}
}

func brandOf(item pending) string {
	if item.member.Product.BrandName != "" {
		return item.member.Product.BrandName
	}
	return item.member.Identity.Brand
}

// groupID hashes the seed's grouping key so the same cluster gets the same
// id across rebuilds. Ungroupable products fall back to their own id.
func groupID(ident types.ProductIdentity, productID string) string {
	key := ident.GroupingKey
	if key == "" {
		key = "solo|" + productID
	}
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
