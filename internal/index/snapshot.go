// Package index builds and serves immutable search snapshots. A snapshot
// holds every product with its normalized identity plus the lexical and
// vector structures the matcher probes. Snapshots are replaced wholesale
// via an atomic pointer swap, so searches never observe a half-built index.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

// Snapshot is immutable after assembly. All lookup methods are safe for
// concurrent use.
type Snapshot struct {
	products   map[string]types.RawProduct
	identities map[string]types.ProductIdentity
	searchText map[string]string
	ids        []string

	exact     map[string][]string
	tokens    map[string][]string
	tokenKeys []string
	trigrams  map[string][]string

	vectors map[string][]float32
	dim     int

	fingerprint string
	builtAt     time.Time
}

// Holder publishes the active snapshot. Swap is atomic; a failed rebuild
// simply never calls it and readers keep the previous snapshot.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

func (h *Holder) Load() *Snapshot    { return h.p.Load() }
func (h *Holder) Swap(s *Snapshot)   { h.p.Store(s) }

func (s *Snapshot) Len() int              { return len(s.ids) }
func (s *Snapshot) IDs() []string         { return s.ids }
func (s *Snapshot) Fingerprint() string   { return s.fingerprint }
func (s *Snapshot) BuiltAt() time.Time    { return s.builtAt }
func (s *Snapshot) HasVectors() bool      { return len(s.vectors) > 0 }
func (s *Snapshot) VectorDim() int        { return s.dim }

func (s *Snapshot) Product(id string) (types.RawProduct, bool) {
	p, ok := s.products[id]
	return p, ok
}

func (s *Snapshot) Identity(id string) (types.ProductIdentity, bool) {
	ident, ok := s.identities[id]
	return ident, ok
}

// ExactMatches returns ids whose folded title or normalized name equals key.
func (s *Snapshot) ExactMatches(key string) []string {
	return s.exact[key]
}

func (s *Snapshot) TokenMatches(token string) []string {
	return s.tokens[token]
}

func (s *Snapshot) TrigramMatches(gram string) []string {
	return s.trigrams[gram]
}

// TokensWithPrefix returns the indexed tokens starting with prefix, in
// lexicographic order.
func (s *Snapshot) TokensWithPrefix(prefix string) []string {
	if prefix == "" {
		return nil
	}
	start := sort.SearchStrings(s.tokenKeys, prefix)
	var out []string
	for i := start; i < len(s.tokenKeys); i++ {
		if !strings.HasPrefix(s.tokenKeys[i], prefix) {
			break
		}
		out = append(out, s.tokenKeys[i])
	}
	return out
}

// SearchText is the folded haystack (title plus normalized name) used for
// substring and fuzzy comparison.
func (s *Snapshot) SearchText(id string) string {
	return s.searchText[id]
}

// ScanSubstring walks products in id order and collects those whose search
// text contains needle. The walk honors ctx so a cancelled request does not
// burn through a large catalog.
func (s *Snapshot) ScanSubstring(ctx context.Context, needle string, limit int) ([]string, error) {
	if needle == "" || limit <= 0 {
		return nil, nil
	}
	var out []string
	for i, id := range s.ids {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if strings.Contains(s.searchText[id], needle) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Trigrams slices each token of s into 3-rune grams. Tokens shorter than
// three runes become a single gram, which is what lets a "d3" query reach
// titles containing the token "d3".
func Trigrams(s string) []string {
	seen := make(map[string]struct{})
	var grams []string
	for _, tok := range strings.Fields(s) {
		runes := []rune(tok)
		if len(runes) < 3 {
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				grams = append(grams, tok)
			}
			continue
		}
		for i := 0; i+3 <= len(runes); i++ {
			g := string(runes[i : i+3])
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				grams = append(grams, g)
			}
		}
	}
	return grams
}

// assemble builds the posting structures from already-normalized content.
// Builder and the snapshot loader both funnel through here so an index
// restored from disk behaves identically to a fresh build.
func assemble(
	products map[string]types.RawProduct,
	identities map[string]types.ProductIdentity,
	vectors map[string][]float32,
	dim int,
	builtAt time.Time,
) *Snapshot {
	s := &Snapshot{
		products:   products,
		identities: identities,
		searchText: make(map[string]string, len(products)),
		exact:      make(map[string][]string),
		tokens:     make(map[string][]string),
		trigrams:   make(map[string][]string),
		vectors:    vectors,
		dim:        dim,
		builtAt:    builtAt,
	}

	s.ids = make([]string, 0, len(products))
	for id := range products {
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)

	for _, id := range s.ids {
		p := s.products[id]
		ident := s.identities[id]

		foldedTitle := normalizer.Fold(p.Title)
		foldedName := normalizer.Fold(ident.NormalizedName)
		s.searchText[id] = strings.TrimSpace(foldedTitle + " " + foldedName)

		addPosting(s.exact, foldedTitle, id)
		if foldedName != "" && foldedName != foldedTitle {
			addPosting(s.exact, foldedName, id)
		}
		for _, tok := range ident.SearchTokens {
			addPosting(s.tokens, tok, id)
		}
		for _, g := range Trigrams(s.searchText[id]) {
			addPosting(s.trigrams, g, id)
		}
	}

	s.tokenKeys = make([]string, 0, len(s.tokens))
	for tok := range s.tokens {
		s.tokenKeys = append(s.tokenKeys, tok)
	}
	sort.Strings(s.tokenKeys)

	h := sha256.New()
	for _, id := range s.ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	s.fingerprint = hex.EncodeToString(h.Sum(nil))
	return s
}

func addPosting(m map[string][]string, key, id string) {
	if key == "" {
		return
	}
	list := m[key]
	if n := len(list); n > 0 && list[n-1] == id {
		return
	}
	m[key] = append(list, id)
}
