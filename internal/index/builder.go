package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmagician/pharma-engine/internal/normalizer"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

// Builder assembles snapshots. The embedder is optional; without one the
// snapshot carries no vectors and the matcher skips its semantic tier.
type Builder struct {
	norm     *normalizer.Normalizer
	embedder EmbeddingProvider
	log      zerolog.Logger
}

type BuilderOption func(*Builder)

func WithEmbedder(e EmbeddingProvider) BuilderOption {
	return func(b *Builder) { b.embedder = e }
}

func WithLogger(log zerolog.Logger) BuilderOption {
	return func(b *Builder) { b.log = log }
}

func NewBuilder(norm *normalizer.Normalizer, opts ...BuilderOption) *Builder {
	b := &Builder{norm: norm, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build normalizes every product and assembles a fresh snapshot. Products
// are processed in id order so two builds over the same catalog produce
// byte-identical fingerprints. Duplicate ids keep the last occurrence.
func (b *Builder) Build(ctx context.Context, catalog []types.RawProduct) (*Snapshot, error) {
	start := time.Now()

	products := make(map[string]types.RawProduct, len(catalog))
	for _, p := range catalog {
		if p.ID == "" {
			continue
		}
		products[p.ID] = p
	}
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	identities := make(map[string]types.ProductIdentity, len(products))
	var vectors map[string][]float32
	dim := 0
	embedFailures := 0

	for i, id := range ids {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("index build interrupted: %w", err)
			}
		}
		p := products[id]
		ident := b.norm.Normalize(p.Title, p.BrandName)
		identities[id] = ident

		if b.embedder == nil {
			continue
		}
		vec, err := b.embedder.Embed(ctx, ident.NormalizedName)
		if err != nil {
			embedFailures++
			b.log.Warn().Err(err).Str("product_id", id).Msg("embedding failed, product stays lexical-only")
			continue
		}
		if len(vec) == 0 {
			continue
		}
		if vectors == nil {
			vectors = make(map[string][]float32, len(products))
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding dimension changed mid-build: got %d, want %d", len(vec), dim)
		}
		vectors[id] = vec
	}

	snap := assemble(products, identities, vectors, dim, time.Now())

	b.log.Info().
		Int("products", len(products)).
		Int("embed_failures", embedFailures).
		Bool("vectors", snap.HasVectors()).
		Dur("took", time.Since(start)).
		Msg("index snapshot built")
	return snap, nil
}
