// Package store abstracts where the product catalog comes from. The engine
// only needs a full listing for index builds plus point lookups; both the
// Postgres-backed production store and the in-memory test store satisfy it.
package store

import (
	"context"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

type ProductStore interface {
	// ListAll returns the full catalog with vendor and brand names resolved.
	ListAll(ctx context.Context) ([]types.RawProduct, error)
	// GetByID returns a single product; the bool reports existence.
	GetByID(ctx context.Context, id string) (types.RawProduct, bool, error)
}
