// Package meili publishes index snapshots to a Meilisearch instance and
// queries it as a remote lexical tier. The engine treats this backend as
// optional: without a configured URL everything runs on the in-process
// index.
package meili

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"

	"github.com/pharmagician/pharma-engine/internal/index"
	"github.com/pharmagician/pharma-engine/pkg/types"
)

const publishBatch = 1000

type Client struct {
	client    meilisearch.ServiceManager
	indexName string
	log       zerolog.Logger
}

func New(baseURL, apiKey, indexName string, log zerolog.Logger) *Client {
	return &Client{
		client:    meilisearch.New(baseURL, meilisearch.WithAPIKey(apiKey)),
		indexName: indexName,
		log:       log,
	}
}

// Publish recreates the remote index from a snapshot. The index is dropped
// first so stale documents from removed products cannot linger.
func (c *Client) Publish(ctx context.Context, snap *index.Snapshot) error {
	_, _ = c.client.DeleteIndex(c.indexName)
	if _, err := c.client.CreateIndex(&meilisearch.IndexConfig{Uid: c.indexName, PrimaryKey: "id"}); err != nil {
		return fmt.Errorf("create index %s: %w", c.indexName, err)
	}

	idx := c.client.Index(c.indexName)
	settings := meilisearch.Settings{
		SearchableAttributes: []string{"title", "normalizedName", "coreName", "brand", "vendorName"},
		FilterableAttributes: []string{"vendorId", "vendorName", "brand", "price", "category", "form"},
		SortableAttributes:   []string{"price", "title"},
	}
	if _, err := idx.UpdateSettings(&settings); err != nil {
		c.log.Warn().Err(err).Msg("meilisearch settings update failed, continuing with defaults")
	}

	docs := make([]map[string]interface{}, 0, publishBatch)
	flush := func() error {
		if len(docs) == 0 {
			return nil
		}
		if _, err := idx.AddDocuments(docs, nil); err != nil {
			return fmt.Errorf("add documents: %w", err)
		}
		docs = docs[:0]
		return nil
	}

	published := 0
	for _, id := range snap.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, _ := snap.Product(id)
		ident, _ := snap.Identity(id)
		docs = append(docs, map[string]interface{}{
			// Meilisearch ids allow [a-zA-Z0-9_-] only.
			"id":             "product_" + sanitizeID(id),
			"productId":      id,
			"title":          p.Title,
			"normalizedName": ident.NormalizedName,
			"coreName":       ident.CoreName,
			"brand":          ident.Brand,
			"category":       ident.Category,
			"form":           ident.Form,
			"vendorId":       p.VendorID,
			"vendorName":     p.VendorName,
			"price":          int(p.Price * 100),
		})
		published++
		if len(docs) == publishBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	c.log.Info().Int("documents", published).Str("index", c.indexName).Msg("snapshot published to meilisearch")
	return nil
}

// Search queries the remote index and returns rank-scored candidates. The
// scores sit below the local exact band so remote hits widen the pool
// without overruling literal local matches.
func (c *Client) Search(ctx context.Context, query string, filter types.Filters, limit int) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := &meilisearch.SearchRequest{Limit: int64(limit)}
	if f := buildFilter(filter); f != "" {
		req.Filter = f
	}

	res, err := c.client.Index(c.indexName).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("meilisearch query: %w", err)
	}

	var hits []struct {
		ProductID string `json:"productId"`
	}
	raw, err := json.Marshal(res.Hits)
	if err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}

	cands := make([]types.Candidate, 0, len(hits))
	for rank, h := range hits {
		if h.ProductID == "" {
			continue
		}
		score := 0.9 - float64(rank)*0.005
		if score < 0.3 {
			score = 0.3
		}
		cands = append(cands, types.Candidate{ProductID: h.ProductID, Score: score, MatchedVia: types.MatchToken})
	}
	return cands, nil
}

func buildFilter(f types.Filters) string {
	var parts []string
	if f.MinPrice != nil {
		parts = append(parts, "price >= "+strconv.Itoa(int(*f.MinPrice*100)))
	}
	if f.MaxPrice != nil {
		parts = append(parts, "price <= "+strconv.Itoa(int(*f.MaxPrice*100)))
	}
	if or := orClause("vendorId", f.VendorIDs); or != "" {
		parts = append(parts, or)
	}
	if or := orClause("brand", f.BrandIDs); or != "" {
		parts = append(parts, or)
	}
	return strings.Join(parts, " AND ")
}

func orClause(field string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	row := make([]string, 0, len(values))
	for _, v := range values {
		row = append(row, field+` = "`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
	}
	return "(" + strings.Join(row, " OR ") + ")"
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
