// Package types holds the data shapes shared between the normalizer,
// matcher, grouper and the search engine facade.
package types

// RawProduct is a single vendor offer as it arrives from the catalog.
// VendorName and BrandName are denormalized display fields filled by the
// store layer; matching never depends on them.
type RawProduct struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	VendorID    string  `json:"vendorId"`
	BrandID     string  `json:"brandId,omitempty"`
	Description string  `json:"description,omitempty"`
	VendorName  string  `json:"vendorName,omitempty"`
	BrandName   string  `json:"brandName,omitempty"`
}

// Strength is a dosage amount in its normalized unit (mg, mcg, g, ml, l, iu, %).
type Strength struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Quantity is a pack size: number of countable units (tablets, capsules,
// sachets) or a multiplier like "3x" on bundled packs.
type Quantity struct {
	Value int    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// ProductIdentity is the structured result of normalizing a raw title.
// Optional attributes are pointers or empty strings; absence is meaningful
// and never guessed.
type ProductIdentity struct {
	Brand           string    `json:"brand,omitempty"`
	BrandConfidence float64   `json:"brandConfidence,omitempty"`
	Strength        *Strength `json:"strength,omitempty"`
	Quantity        *Quantity `json:"quantity,omitempty"`
	Form            string    `json:"form,omitempty"`
	Category        string    `json:"category,omitempty"`
	CoreName        string    `json:"coreName"`
	Variant         string    `json:"variant,omitempty"`
	NormalizedName  string    `json:"normalizedName"`
	SearchTokens    []string  `json:"searchTokens,omitempty"`
	GroupingKey     string    `json:"groupingKey"`
}

// Match methods, ordered from most to least literal. When tiers disagree a
// candidate keeps the method of its highest-scoring hit.
const (
	MatchExact    = "exact"
	MatchPrefix   = "prefix"
	MatchToken    = "token"
	MatchFuzzy    = "fuzzy"
	MatchSemantic = "semantic"
)

// Candidate is a scored retrieval hit before grouping.
type Candidate struct {
	ProductID  string  `json:"productId"`
	Score      float64 `json:"score"`
	MatchedVia string  `json:"matchedVia"`
}

// SearchMode selects which matcher tiers run.
type SearchMode string

const (
	ModeAuto  SearchMode = "auto"
	ModeExact SearchMode = "exact"
	ModeFuzzy SearchMode = "fuzzy"
)

// Filters narrow results before grouping so that every returned member
// satisfies them.
type Filters struct {
	MinPrice  *float64 `json:"minPrice,omitempty"`
	MaxPrice  *float64 `json:"maxPrice,omitempty"`
	VendorIDs []string `json:"vendorIds,omitempty"`
	BrandIDs  []string `json:"brandIds,omitempty"`
}

// PriceAnalysis annotates a single offer relative to its group.
type PriceAnalysis struct {
	DiffFromAvg float64 `json:"diffFromAvg"`
	Percentile  float64 `json:"percentile"`
	IsBestDeal  bool    `json:"isBestDeal"`
	IsWorstDeal bool    `json:"isWorstDeal"`
}

// GroupProduct is one offer inside a result group, price analysis attached.
type GroupProduct struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Price      float64       `json:"price"`
	VendorID   string        `json:"vendorId"`
	VendorName string        `json:"vendorName,omitempty"`
	BrandName  string        `json:"brandName,omitempty"`
	Analysis   PriceAnalysis `json:"analysis"`
}

// PriceStats summarizes the price spread of a group.
type PriceStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	StdDev float64 `json:"stdDev"`
	Range  float64 `json:"range"`
}

// PriceInsight carries the shopper-facing takeaways for a group.
type PriceInsight struct {
	SavingsPotential   float64 `json:"savingsPotential"`
	PriceVariation     float64 `json:"priceVariation"`
	BelowAvgCount      int     `json:"belowAvgCount"`
	AboveAvgCount      int     `json:"aboveAvgCount"`
	HasMultipleVendors bool    `json:"hasMultipleVendors"`
}

// ResultGroup is one comparable-products cluster in a search response.
// Products are sorted by ascending price; RelevanceRank is the match rank of
// the earliest member, which also fixes group ordering.
type ResultGroup struct {
	ID            string         `json:"id"`
	DisplayName   string         `json:"displayName"`
	Products      []GroupProduct `json:"products"`
	PriceStats    PriceStats     `json:"priceStats"`
	Insight       PriceInsight   `json:"insight"`
	ProductCount  int            `json:"productCount"`
	VendorCount   int            `json:"vendorCount"`
	RelevanceRank int            `json:"relevanceRank"`
}

// ResultPage is a paginated slice of groups. Total counts all groups the
// query produced, not just the page.
type ResultPage struct {
	Groups []ResultGroup `json:"groups"`
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
}
