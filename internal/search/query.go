package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a liked-product query. OwnerID is required.
type SearchParams struct {
	OwnerID     string
	Query       string // Free text matched against product names
	ProjectID   string
	Marketplace string

	MinPrice float64
	MaxPrice float64 // 0 means no upper bound

	Limit  int
	Offset int

	SortBy string // "relevance" (default when Query is set), "recent", "price"
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is one matching product.
type SearchHit struct {
	ProductID   string  `json:"product_id"`
	Score       float64 `json:"score"`
	Name        string  `json:"name"`
	Marketplace string  `json:"marketplace"`
}

// Search executes a query scoped to one owner.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.OwnerID == "" {
		return nil, fmt.Errorf("search requires an owner")
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)
	searchRequest.Fields = []string{"product_id", "name", "marketplace"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{Score: hit.Score}
		if id, ok := hit.Fields["product_id"].(string); ok {
			searchHit.ProductID = id
		}
		if n, ok := hit.Fields["name"].(string); ok {
			searchHit.Name = n
		}
		if m, ok := hit.Fields["marketplace"].(string); ok {
			searchHit.Marketplace = m
		}
		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	owner := bleve.NewTermQuery(params.OwnerID)
	owner.SetField("owner_id")
	queries := []query.Query{owner}

	if params.Query != "" {
		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		// Typo tolerance.
		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(params.Query))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, fuzzyQuery}

		// Prefix query for type-ahead (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.ProjectID != "" {
		tq := bleve.NewTermQuery(params.ProjectID)
		tq.SetField("project_id")
		queries = append(queries, tq)
	}

	if params.Marketplace != "" {
		tq := bleve.NewTermQuery(params.Marketplace)
		tq.SetField("marketplace")
		queries = append(queries, tq)
	}

	if params.MinPrice > 0 || params.MaxPrice > 0 {
		minPrice := params.MinPrice
		var maxPrice *float64
		if params.MaxPrice > 0 {
			maxPrice = &params.MaxPrice
		}
		rangeQuery := bleve.NewNumericRangeQuery(&minPrice, maxPrice)
		rangeQuery.SetField("price")
		queries = append(queries, rangeQuery)
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "price":
		req.SortBy([]string{"price", "product_id"})
	case "recent":
		req.SortBy([]string{"-liked_at", "product_id"})
	default:
		if params.Query == "" {
			req.SortBy([]string{"-liked_at", "product_id"})
			return
		}
		req.SortBy([]string{"-_score", "product_id"})
	}
}
