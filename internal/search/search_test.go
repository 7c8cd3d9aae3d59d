package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft/visionboard/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	index, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func liked(owner, id, name, price string, market domain.Marketplace, project string, at time.Time) *ProductDocument {
	return LikedProductToDocument(&domain.LikedProduct{
		Product: domain.Product{
			ID:          id,
			Name:        name,
			Price:       decimal.RequireFromString(price),
			Marketplace: market,
		},
		OwnerID:   owner,
		ProjectID: project,
		LikedAt:   at,
	})
}

func seedIndex(t *testing.T, index *SearchIndex) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := []*ProductDocument{
		liked("owner-1", "p-1", "Walnut Side Table", "129.00", domain.MarketplaceAmazon, "living", base),
		liked("owner-1", "p-2", "Rattan Accent Chair", "249.99", domain.MarketplaceEtsy, "living", base.Add(time.Minute)),
		liked("owner-1", "p-3", "Linen Table Runner", "35.50", domain.MarketplaceEtsy, "dining", base.Add(2*time.Minute)),
		liked("owner-2", "p-1", "Walnut Side Table", "129.00", domain.MarketplaceAmazon, "office", base),
	}
	require.NoError(t, index.IndexDocuments(docs))
}

func productIDs(res *SearchResult) []string {
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ProductID)
	}
	return ids
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_InMemory(t *testing.T) {
	index, err := NewSearchIndex(Options{})
	require.NoError(t, err)
	defer index.Close()

	require.NoError(t, index.IndexDocument(liked("o", "p", "Lamp", "10", domain.MarketplaceEtsy, "", time.Now())))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestNewSearchIndex_ReopensAndRebuildsOnVersionChange(t *testing.T) {
	dir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexDocument(liked("o", "p", "Lamp", "10", domain.MarketplaceEtsy, "", time.Now())))
	require.NoError(t, index.Close())

	// Same version: documents survive.
	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	require.NoError(t, index.Close())

	// Stale version file: index is recreated empty.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.version"), []byte("0"), 0o644))
	index, err = NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_ScopedToOwner(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	res, err := index.Search(context.Background(), SearchParams{OwnerID: "owner-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, productIDs(res))

	_, err = index.Search(context.Background(), SearchParams{})
	assert.Error(t, err)
}

func TestSearch_DefaultOrderIsMostRecent(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	res, err := index.Search(context.Background(), SearchParams{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3", "p-2", "p-1"}, productIDs(res))
	assert.Equal(t, uint64(3), res.Total)
}

func TestSearch_TextQueryStems(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	res, err := index.Search(context.Background(), SearchParams{OwnerID: "owner-1", Query: "tables"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p-1", "p-3"}, productIDs(res))
}

func TestSearch_Filters(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)
	ctx := context.Background()

	tests := []struct {
		name   string
		params SearchParams
		want   []string
	}{
		{"project", SearchParams{ProjectID: "living"}, []string{"p-1", "p-2"}},
		{"marketplace", SearchParams{Marketplace: "etsy"}, []string{"p-2", "p-3"}},
		{"project and marketplace", SearchParams{ProjectID: "living", Marketplace: "etsy"}, []string{"p-2"}},
		{"text and marketplace", SearchParams{Query: "table", Marketplace: "amazon"}, []string{"p-1"}},
		{"max price", SearchParams{MaxPrice: 130}, []string{"p-1", "p-3"}},
		{"min price", SearchParams{MinPrice: 200}, []string{"p-2"}},
		{"no match", SearchParams{ProjectID: "garage"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.OwnerID = "owner-1"
			res, err := index.Search(ctx, tt.params)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, productIDs(res))
		})
	}
}

func TestSearch_SortByPrice(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	res, err := index.Search(context.Background(), SearchParams{OwnerID: "owner-1", SortBy: "price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3", "p-1", "p-2"}, productIDs(res))
	assert.Equal(t, "Linen Table Runner", res.Hits[0].Name)
	assert.Equal(t, "etsy", res.Hits[0].Marketplace)
}

func TestDeleteDocument(t *testing.T) {
	index := setupTestIndex(t)
	seedIndex(t, index)

	require.NoError(t, index.DeleteDocument(DocumentID("owner-1", "p-1")))

	res, err := index.Search(context.Background(), SearchParams{OwnerID: "owner-1", Query: "walnut"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	// Another owner's like of the same product is untouched.
	res, err = index.Search(context.Background(), SearchParams{OwnerID: "owner-2", Query: "walnut"})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
}

