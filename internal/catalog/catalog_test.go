package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/logger"
	"github.com/roomcraft/visionboard/internal/search"
	"github.com/roomcraft/visionboard/internal/store"
	"github.com/roomcraft/visionboard/internal/store/sqlite"
)

func setupCatalog(t *testing.T) *Catalog {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.NewSearchIndex(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return New(db, index, logger.Discard().Logger)
}

func product(id, name, price string, market domain.Marketplace) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		Marketplace: market,
		ImageURL:    "https://img.example.com/" + id,
	}
}

func TestLikeAndList(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	_, err := c.Like(ctx, "owner-1", "living", product("p-1", "Walnut Side Table", "129.00", domain.MarketplaceAmazon))
	require.NoError(t, err)
	_, err = c.Like(ctx, "owner-1", "living", product("p-2", "Rattan Chair", "249.99", domain.MarketplaceEtsy))
	require.NoError(t, err)
	_, err = c.Like(ctx, "owner-1", "dining", product("p-3", "Table Runner", "35.50", domain.MarketplaceEtsy))
	require.NoError(t, err)

	all, err := c.LikedProducts(ctx, "owner-1", Filters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p-3", all[0].ID)

	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"text", Filters{Query: "  TABLE "}, []string{"p-1", "p-3"}},
		{"project", Filters{ProjectID: "living"}, []string{"p-2", "p-1"}},
		{"marketplace", Filters{Marketplace: domain.MarketplaceEtsy}, []string{"p-3", "p-2"}},
		{"combined", Filters{Query: "table", Marketplace: domain.MarketplaceEtsy}, []string{"p-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.LikedProducts(ctx, "owner-1", tt.f)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, lp := range got {
				ids[i] = lp.ID
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	_, err = c.LikedProducts(ctx, "owner-1", Filters{Marketplace: "ebay"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestLike_Validation(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	_, err := c.Like(ctx, "owner-1", "", product("", "Nameless", "1", domain.MarketplaceEtsy))
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = c.Like(ctx, "owner-1", "", product("p-1", "Lamp", "1", "ebay"))
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = c.Like(ctx, "owner-1", "", product("p-1", "Lamp", "-1", domain.MarketplaceEtsy))
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	bad := product("p-1", "Lamp", "1", domain.MarketplaceEtsy)
	bad.ImageURL = "not a url"
	_, err = c.Like(ctx, "owner-1", "", bad)
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, map[string]string{"image_url": "must be a valid URL"}, de.Details)
}

func TestUnlike(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	_, err := c.Like(ctx, "owner-1", "", product("p-1", "Brass Lamp", "80", domain.MarketplaceEtsy))
	require.NoError(t, err)
	require.NoError(t, c.Unlike(ctx, "owner-1", "p-1"))

	got, err := c.LikedProducts(ctx, "owner-1", Filters{Query: "lamp"})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Still resolvable for boards that reference it.
	p, err := c.Resolve(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Brass Lamp", p.Name)

	err = c.Unlike(ctx, "owner-1", "p-1")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestResolve_NotFound(t *testing.T) {
	c := setupCatalog(t)

	_, err := c.Resolve(context.Background(), "nope")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestLookup_FeedsBudget(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	_, err := c.Like(ctx, "owner-1", "", product("p-1", "Sofa", "899.00", domain.MarketplaceAmazon))
	require.NoError(t, err)
	_, err = c.Like(ctx, "owner-1", "", product("p-2", "Pillow", "24.50", domain.MarketplaceEtsy))
	require.NoError(t, err)

	board := domain.NewVisionBoard("owner-1")
	board.Items = []domain.BoardItem{
		{ID: "i-1", ProductID: "p-1"},
		{ID: "i-2", ProductID: "p-2"},
		{ID: "i-3", ProductID: "p-2"},
		{ID: "i-4", ProductID: "gone"},
	}

	budget := board.TotalBudget(c.Lookup(ctx))
	assert.True(t, budget.Total.Equal(decimal.RequireFromString("948.00")), "total %s", budget.Total)
	assert.Equal(t, []string{"i-4"}, budget.Unresolved)
}

func TestReindex(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	_, err := c.Like(ctx, "owner-1", "", product("p-1", "Oak Shelf", "60", domain.MarketplaceEtsy))
	require.NoError(t, err)
	require.NoError(t, c.index.DeleteDocument(search.DocumentID("owner-1", "p-1")))

	n, err := c.Reindex(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := c.LikedProducts(ctx, "owner-1", Filters{Query: "shelf"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// countingStore blocks GetProduct until released so concurrent calls overlap.
type countingStore struct {
	store.CatalogStore
	calls   atomic.Int32
	release chan struct{}
	fail    error
}

func (s *countingStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.calls.Add(1)
	<-s.release
	if s.fail != nil {
		return nil, s.fail
	}
	p := product(id, "Shared", "10", domain.MarketplaceEtsy)
	return &p, nil
}

func TestResolve_CollapsesConcurrentLookups(t *testing.T) {
	cs := &countingStore{release: make(chan struct{})}
	index, err := search.NewSearchIndex(search.Options{})
	require.NoError(t, err)
	defer index.Close()
	c := New(cs, index, logger.Discard().Logger)

	const callers = 10
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	started.Add(callers)
	results := make([]domain.Product, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			results[i], _ = c.Resolve(context.Background(), "p-1")
		}()
	}
	started.Wait()
	// Let the goroutines reach the singleflight group before releasing.
	time.Sleep(20 * time.Millisecond)
	close(cs.release)
	wg.Wait()

	assert.Less(t, cs.calls.Load(), int32(callers))
	for _, p := range results {
		assert.Equal(t, "p-1", p.ID)
	}
}

func TestResolve_StoreFailureIsServiceUnavailable(t *testing.T) {
	cs := &countingStore{release: make(chan struct{}), fail: errors.New("database is locked")}
	close(cs.release)
	c := New(cs, nil, logger.Discard().Logger)

	_, err := c.Resolve(context.Background(), "p-1")
	assert.Equal(t, domainerrors.CodeServiceUnavailable, domainerrors.CodeOf(err))

	// Lookup reports it as unresolved rather than failing.
	_, ok := c.Lookup(context.Background())("p-1")
	assert.False(t, ok)
}
