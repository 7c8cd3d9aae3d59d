// Package catalog owns the liked-product catalog that boards draw from:
// ingesting likes from the curation step, searching them, and resolving
// product IDs for budget totals and share snapshots.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/normalize"
	"github.com/roomcraft/visionboard/internal/search"
	"github.com/roomcraft/visionboard/internal/store"
	"github.com/roomcraft/visionboard/internal/validation"
)

// Filters narrows a liked-product listing. All fields are optional.
type Filters struct {
	Query       string
	ProjectID   string
	Marketplace domain.Marketplace
	Limit       int
}

func (f Filters) empty() bool {
	return f.Query == "" && f.ProjectID == "" && f.Marketplace == ""
}

// Catalog is the product catalog cache.
type Catalog struct {
	store  store.CatalogStore
	index  *search.SearchIndex
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time

	validator *validation.Validator
}

// New creates a catalog over the given store and search index.
func New(s store.CatalogStore, index *search.SearchIndex, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:  s,
		index:  index,
		logger: logger,
		now:    time.Now,

		validator: validation.New(),
	}
}

// likeRequest is the validated shape of an incoming like.
type likeRequest struct {
	ProductID   string `json:"product_id" validate:"required,max=128"`
	Name        string `json:"name" validate:"required,max=300"`
	Marketplace string `json:"marketplace" validate:"required,marketplace"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// LikedProducts lists the owner's liked products. Without filters the store
// listing is returned, newest like first; with filters the search index
// picks and orders the results.
func (c *Catalog) LikedProducts(ctx context.Context, ownerID string, f Filters) ([]domain.LikedProduct, error) {
	if f.Marketplace != "" && !f.Marketplace.Valid() {
		return nil, domainerrors.Validationf("unknown marketplace %q", f.Marketplace)
	}
	f.Query = normalize.SearchText(f.Query)

	if f.empty() {
		liked, err := c.store.ListLikedProducts(ctx, ownerID)
		if err != nil {
			return nil, domainerrors.ServiceUnavailable("catalog", err)
		}
		return deref(liked), nil
	}

	res, err := c.index.Search(ctx, search.SearchParams{
		OwnerID:     ownerID,
		Query:       f.Query,
		ProjectID:   f.ProjectID,
		Marketplace: string(f.Marketplace),
		Limit:       f.Limit,
	})
	if err != nil {
		return nil, domainerrors.ServiceUnavailable("catalog search", err)
	}
	if len(res.Hits) == 0 {
		return []domain.LikedProduct{}, nil
	}

	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ProductID
	}

	liked, err := c.store.GetLikedProductsByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, domainerrors.ServiceUnavailable("catalog", err)
	}

	byID := make(map[string]*domain.LikedProduct, len(liked))
	for _, lp := range liked {
		byID[lp.ID] = lp
	}
	out := make([]domain.LikedProduct, 0, len(ids))
	for _, id := range ids {
		// A hit without a row is an index entry that outlived an unlike.
		if lp, ok := byID[id]; ok {
			out = append(out, *lp)
		}
	}
	return out, nil
}

// Resolve returns the product snapshot for an ID. Concurrent lookups for the
// same ID share one store read.
func (c *Catalog) Resolve(ctx context.Context, productID string) (domain.Product, error) {
	v, err, _ := c.group.Do(productID, func() (any, error) {
		return c.store.GetProduct(ctx, productID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, domainerrors.NotFoundf("product %s not found", productID)
		}
		return domain.Product{}, domainerrors.ServiceUnavailable("catalog", err)
	}
	return *v.(*domain.Product), nil
}

// Lookup adapts Resolve to domain.ProductLookup for budget totals. Each
// product is resolved at most once per returned lookup; failures of any
// kind mark the product unresolved. The returned lookup is not safe for
// concurrent use.
func (c *Catalog) Lookup(ctx context.Context) domain.ProductLookup {
	type entry struct {
		p  domain.Product
		ok bool
	}
	seen := make(map[string]entry)

	return func(productID string) (domain.Product, bool) {
		if e, hit := seen[productID]; hit {
			return e.p, e.ok
		}
		p, err := c.Resolve(ctx, productID)
		if err != nil && domainerrors.CodeOf(err) != domainerrors.CodeNotFound {
			c.logger.Warn("product lookup failed", "product_id", productID, "error", err)
		}
		seen[productID] = entry{p: p, ok: err == nil}
		return p, err == nil
	}
}

// Like records that the owner liked a product while curating a project.
func (c *Catalog) Like(ctx context.Context, ownerID, projectID string, product domain.Product) (*domain.LikedProduct, error) {
	err := c.validator.Validate(likeRequest{
		ProductID:   product.ID,
		Name:        product.Name,
		Marketplace: string(product.Marketplace),
		ImageURL:    product.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	if product.Price.IsNegative() {
		return nil, domainerrors.Validation("price must not be negative")
	}

	like := &domain.LikedProduct{
		Product:   product,
		OwnerID:   ownerID,
		ProjectID: projectID,
		LikedAt:   c.now().UTC(),
	}
	if err := c.store.LikeProduct(ctx, like); err != nil {
		return nil, domainerrors.ServiceUnavailable("catalog", err)
	}

	// The row is the source of truth; a stale index only affects search.
	if err := c.index.IndexDocument(search.LikedProductToDocument(like)); err != nil {
		c.logger.Warn("failed to index liked product", "product_id", product.ID, "owner_id", ownerID, "error", err)
	}

	c.logger.Info("product liked", "product_id", product.ID, "owner_id", ownerID, "project_id", projectID)
	return like, nil
}

// Unlike removes a like. Boards that already reference the product keep
// resolving it.
func (c *Catalog) Unlike(ctx context.Context, ownerID, productID string) error {
	if err := c.store.UnlikeProduct(ctx, ownerID, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFoundf("product %s is not liked", productID)
		}
		return domainerrors.ServiceUnavailable("catalog", err)
	}

	if err := c.index.DeleteDocument(search.DocumentID(ownerID, productID)); err != nil {
		c.logger.Warn("failed to remove liked product from index", "product_id", productID, "owner_id", ownerID, "error", err)
	}
	return nil
}

// Reindex rebuilds the owner's slice of the search index from the store.
func (c *Catalog) Reindex(ctx context.Context, ownerID string) (int, error) {
	liked, err := c.store.ListLikedProducts(ctx, ownerID)
	if err != nil {
		return 0, domainerrors.ServiceUnavailable("catalog", err)
	}

	docs := make([]*search.ProductDocument, len(liked))
	for i, lp := range liked {
		docs[i] = search.LikedProductToDocument(lp)
	}
	if err := c.index.IndexDocuments(docs); err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "reindex liked products")
	}
	return len(docs), nil
}

func deref(liked []*domain.LikedProduct) []domain.LikedProduct {
	out := make([]domain.LikedProduct, len(liked))
	for i, lp := range liked {
		out[i] = *lp
	}
	return out
}
