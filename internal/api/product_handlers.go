package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/roomcraft/visionboard/internal/catalog"
	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
)

func (s *Server) registerProductRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLikedProducts",
		Method:      http.MethodGet,
		Path:        "/api/v1/products",
		Summary:     "List liked products",
		Description: "Lists the products the owner liked, optionally filtered by text, project or marketplace",
		Tags:        []string{"Products"},
		Security:    bearerAuth,
	}, s.handleListLikedProducts)

	huma.Register(s.api, huma.Operation{
		OperationID:   "likeProduct",
		Method:        http.MethodPost,
		Path:          "/api/v1/likes",
		Summary:       "Like product",
		Description:   "Records a liked product so it can be placed on boards",
		Tags:          []string{"Products"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerAuth,
	}, s.handleLikeProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "unlikeProduct",
		Method:      http.MethodDelete,
		Path:        "/api/v1/likes/{productId}",
		Summary:     "Unlike product",
		Description: "Removes a like. Boards that already use the product keep it",
		Tags:        []string{"Products"},
		Security:    bearerAuth,
	}, s.handleUnlikeProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexLikedProducts",
		Method:      http.MethodPost,
		Path:        "/api/v1/products/reindex",
		Summary:     "Reindex liked products",
		Description: "Rebuilds the owner's product search entries from stored likes",
		Tags:        []string{"Products"},
		Security:    bearerAuth,
	}, s.handleReindexLikedProducts)
}

// === DTOs ===

// ProductResponse is a catalog product. Prices are decimal strings.
type ProductResponse struct {
	ID          string `json:"id" doc:"Product ID"`
	Name        string `json:"name" doc:"Display name"`
	Price       string `json:"price" doc:"Price as a decimal string"`
	Marketplace string `json:"marketplace" doc:"Source marketplace"`
	ImageURL    string `json:"image_url,omitempty" doc:"Product image"`
}

// LikedProductResponse is a product the owner liked.
type LikedProductResponse struct {
	ProductResponse
	ProjectID string    `json:"project_id,omitempty" doc:"Room project the like came from"`
	LikedAt   time.Time `json:"liked_at" doc:"When the product was liked"`
}

// ListLikedProductsInput contains filters for listing liked products.
type ListLikedProductsInput struct {
	Query       string `query:"q" doc:"Free text search over name and marketplace"`
	ProjectID   string `query:"project_id" doc:"Only likes from this project"`
	Marketplace string `query:"marketplace" doc:"amazon or etsy"`
	Limit       int    `query:"limit" minimum:"0" maximum:"200" doc:"Maximum results when filtering"`
}

// ListLikedProductsResponse contains liked products.
type ListLikedProductsResponse struct {
	Products []LikedProductResponse `json:"products" doc:"Liked products"`
}

// ListLikedProductsOutput wraps the list response for huma.
type ListLikedProductsOutput struct {
	Body ListLikedProductsResponse
}

// LikeProductRequest is the request body for liking a product.
type LikeProductRequest struct {
	ProductID   string `json:"product_id" minLength:"1" doc:"Product ID"`
	Name        string `json:"name" minLength:"1" doc:"Display name"`
	Price       string `json:"price" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Price as a decimal string"`
	Marketplace string `json:"marketplace" enum:"amazon,etsy" doc:"Source marketplace"`
	ImageURL    string `json:"image_url,omitempty" required:"false" doc:"Product image"`
	ProjectID   string `json:"project_id,omitempty" required:"false" doc:"Room project the like came from"`
}

// LikeProductInput wraps the like request for huma.
type LikeProductInput struct {
	Body LikeProductRequest
}

// LikedProductOutput wraps a liked product for huma.
type LikedProductOutput struct {
	Body LikedProductResponse
}

// UnlikeProductInput contains parameters for unliking a product.
type UnlikeProductInput struct {
	ProductID string `path:"productId" doc:"Product ID"`
}

// ReindexResponse reports how many liked products were reindexed.
type ReindexResponse struct {
	Indexed int `json:"indexed" doc:"Number of liked products indexed"`
}

// ReindexOutput wraps the reindex response for huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleListLikedProducts(ctx context.Context, input *ListLikedProductsInput) (*ListLikedProductsOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	liked, err := s.services.Catalog.LikedProducts(ctx, ownerID, catalog.Filters{
		Query:       input.Query,
		ProjectID:   input.ProjectID,
		Marketplace: domain.Marketplace(input.Marketplace),
		Limit:       input.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &ListLikedProductsOutput{Body: ListLikedProductsResponse{
		Products: MapSlice(liked, mapLikedProduct),
	}}, nil
}

func (s *Server) handleLikeProduct(ctx context.Context, input *LikeProductInput) (*LikedProductOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(input.Body.Price)
	if err != nil {
		return nil, domainerrors.Validationf("invalid price %q", input.Body.Price)
	}

	like, err := s.services.Catalog.Like(ctx, ownerID, input.Body.ProjectID, domain.Product{
		ID:          input.Body.ProductID,
		Name:        input.Body.Name,
		Price:       price,
		Marketplace: domain.Marketplace(input.Body.Marketplace),
		ImageURL:    input.Body.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	return &LikedProductOutput{Body: mapLikedProduct(*like)}, nil
}

func (s *Server) handleUnlikeProduct(ctx context.Context, input *UnlikeProductInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Catalog.Unlike(ctx, ownerID, input.ProductID); err != nil {
		return nil, err
	}
	return message("Product unliked"), nil
}

func (s *Server) handleReindexLikedProducts(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	n, err := s.services.Catalog.Reindex(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("liked products reindexed", "owner_id", ownerID, "indexed", n)
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}

// === Mappers ===

func mapProduct(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price.StringFixed(2),
		Marketplace: string(p.Marketplace),
		ImageURL:    p.ImageURL,
	}
}

func mapLikedProduct(lp domain.LikedProduct) LikedProductResponse {
	return LikedProductResponse{
		ProductResponse: mapProduct(lp.Product),
		ProjectID:       lp.ProjectID,
		LikedAt:         lp.LikedAt,
	}
}
