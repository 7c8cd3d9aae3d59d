// Package search provides full-text search over each owner's liked products
// using Bleve, with exact filters on project and marketplace.
package search

import (
	"github.com/roomcraft/visionboard/internal/domain"
)

// ProductDocument is the Bleve document for one owner's like of one product.
// The same product liked by two owners is indexed twice.
type ProductDocument struct {
	ID          string  `json:"id"` // DocumentID(owner, product)
	OwnerID     string  `json:"owner_id"`
	ProductID   string  `json:"product_id"`
	ProjectID   string  `json:"project_id,omitempty"`
	Marketplace string  `json:"marketplace"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`    // Approximate; used for range filters only
	LikedAt     int64   `json:"liked_at"` // Unix millis
}

// DocumentID returns the index key for an owner's like.
func DocumentID(ownerID, productID string) string {
	return ownerID + "/" + productID
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
func (d *ProductDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":          d.ID,
		"owner_id":    d.OwnerID,
		"product_id":  d.ProductID,
		"marketplace": d.Marketplace,
		"name":        d.Name,
		"price":       d.Price,
		"liked_at":    d.LikedAt,
	}
	if d.ProjectID != "" {
		m["project_id"] = d.ProjectID
	}
	return m
}

// LikedProductToDocument converts a domain LikedProduct to a ProductDocument.
func LikedProductToDocument(lp *domain.LikedProduct) *ProductDocument {
	price, _ := lp.Price.Float64()
	return &ProductDocument{
		ID:          DocumentID(lp.OwnerID, lp.ID),
		OwnerID:     lp.OwnerID,
		ProductID:   lp.ID,
		ProjectID:   lp.ProjectID,
		Marketplace: string(lp.Marketplace),
		Name:        lp.Name,
		Price:       price,
		LikedAt:     lp.LikedAt.UnixMilli(),
	}
}
