package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Marketplace identifies where a product was sourced from.
type Marketplace string

// Supported marketplaces.
const (
	MarketplaceAmazon Marketplace = "amazon"
	MarketplaceEtsy   Marketplace = "etsy"
)

// Valid reports whether m is one of the supported marketplaces.
func (m Marketplace) Valid() bool {
	return m == MarketplaceAmazon || m == MarketplaceEtsy
}

// Product is a marketplace listing surfaced by the curation step.
// Boards only reference products by ID; the catalog owns their lifecycle.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Marketplace Marketplace     `json:"marketplace"`
	ImageURL    string          `json:"image_url"`
}

// LikedProduct is a product a user liked while curating a room project.
type LikedProduct struct {
	Product
	OwnerID   string    `json:"owner_id"`
	ProjectID string    `json:"project_id"` // Room project the like originated from
	LikedAt   time.Time `json:"liked_at"`
}

// ProductLookup resolves a product by ID. The bool is false when the product
// no longer resolves.
type ProductLookup func(productID string) (Product, bool)

// LookupFromProducts builds a ProductLookup over a fixed product set.
func LookupFromProducts(products ...Product) ProductLookup {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return func(productID string) (Product, bool) {
		p, ok := byID[productID]
		return p, ok
	}
}
