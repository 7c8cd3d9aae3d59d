// Package store defines the persistence interfaces for the vision board
// service. Boards and the product catalog live in SQLite (store/sqlite);
// published share links live in Badger (store/kv).
package store

import (
	"context"
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
)

// BoardStore persists saved vision boards and their items.
type BoardStore interface {
	// CreateBoard inserts a new board. When maxSaved is non-negative the
	// insert only succeeds while the owner has fewer than maxSaved boards,
	// otherwise ErrQuotaExceeded is returned. A duplicate (owner, draft key)
	// returns ErrAlreadyExists.
	CreateBoard(ctx context.Context, board *domain.VisionBoard, maxSaved int) error
	GetBoard(ctx context.Context, id string) (*domain.VisionBoard, error)
	GetBoardByDraftKey(ctx context.Context, ownerID, draftKey string) (*domain.VisionBoard, error)
	// UpdateBoard replaces the board row and its items.
	UpdateBoard(ctx context.Context, board *domain.VisionBoard) error
	RenameBoard(ctx context.Context, id, name string, updatedAt time.Time) error
	DeleteBoard(ctx context.Context, id string) error
	ListBoards(ctx context.Context, ownerID string) ([]domain.BoardSummary, error)
	CountBoards(ctx context.Context, ownerID string) (int, error)
}

// CatalogStore persists products and the likes that surface them to boards.
type CatalogStore interface {
	UpsertProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// LikeProduct upserts the product and records the like. Liking the same
	// product twice refreshes the like.
	LikeProduct(ctx context.Context, like *domain.LikedProduct) error
	UnlikeProduct(ctx context.Context, ownerID, productID string) error
	ListLikedProducts(ctx context.Context, ownerID string) ([]*domain.LikedProduct, error)
	GetLikedProductsByIDs(ctx context.Context, ownerID string, productIDs []string) ([]*domain.LikedProduct, error)
}

// ShareStore persists published share links.
type ShareStore interface {
	CreateShare(ctx context.Context, link *domain.ShareLink) error
	GetShare(ctx context.Context, token string) (*domain.ShareLink, error)
	DeleteShare(ctx context.Context, token string) error
	ListSharesByOwner(ctx context.Context, ownerID string) ([]*domain.ShareLink, error)
	ListSharesByBoard(ctx context.Context, boardID string) ([]*domain.ShareLink, error)
}
