package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/store"
)

const likedProductColumns = `p.id, p.name, p.price, p.marketplace, p.image_url,
	l.owner_id, l.project_id, l.liked_at`

func scanProduct(scanner interface{ Scan(dest ...any) error }) (*domain.Product, error) {
	var (
		p        domain.Product
		price    string
		imageURL sql.NullString
	)
	if err := scanner.Scan(&p.ID, &p.Name, &price, &p.Marketplace, &imageURL); err != nil {
		return nil, err
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price for %s: %w", p.ID, err)
	}
	p.ImageURL = imageURL.String
	return &p, nil
}

func scanLikedProduct(scanner interface{ Scan(dest ...any) error }) (*domain.LikedProduct, error) {
	var (
		lp        domain.LikedProduct
		price     string
		imageURL  sql.NullString
		projectID sql.NullString
		likedAt   string
	)
	err := scanner.Scan(
		&lp.ID,
		&lp.Name,
		&price,
		&lp.Marketplace,
		&imageURL,
		&lp.OwnerID,
		&projectID,
		&likedAt,
	)
	if err != nil {
		return nil, err
	}

	if lp.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price for %s: %w", lp.ID, err)
	}
	if lp.LikedAt, err = parseTime(likedAt); err != nil {
		return nil, err
	}
	lp.ImageURL = imageURL.String
	lp.ProjectID = projectID.String
	return &lp, nil
}

func upsertProduct(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, p *domain.Product) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO products (id, name, price, marketplace, image_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			marketplace = excluded.marketplace,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`,
		p.ID,
		p.Name,
		p.Price.String(),
		string(p.Marketplace),
		nullString(p.ImageURL),
		formatTime(time.Now()),
	)
	return err
}

// UpsertProduct inserts or refreshes a product snapshot.
func (s *Store) UpsertProduct(ctx context.Context, product *domain.Product) error {
	return upsertProduct(ctx, s.db, product)
}

// GetProduct retrieves a product by ID.
// Returns store.ErrNotFound if the product does not exist.
func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, price, marketplace, image_url FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LikeProduct upserts the product and records the owner's like.
func (s *Store) LikeProduct(ctx context.Context, like *domain.LikedProduct) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertProduct(ctx, tx, &like.Product); err != nil {
		return fmt.Errorf("upsert product %s: %w", like.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO liked_products (owner_id, product_id, project_id, liked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, product_id) DO UPDATE SET
			project_id = excluded.project_id,
			liked_at = excluded.liked_at`,
		like.OwnerID,
		like.ID,
		nullString(like.ProjectID),
		formatTime(like.LikedAt),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// UnlikeProduct removes the owner's like. The product row is kept because
// saved boards may still reference it.
// Returns store.ErrNotFound if the owner had not liked the product.
func (s *Store) UnlikeProduct(ctx context.Context, ownerID, productID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM liked_products WHERE owner_id = ? AND product_id = ?`, ownerID, productID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListLikedProducts returns the owner's liked products, newest first.
func (s *Store) ListLikedProducts(ctx context.Context, ownerID string) ([]*domain.LikedProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+likedProductColumns+`
		FROM liked_products l
		JOIN products p ON p.id = l.product_id
		WHERE l.owner_id = ?
		ORDER BY l.liked_at DESC, p.id`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectLikedProducts(rows)
}

// GetLikedProductsByIDs returns the subset of productIDs the owner has liked,
// in liked_at order. Unknown IDs are skipped.
func (s *Store) GetLikedProductsByIDs(ctx context.Context, ownerID string, productIDs []string) ([]*domain.LikedProduct, error) {
	if len(productIDs) == 0 {
		return []*domain.LikedProduct{}, nil
	}

	args := make([]any, 0, len(productIDs)+1)
	args = append(args, ownerID)
	for _, id := range productIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+likedProductColumns+`
		FROM liked_products l
		JOIN products p ON p.id = l.product_id
		WHERE l.owner_id = ? AND l.product_id IN (`+placeholders(len(productIDs))+`)
		ORDER BY l.liked_at DESC, p.id`, args...)
	if err != nil {
		return nil, err
	}
	return collectLikedProducts(rows)
}

func collectLikedProducts(rows *sql.Rows) ([]*domain.LikedProduct, error) {
	defer rows.Close()

	liked := []*domain.LikedProduct{}
	for rows.Next() {
		lp, err := scanLikedProduct(rows)
		if err != nil {
			return nil, err
		}
		liked = append(liked, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return liked, nil
}
