package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/store"
)

// boardColumns is the ordered list of columns selected in board queries.
// Must match the scan order in scanBoard.
const boardColumns = `id, created_at, updated_at, saved_at, owner_id, name, draft_key`

// scanBoard scans a sql.Row (or sql.Rows via its Scan method) into a domain.VisionBoard.
func scanBoard(scanner interface{ Scan(dest ...any) error }) (*domain.VisionBoard, error) {
	var b domain.VisionBoard

	var (
		createdAt string
		updatedAt string
		savedAt   sql.NullString
		draftKey  sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&savedAt,
		&b.OwnerID,
		&b.Name,
		&draftKey,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	b.SavedAt, err = parseNullableTime(savedAt)
	if err != nil {
		return nil, err
	}
	if draftKey.Valid {
		b.DraftKey = draftKey.String
	}
	b.Items = []domain.BoardItem{}

	return &b, nil
}

// loadBoardItems loads a board's items in their stored order.
func (s *Store) loadBoardItems(ctx context.Context, boardID string) ([]domain.BoardItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, product_id, x, y, width, height, z_index
		FROM board_items WHERE board_id = ? ORDER BY sort_order`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.BoardItem{}
	for rows.Next() {
		var item domain.BoardItem
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Position.X,
			&item.Position.Y,
			&item.Size.Width,
			&item.Size.Height,
			&item.ZIndex,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// insertBoardItems writes items with sort_order based on slice index.
func insertBoardItems(ctx context.Context, tx *sql.Tx, boardID string, items []domain.BoardItem) error {
	for i, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO board_items (
				board_id, item_id, product_id, x, y, width, height, z_index, sort_order
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			boardID,
			item.ID,
			item.ProductID,
			item.Position.X,
			item.Position.Y,
			item.Size.Width,
			item.Size.Height,
			item.ZIndex,
			i,
		)
		if err != nil {
			return fmt.Errorf("insert board item %s: %w", item.ID, err)
		}
	}
	return nil
}

// CreateBoard inserts a new board and its items.
//
// The quota check and the insert are a single statement, so two sessions of
// the same owner racing for the last slot cannot both succeed. Pass a
// negative maxSaved for owners without a limit.
func (s *Store) CreateBoard(ctx context.Context, board *domain.VisionBoard, maxSaved int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	args := []any{
		board.ID,
		formatTime(board.CreatedAt),
		formatTime(board.UpdatedAt),
		nullTimeString(board.SavedAt),
		board.OwnerID,
		board.Name,
		nullString(board.DraftKey),
	}

	var result sql.Result
	if maxSaved < 0 {
		result, err = tx.ExecContext(ctx, `
			INSERT INTO boards (`+boardColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, args...)
	} else {
		args = append(args, board.OwnerID, maxSaved)
		result, err = tx.ExecContext(ctx, `
			INSERT INTO boards (`+boardColumns+`)
			SELECT ?, ?, ?, ?, ?, ?, ?
			WHERE (SELECT COUNT(*) FROM boards WHERE owner_id = ?) < ?`, args...)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrQuotaExceeded
	}

	if err := insertBoardItems(ctx, tx, board.ID, board.Items); err != nil {
		return err
	}

	return tx.Commit()
}

// GetBoard retrieves a board by ID, including its ordered items.
// Returns store.ErrNotFound if the board does not exist.
func (s *Store) GetBoard(ctx context.Context, id string) (*domain.VisionBoard, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE id = ?`, id)
	return s.finishBoard(ctx, row)
}

// GetBoardByDraftKey finds the board created from an unsaved draft.
// Returns store.ErrNotFound if no board carries the key.
func (s *Store) GetBoardByDraftKey(ctx context.Context, ownerID, draftKey string) (*domain.VisionBoard, error) {
	if draftKey == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE owner_id = ? AND draft_key = ?`, ownerID, draftKey)
	return s.finishBoard(ctx, row)
}

func (s *Store) finishBoard(ctx context.Context, row *sql.Row) (*domain.VisionBoard, error) {
	b, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.Items, err = s.loadBoardItems(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load board items: %w", err)
	}
	return b, nil
}

// UpdateBoard updates a board row and replaces its items in a transaction.
// Returns store.ErrNotFound if the board does not exist.
func (s *Store) UpdateBoard(ctx context.Context, board *domain.VisionBoard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE boards SET
			updated_at = ?,
			saved_at = ?,
			name = ?
		WHERE id = ?`,
		formatTime(board.UpdatedAt),
		nullTimeString(board.SavedAt),
		board.Name,
		board.ID,
	)
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM board_items WHERE board_id = ?`, board.ID); err != nil {
		return err
	}
	if err := insertBoardItems(ctx, tx, board.ID, board.Items); err != nil {
		return err
	}

	return tx.Commit()
}

// RenameBoard changes only the board name.
// Returns store.ErrNotFound if the board does not exist.
func (s *Store) RenameBoard(ctx context.Context, id, name string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE boards SET name = ?, updated_at = ? WHERE id = ?`,
		name, formatTime(updatedAt), id)
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

// DeleteBoard removes a board and its items.
// Returns store.ErrNotFound if the board does not exist.
func (s *Store) DeleteBoard(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM board_items WHERE board_id = ?`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
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

	return tx.Commit()
}

// ListBoards returns summaries of the owner's boards, most recently updated first.
func (s *Store) ListBoards(ctx context.Context, ownerID string) ([]domain.BoardSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.saved_at, b.updated_at,
			(SELECT COUNT(*) FROM board_items bi WHERE bi.board_id = b.id)
		FROM boards b
		WHERE b.owner_id = ?
		ORDER BY b.updated_at DESC, b.id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.BoardSummary{}
	for rows.Next() {
		var (
			sum       domain.BoardSummary
			savedAt   sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &savedAt, &updatedAt, &sum.ItemCount); err != nil {
			return nil, err
		}
		if sum.SavedAt, err = parseNullableTime(savedAt); err != nil {
			return nil, err
		}
		if sum.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// CountBoards returns how many saved boards the owner has.
func (s *Store) CountBoards(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM boards WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}
