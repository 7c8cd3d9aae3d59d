package domain

import (
	"strings"

	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/grid"
	"github.com/roomcraft/visionboard/internal/id"
)

// Size is the rendered footprint of an item in canvas units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultItemSize spans two cells in each direction.
func DefaultItemSize(cell grid.CellSize) Size {
	return Size{Width: cell.Width * 2, Height: cell.Height * 2}
}

// BoardItem is one placed product instance on a board.
// ZIndex values need not be unique; higher draws on top.
type BoardItem struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	Position  grid.Point `json:"position"`
	Size      Size       `json:"size"`
	ZIndex    int        `json:"z_index"`
}

// ErrItemNotFound is returned when an item ID is not on the board.
var ErrItemNotFound = domainerrors.NotFound("item not found on board")

// maxZIndex returns the highest zIndex on the board, 0 when empty.
func (b *VisionBoard) maxZIndex() int {
	top := 0
	for i, item := range b.Items {
		if i == 0 || item.ZIndex > top {
			top = item.ZIndex
		}
	}
	return top
}

func (b *VisionBoard) itemIndex(itemID string) int {
	for i := range b.Items {
		if b.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Item returns a copy of the item with the given ID.
func (b *VisionBoard) Item(itemID string) (BoardItem, bool) {
	i := b.itemIndex(itemID)
	if i < 0 {
		return BoardItem{}, false
	}
	return b.Items[i], true
}

// Place drops a product onto the board at the snapped position and puts it on top.
// A zero size falls back to DefaultItemSize. Overlapping an existing item is allowed.
func (b *VisionBoard) Place(productID string, pos grid.Point, size Size, cell grid.CellSize) (BoardItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return BoardItem{}, domainerrors.Validation("product id is required")
	}
	if size.Width < 0 || size.Height < 0 {
		return BoardItem{}, domainerrors.Validation("item size cannot be negative")
	}
	if size.Width == 0 || size.Height == 0 {
		size = DefaultItemSize(cell)
	}

	itemID, err := id.Generate(id.PrefixItem)
	if err != nil {
		return BoardItem{}, err
	}

	z := b.maxZIndex() + 1

	item := BoardItem{
		ID:        itemID,
		ProductID: productID,
		Position:  grid.Snap(pos, cell),
		Size:      size,
		ZIndex:    z,
	}
	b.Items = append(b.Items, item)
	return item, nil
}

// Move commits a new position for the item. The raw position is always snapped
// before it is stored, and the moved item is brought to the front.
func (b *VisionBoard) Move(itemID string, raw grid.Point, cell grid.CellSize) error {
	i := b.itemIndex(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	b.Items[i].Position = grid.Snap(raw, cell)
	b.raise(i)
	return nil
}

// Remove deletes the item from the board.
func (b *VisionBoard) Remove(itemID string) error {
	i := b.itemIndex(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	b.Items = append(b.Items[:i], b.Items[i+1:]...)
	return nil
}

// BringToFront sets the item's zIndex to the current maximum plus one.
// It fails on an empty board instead of defaulting to zero.
func (b *VisionBoard) BringToFront(itemID string) error {
	if len(b.Items) == 0 {
		return domainerrors.ErrBoardEmpty
	}
	i := b.itemIndex(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	b.raise(i)
	return nil
}

// raise sets Items[i].ZIndex to the current maximum plus one.
func (b *VisionBoard) raise(i int) {
	b.Items[i].ZIndex = b.maxZIndex() + 1
}
