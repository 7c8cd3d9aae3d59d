package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// VisionBoard is an arrangement of liked products on a canvas.
// An empty ID means the board has never been saved; such a board is never
// shareable and never counts against the saved-board quota.
type VisionBoard struct {
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	SavedAt   *time.Time  `json:"saved_at,omitempty"`
	ID        string      `json:"id,omitempty"`
	OwnerID   string      `json:"owner_id"`
	Name      string      `json:"name"`
	DraftKey  string      `json:"draft_key,omitempty"` // Idempotency key for the first save
	Items     []BoardItem `json:"items"`
}

// NewVisionBoard returns an empty unsaved board for the owner.
func NewVisionBoard(ownerID string) *VisionBoard {
	return &VisionBoard{
		OwnerID: ownerID,
		Items:   []BoardItem{},
	}
}

// IsSaved reports whether the board has a persisted record.
func (b *VisionBoard) IsSaved() bool {
	return b.ID != ""
}

// ItemCount returns the number of items on the board.
func (b *VisionBoard) ItemCount() int {
	return len(b.Items)
}

// Budget is the derived total price of a board.
type Budget struct {
	Total decimal.Decimal `json:"total"`
	// Unresolved lists item IDs whose product no longer resolves. They stay on
	// the board and contribute nothing to Total.
	Unresolved []string `json:"unresolved,omitempty"`
}

// TotalBudget sums the price of every item's product.
func (b *VisionBoard) TotalBudget(lookup ProductLookup) Budget {
	budget := Budget{Total: decimal.Zero}
	for _, item := range b.Items {
		var (
			p  Product
			ok bool
		)
		if lookup != nil {
			p, ok = lookup(item.ProductID)
		}
		if !ok {
			budget.Unresolved = append(budget.Unresolved, item.ID)
			continue
		}
		budget.Total = budget.Total.Add(p.Price)
	}
	return budget
}

// Clear empties the board. A saved board keeps its identity and name so the
// record is updated on the next save; an unsaved board starts over.
func (b *VisionBoard) Clear() {
	if !b.IsSaved() {
		*b = *NewVisionBoard(b.OwnerID)
		return
	}
	b.Items = []BoardItem{}
}

// Clone returns a deep copy of the board.
func (b *VisionBoard) Clone() *VisionBoard {
	c := *b
	c.Items = slices.Clone(b.Items)
	if c.Items == nil {
		c.Items = []BoardItem{}
	}
	if b.SavedAt != nil {
		t := *b.SavedAt
		c.SavedAt = &t
	}
	return &c
}

// BoardSummary is the listing view of a saved board.
type BoardSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ItemCount int        `json:"item_count"`
	SavedAt   *time.Time `json:"saved_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Summary returns the listing view of the board.
func (b *VisionBoard) Summary() BoardSummary {
	return BoardSummary{
		ID:        b.ID,
		Name:      b.Name,
		ItemCount: len(b.Items),
		SavedAt:   b.SavedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
