package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roomcraft/visionboard/internal/grid"
)

// SharedItem is a board item with the product snapshot it resolved to when
// the board was shared. Product is nil for unresolved items.
type SharedItem struct {
	BoardItem
	Product *Product `json:"product,omitempty"`
	Column  int      `json:"column"`
	Row     int      `json:"row"`
}

// SharePayload is the read-only representation handed to the share surface.
// It is built from the persisted board, never from unsaved local edits.
type SharePayload struct {
	BoardID     string          `json:"board_id"`
	BoardName   string          `json:"board_name"`
	OwnerID     string          `json:"owner_id"`
	Items       []SharedItem    `json:"items"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	Unresolved  []string        `json:"unresolved,omitempty"`
	Canvas      grid.Canvas     `json:"canvas"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BuildSharePayload snapshots a saved board for publishing.
func BuildSharePayload(board *VisionBoard, lookup ProductLookup, canvas grid.Canvas, now time.Time) *SharePayload {
	cell := canvas.CellSize()
	budget := board.TotalBudget(lookup)

	items := make([]SharedItem, 0, len(board.Items))
	for _, item := range board.Items {
		shared := SharedItem{BoardItem: item}
		shared.Column, shared.Row = grid.Cell(item.Position, cell)
		if lookup != nil {
			if p, ok := lookup(item.ProductID); ok {
				shared.Product = &p
			}
		}
		items = append(items, shared)
	}

	return &SharePayload{
		BoardID:     board.ID,
		BoardName:   board.Name,
		OwnerID:     board.OwnerID,
		Items:       items,
		TotalBudget: budget.Total,
		Unresolved:  budget.Unresolved,
		Canvas:      canvas,
		CreatedAt:   now,
	}
}

// ShareLink is a published, publicly readable board snapshot.
type ShareLink struct {
	Token     string        `json:"token"`
	OwnerID   string        `json:"owner_id"`
	BoardID   string        `json:"board_id"`
	CreatedAt time.Time     `json:"created_at"`
	Payload   *SharePayload `json:"payload"`
}
