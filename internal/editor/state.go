package editor

import (
	"slices"
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/grid"
)

// State is where a session is in its edit/persist cycle.
type State int

// Session states.
const (
	// StateEmpty is an unsaved board with no items.
	StateEmpty State = iota
	// StateDirty means local items differ from the persisted record, or the
	// board has never been saved.
	StateDirty
	// StateSaving means a save is in flight.
	StateSaving
	// StateSaved means the local board matches the persisted record.
	StateSaved
	// StateLoadingOther means another board is replacing the active one.
	StateLoadingOther
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateLoadingOther:
		return "loading_other"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DragOverlay is the in-progress drag of one item. It is ephemeral and never
// persisted; only DragEnd commits a position to the board.
type DragOverlay struct {
	ItemID  string     `json:"item_id"`
	Origin  grid.Point `json:"origin"`  // Committed position when the drag began
	Current grid.Point `json:"current"` // Raw pointer position
	Snapped grid.Point `json:"snapped"` // Where the item lands if dropped now
}

// SessionView is a render snapshot of a session.
type SessionView struct {
	SessionID string              `json:"session_id"`
	State     State               `json:"state"`
	Board     *domain.VisionBoard `json:"board"`
	ItemCount int                 `json:"item_count"`
	Budget    domain.Budget       `json:"budget"`
	Drag      *DragOverlay        `json:"drag,omitempty"`
	Canvas    grid.Canvas         `json:"canvas"`
	LastSaved *time.Time          `json:"last_saved,omitempty"`
}

// Unresolved reports whether the item's product no longer resolves.
func (v SessionView) Unresolved(itemID string) bool {
	return slices.Contains(v.Budget.Unresolved, itemID)
}
