// Package sse implements Server-Sent Events so an owner's open editors and
// board lists stay in step across tabs and devices.
package sse

import (
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventBoardSaved is sent after a board is created or updated.
	EventBoardSaved EventType = "board.saved"
	// EventBoardRenamed is sent after a saved board is renamed.
	EventBoardRenamed EventType = "board.renamed"
	// EventBoardDeleted is sent after a saved board is deleted.
	EventBoardDeleted EventType = "board.deleted"

	// EventSharePublished is sent after a share link is created.
	EventSharePublished EventType = "share.published"
	// EventShareRevoked is sent after a share link is revoked.
	EventShareRevoked EventType = "share.revoked"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// OwnerID limits delivery to that owner's clients. Empty means everyone.
	OwnerID string `json:"-"`
}

// BoardSavedEventData is the data payload for board.saved.
type BoardSavedEventData struct {
	Board   domain.BoardSummary `json:"board"`
	Created bool                `json:"created"`
}

// BoardRenamedEventData is the data payload for board.renamed.
type BoardRenamedEventData struct {
	UpdatedAt time.Time `json:"updated_at"`
	BoardID   string    `json:"board_id"`
	Name      string    `json:"name"`
}

// BoardDeletedEventData is the data payload for board.deleted.
type BoardDeletedEventData struct {
	DeletedAt time.Time `json:"deleted_at"`
	BoardID   string    `json:"board_id"`
}

// ShareEventData is the data payload for share.published and share.revoked.
type ShareEventData struct {
	At      time.Time `json:"at"`
	Token   string    `json:"token"`
	BoardID string    `json:"board_id"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewBoardSavedEvent creates a board.saved event for the board's owner.
func NewBoardSavedEvent(board *domain.VisionBoard, created bool) Event {
	return Event{
		Type:      EventBoardSaved,
		OwnerID:   board.OwnerID,
		Timestamp: time.Now(),
		Data: BoardSavedEventData{
			Board:   board.Summary(),
			Created: created,
		},
	}
}

// NewBoardRenamedEvent creates a board.renamed event.
func NewBoardRenamedEvent(ownerID, boardID, name string, updatedAt time.Time) Event {
	return Event{
		Type:      EventBoardRenamed,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
		Data: BoardRenamedEventData{
			BoardID:   boardID,
			Name:      name,
			UpdatedAt: updatedAt,
		},
	}
}

// NewBoardDeletedEvent creates a board.deleted event.
func NewBoardDeletedEvent(ownerID, boardID string, deletedAt time.Time) Event {
	return Event{
		Type:      EventBoardDeleted,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
		Data: BoardDeletedEventData{
			BoardID:   boardID,
			DeletedAt: deletedAt,
		},
	}
}

// NewSharePublishedEvent creates a share.published event.
func NewSharePublishedEvent(link *domain.ShareLink) Event {
	return Event{
		Type:      EventSharePublished,
		OwnerID:   link.OwnerID,
		Timestamp: time.Now(),
		Data: ShareEventData{
			Token:   link.Token,
			BoardID: link.BoardID,
			At:      link.CreatedAt,
		},
	}
}

// NewShareRevokedEvent creates a share.revoked event.
func NewShareRevokedEvent(link *domain.ShareLink, revokedAt time.Time) Event {
	return Event{
		Type:      EventShareRevoked,
		OwnerID:   link.OwnerID,
		Timestamp: time.Now(),
		Data: ShareEventData{
			Token:   link.Token,
			BoardID: link.BoardID,
			At:      revokedAt,
		},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}
