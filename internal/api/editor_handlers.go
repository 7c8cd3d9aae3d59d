package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/roomcraft/visionboard/internal/editor"
	"github.com/roomcraft/visionboard/internal/grid"
)

const sessionPath = "/api/v1/editor/sessions/{sid}"

func (s *Server) registerEditorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "openEditorSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/editor/sessions",
		Summary:       "Open editor session",
		Description:   "Starts an editing session on an empty unsaved board",
		Tags:          []string{"Editor"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerAuth,
	}, s.handleOpenSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEditorSession",
		Method:      http.MethodGet,
		Path:        sessionPath,
		Summary:     "Get editor session",
		Description: "Returns the session's board, state, budget and drag overlay",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "closeEditorSession",
		Method:      http.MethodDelete,
		Path:        sessionPath,
		Summary:     "Close editor session",
		Description: "Ends the session. Unsaved changes are dropped",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleCloseSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addEditorItem",
		Method:        http.MethodPost,
		Path:          sessionPath + "/items",
		Summary:       "Add item",
		Description:   "Places a product on the board at the snapped position, on top of other items",
		Tags:          []string{"Editor"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerAuth,
	}, s.handleAddItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "moveEditorItem",
		Method:      http.MethodPost,
		Path:        sessionPath + "/items/{itemId}/move",
		Summary:     "Move item",
		Description: "Commits a snapped position for the item and brings it to the front",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleMoveItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "dragEditorItem",
		Method:      http.MethodPost,
		Path:        sessionPath + "/items/{itemId}/drag",
		Summary:     "Drag item",
		Description: "Drives a drag gesture. start and move only update the overlay; end commits the snapped position",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleDragItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "bringEditorItemToFront",
		Method:      http.MethodPost,
		Path:        sessionPath + "/items/{itemId}/front",
		Summary:     "Bring item to front",
		Description: "Raises the item above every other item",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleBringToFront)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeEditorItem",
		Method:      http.MethodDelete,
		Path:        sessionPath + "/items/{itemId}",
		Summary:     "Remove item",
		Description: "Takes an item off the board",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleRemoveItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearEditorBoard",
		Method:      http.MethodPost,
		Path:        sessionPath + "/clear",
		Summary:     "Clear board",
		Description: "Removes every item. A saved board keeps its identity",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleClear)

	huma.Register(s.api, huma.Operation{
		OperationID: "newEditorBoard",
		Method:      http.MethodPost,
		Path:        sessionPath + "/new",
		Summary:     "New board",
		Description: "Replaces the active board with an empty one. Refused with unsaved changes unless discard_changes is set",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleNewBoard)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveEditorBoard",
		Method:      http.MethodPost,
		Path:        sessionPath + "/save",
		Summary:     "Save board",
		Description: "Persists the active board, checking the saved board quota when creating",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleSaveSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "renameEditorBoard",
		Method:      http.MethodPost,
		Path:        sessionPath + "/rename",
		Summary:     "Rename board",
		Description: "Renames the active saved board",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleRenameSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "loadEditorBoard",
		Method:      http.MethodPost,
		Path:        sessionPath + "/load",
		Summary:     "Load board",
		Description: "Replaces the active board with a saved one. Refused with unsaved changes unless discard_changes is set",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleLoadSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteEditorBoard",
		Method:      http.MethodPost,
		Path:        sessionPath + "/delete",
		Summary:     "Delete board",
		Description: "Deletes a saved board; deleting the active board leaves an empty one",
		Tags:        []string{"Editor"},
		Security:    bearerAuth,
	}, s.handleDeleteSessionBoard)

	huma.Register(s.api, huma.Operation{
		OperationID:   "shareEditorBoard",
		Method:        http.MethodPost,
		Path:          sessionPath + "/share",
		Summary:       "Share board",
		Description:   "Publishes a read-only link to the persisted version of the active board",
		Tags:          []string{"Editor"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerAuth,
	}, s.handleShareSession)
}

// === DTOs ===

// SessionViewResponse is a render snapshot of an editor session.
type SessionViewResponse struct {
	SessionID string              `json:"session_id" doc:"Session ID"`
	State     string              `json:"state" doc:"empty, dirty, saving, saved or loading_other"`
	Board     BoardResponse       `json:"board" doc:"Active board"`
	Drag      *editor.DragOverlay `json:"drag,omitempty" doc:"In-progress drag, never persisted"`
	Canvas    grid.Canvas         `json:"canvas" doc:"Canvas geometry"`
	LastSaved *time.Time          `json:"last_saved,omitempty" doc:"Last successful save of the active board"`
}

// SessionOutput wraps a session view for huma.
type SessionOutput struct {
	Body SessionViewResponse
}

// SessionInput identifies an editor session.
type SessionInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
}

// ItemInput identifies an item within an editor session.
type ItemInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	ItemID    string `path:"itemId" doc:"Item ID"`
}

// AddItemRequest is the request body for placing a product.
type AddItemRequest struct {
	ProductID string     `json:"product_id" minLength:"1" doc:"Product to place"`
	Position  grid.Point `json:"position" doc:"Drop position in canvas units"`
}

// AddItemInput wraps the add item request for huma.
type AddItemInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	Body      AddItemRequest
}

// AddItemResponse contains the placed item and the updated session.
type AddItemResponse struct {
	Item    BoardItemPayload    `json:"item" doc:"Placed item"`
	Session SessionViewResponse `json:"session" doc:"Updated session"`
}

// AddItemOutput wraps the add item response for huma.
type AddItemOutput struct {
	Body AddItemResponse
}

// MoveItemRequest is the request body for moving an item.
type MoveItemRequest struct {
	Position grid.Point `json:"position" doc:"Raw position; snapped before it is stored"`
}

// MoveItemInput wraps the move request for huma.
type MoveItemInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	ItemID    string `path:"itemId" doc:"Item ID"`
	Body      MoveItemRequest
}

// DragItemRequest is the request body for one drag gesture step.
type DragItemRequest struct {
	Phase    string     `json:"phase" enum:"start,move,end" doc:"Gesture phase"`
	Position grid.Point `json:"position" required:"false" doc:"Raw pointer position for move and end"`
}

// DragItemInput wraps the drag request for huma.
type DragItemInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	ItemID    string `path:"itemId" doc:"Item ID"`
	Body      DragItemRequest
}

// DiscardRequest carries the confirmation to drop unsaved changes.
type DiscardRequest struct {
	DiscardChanges bool `json:"discard_changes" required:"false" doc:"Drop unsaved changes"`
}

// NewBoardInput wraps the new board request for huma.
type NewBoardInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	Body      DiscardRequest
}

// NameRequest carries a board name.
type NameRequest struct {
	Name string `json:"name" required:"false" maxLength:"120" doc:"Board name"`
}

// SaveSessionInput wraps the save request for huma.
type SaveSessionInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	Body      NameRequest
}

// RenameSessionInput wraps the rename request for huma.
type RenameSessionInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	Body      RenameBoardRequest
}

// LoadBoardRequest is the request body for loading a saved board.
type LoadBoardRequest struct {
	BoardID        string `json:"board_id" minLength:"1" doc:"Board to load"`
	DiscardChanges bool   `json:"discard_changes" required:"false" doc:"Drop unsaved changes"`
}

// LoadSessionInput wraps the load request for huma.
type LoadSessionInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	Body      LoadBoardRequest
}

// DeleteBoardRequest names the board to delete.
type DeleteBoardRequest struct {
	BoardID string `json:"board_id" minLength:"1" doc:"Board to delete"`
}

// DeleteSessionBoardInput wraps the delete request for huma.
type DeleteSessionBoardInput struct {
	SessionID string `path:"sid" doc:"Editor session ID"`
	Body      DeleteBoardRequest
}

// === Handlers ===

// session resolves the caller's session.
func (s *Server) session(ctx context.Context, sessionID string) (*editor.Session, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.services.Editor.Get(ownerID, sessionID)
}

func (s *Server) viewOutput(ctx context.Context, sess *editor.Session) *SessionOutput {
	return &SessionOutput{Body: mapSessionView(sess.View(ctx))}
}

func (s *Server) handleOpenSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := s.services.Editor.Open(ownerID)
	if err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleGetSession(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleCloseSession(ctx context.Context, input *SessionInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Editor.Close(ownerID, input.SessionID); err != nil {
		return nil, err
	}
	return message("Session closed"), nil
}

func (s *Server) handleAddItem(ctx context.Context, input *AddItemInput) (*AddItemOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	item, err := sess.AddItem(input.Body.ProductID, input.Body.Position)
	if err != nil {
		return nil, err
	}

	return &AddItemOutput{Body: AddItemResponse{
		Item:    mapBoardItem(item),
		Session: mapSessionView(sess.View(ctx)),
	}}, nil
}

func (s *Server) handleMoveItem(ctx context.Context, input *MoveItemInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Move(input.ItemID, input.Body.Position); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleDragItem(ctx context.Context, input *DragItemInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	switch input.Body.Phase {
	case "start":
		err = sess.DragStart(input.ItemID)
	case "move":
		err = sess.DragMove(input.ItemID, input.Body.Position)
	case "end":
		err = sess.DragEnd(input.ItemID, input.Body.Position)
	}
	if err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleBringToFront(ctx context.Context, input *ItemInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.BringToFront(input.ItemID); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleRemoveItem(ctx context.Context, input *ItemInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Remove(input.ItemID); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleClear(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	sess.Clear()
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleNewBoard(ctx context.Context, input *NewBoardInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.New(input.Body.DiscardChanges); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleSaveSession(ctx context.Context, input *SaveSessionInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Save(ctx, input.Body.Name); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleRenameSession(ctx context.Context, input *RenameSessionInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Rename(ctx, input.Body.Name); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleLoadSession(ctx context.Context, input *LoadSessionInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Load(ctx, input.Body.BoardID, input.Body.DiscardChanges); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleDeleteSessionBoard(ctx context.Context, input *DeleteSessionBoardInput) (*SessionOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Delete(ctx, input.Body.BoardID); err != nil {
		return nil, err
	}
	return s.viewOutput(ctx, sess), nil
}

func (s *Server) handleShareSession(ctx context.Context, input *SessionInput) (*ShareLinkOutput, error) {
	sess, err := s.session(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	payload, err := sess.Share(ctx)
	if err != nil {
		return nil, err
	}

	link, err := s.services.Shares.Publish(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &ShareLinkOutput{Body: mapShareLink(link)}, nil
}

// === Mappers ===

func mapSessionView(v editor.SessionView) SessionViewResponse {
	return SessionViewResponse{
		SessionID: v.SessionID,
		State:     v.State.String(),
		Board:     mapBoard(v.Board, v.Budget),
		Drag:      v.Drag,
		Canvas:    v.Canvas,
		LastSaved: v.LastSaved,
	}
}
