package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/grid"
	"github.com/roomcraft/visionboard/internal/id"
	"github.com/roomcraft/visionboard/internal/quota"
	"github.com/roomcraft/visionboard/internal/service"
)

func (s *Server) registerBoardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBoards",
		Method:      http.MethodGet,
		Path:        "/api/v1/boards",
		Summary:     "List boards",
		Description: "Lists the owner's saved boards, most recently updated first",
		Tags:        []string{"Boards"},
		Security:    bearerAuth,
	}, s.handleListBoards)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBoard",
		Method:      http.MethodGet,
		Path:        "/api/v1/boards/{id}",
		Summary:     "Get board",
		Description: "Returns a saved board with its items and budget",
		Tags:        []string{"Boards"},
		Security:    bearerAuth,
	}, s.handleGetBoard)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveBoard",
		Method:      http.MethodPut,
		Path:        "/api/v1/boards",
		Summary:     "Save board",
		Description: "Creates or replaces a board. A board without an id is created, subject to the saved board quota",
		Tags:        []string{"Boards"},
		Security:    bearerAuth,
	}, s.handleSaveBoard)

	huma.Register(s.api, huma.Operation{
		OperationID: "renameBoard",
		Method:      http.MethodPatch,
		Path:        "/api/v1/boards/{id}",
		Summary:     "Rename board",
		Description: "Renames a saved board",
		Tags:        []string{"Boards"},
		Security:    bearerAuth,
	}, s.handleRenameBoard)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBoard",
		Method:      http.MethodDelete,
		Path:        "/api/v1/boards/{id}",
		Summary:     "Delete board",
		Description: "Deletes a saved board. Published share links stay up until revoked",
		Tags:        []string{"Boards"},
		Security:    bearerAuth,
	}, s.handleDeleteBoard)
}

// === DTOs ===

// BoardItemPayload is one placed item.
type BoardItemPayload struct {
	ID        string      `json:"id,omitempty" required:"false" doc:"Item ID; generated when omitted"`
	ProductID string      `json:"product_id" minLength:"1" doc:"Product placed on the board"`
	Position  grid.Point  `json:"position" doc:"Top-left corner in canvas units, snapped to the grid"`
	Size      domain.Size `json:"size" required:"false" doc:"Rendered size; two cells each way when zero"`
	ZIndex    int         `json:"z_index" required:"false" doc:"Stacking order, higher on top"`
}

// BudgetResponse is the summed price of a board's resolvable products.
type BudgetResponse struct {
	Total      string   `json:"total" doc:"Total as a decimal string"`
	Unresolved []string `json:"unresolved,omitempty" doc:"Item IDs whose product could not be resolved"`
}

// BoardResponse contains board data in API responses.
type BoardResponse struct {
	ID        string             `json:"id,omitempty" doc:"Board ID, empty until first saved"`
	Name      string             `json:"name" doc:"Board name"`
	Items     []BoardItemPayload `json:"items" doc:"Placed items"`
	ItemCount int                `json:"item_count" doc:"Number of items"`
	Budget    BudgetResponse     `json:"budget" doc:"Total budget"`
	CreatedAt *time.Time         `json:"created_at,omitempty" doc:"Creation time"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty" doc:"Last update"`
	SavedAt   *time.Time         `json:"saved_at,omitempty" doc:"Last successful save"`
}

// BoardOutput wraps a board for huma.
type BoardOutput struct {
	Body BoardResponse
}

// BoardIDInput identifies a board by path.
type BoardIDInput struct {
	ID string `path:"id" doc:"Board ID"`
}

// ListBoardsResponse contains board summaries.
type ListBoardsResponse struct {
	Boards []domain.BoardSummary `json:"boards" doc:"Saved boards"`
	Total  int                   `json:"total" doc:"Number of saved boards"`
}

// ListBoardsOutput wraps the board list for huma.
type ListBoardsOutput struct {
	Body ListBoardsResponse
}

// SaveBoardRequest is the request body for saving a board.
type SaveBoardRequest struct {
	ID       string             `json:"id,omitempty" required:"false" doc:"Existing board ID; omit to create"`
	DraftKey string             `json:"draft_key,omitempty" required:"false" doc:"Idempotency key that makes a retried create update the same board"`
	Name     string             `json:"name" minLength:"1" maxLength:"120" doc:"Board name"`
	Items    []BoardItemPayload `json:"items" doc:"Items to save"`
}

// SaveBoardInput wraps the save request for huma.
type SaveBoardInput struct {
	Body SaveBoardRequest
}

// SaveBoardResponse reports the persisted board ID.
type SaveBoardResponse struct {
	ID string `json:"id" doc:"Board ID"`
}

// SaveBoardOutput wraps the save response for huma.
type SaveBoardOutput struct {
	Body SaveBoardResponse
}

// RenameBoardRequest is the request body for renaming a board.
type RenameBoardRequest struct {
	Name string `json:"name" minLength:"1" maxLength:"120" doc:"New board name"`
}

// RenameBoardInput wraps the rename request for huma.
type RenameBoardInput struct {
	ID   string `path:"id" doc:"Board ID"`
	Body RenameBoardRequest
}

// === Handlers ===

func (s *Server) handleListBoards(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	boards, err := s.services.Boards.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &ListBoardsOutput{Body: ListBoardsResponse{Boards: boards, Total: len(boards)}}, nil
}

func (s *Server) handleGetBoard(ctx context.Context, input *BoardIDInput) (*BoardOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	board, err := s.services.Boards.Load(ctx, ownerID, input.ID)
	if err != nil {
		return nil, err
	}

	return &BoardOutput{Body: mapBoard(board, board.TotalBudget(s.services.Catalog.Lookup(ctx)))}, nil
}

func (s *Server) handleSaveBoard(ctx context.Context, input *SaveBoardInput) (*SaveBoardOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	tier, err := s.services.Subscriptions.GetTier(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	board, err := s.boardFromRequest(ownerID, input.Body)
	if err != nil {
		return nil, err
	}
	if err := s.checkSaveQuota(ctx, tier, board); err != nil {
		return nil, err
	}

	boardID, err := s.services.Boards.Save(ctx, board, service.SaveOptions{
		MaxSavedBoards: tier.Limits.MaxSavedBoards,
	})
	if err != nil {
		return nil, err
	}

	return &SaveBoardOutput{Body: SaveBoardResponse{ID: boardID}}, nil
}

// checkSaveQuota applies the saved board policy before a direct save. A
// retried draft whose earlier save landed counts as an update. The store
// repeats the check atomically with the insert.
func (s *Server) checkSaveQuota(ctx context.Context, tier domain.SubscriptionTier, board *domain.VisionBoard) error {
	updating := board.IsSaved()
	if !updating && board.DraftKey != "" {
		landedID, err := s.services.Boards.FindDraft(ctx, board.OwnerID, board.DraftKey)
		if err != nil {
			return err
		}
		updating = landedID != ""
	}
	if updating || board.ItemCount() == 0 {
		return nil
	}

	count, err := s.services.Boards.Count(ctx, board.OwnerID)
	if err != nil {
		return err
	}
	if decision := quota.CanCreateNewSavedBoard(tier, count, false); !decision.Allowed {
		s.metrics.QuotaDenied(string(decision.Reason))
		s.logger.Info("save denied by plan",
			"owner_id", board.OwnerID,
			"reason", decision.Reason,
			"tier", tier.Tier,
			"saved_boards", count,
		)
		return decision.Err()
	}
	return nil
}

func (s *Server) handleRenameBoard(ctx context.Context, input *RenameBoardInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Boards.Rename(ctx, ownerID, input.ID, input.Body.Name); err != nil {
		return nil, err
	}
	return message("Board renamed"), nil
}

func (s *Server) handleDeleteBoard(ctx context.Context, input *BoardIDInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Boards.Delete(ctx, ownerID, input.ID); err != nil {
		return nil, err
	}
	return message("Board deleted"), nil
}

// boardFromRequest builds the aggregate a direct save persists. Positions
// are snapped so stored boards hold grid-aligned coordinates only.
func (s *Server) boardFromRequest(ownerID string, req SaveBoardRequest) (*domain.VisionBoard, error) {
	cell := s.canvas().CellSize()

	board := domain.NewVisionBoard(ownerID)
	board.ID = req.ID
	board.Name = req.Name
	board.DraftKey = req.DraftKey
	if !board.IsSaved() && board.DraftKey == "" {
		key, err := id.Generate(id.PrefixDraft)
		if err != nil {
			return nil, err
		}
		board.DraftKey = key
	}

	for _, it := range req.Items {
		item := domain.BoardItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			Position:  grid.Snap(it.Position, cell),
			Size:      it.Size,
			ZIndex:    it.ZIndex,
		}
		if item.ID == "" {
			itemID, err := id.Generate(id.PrefixItem)
			if err != nil {
				return nil, err
			}
			item.ID = itemID
		}
		if item.Size.Width <= 0 || item.Size.Height <= 0 {
			item.Size = domain.DefaultItemSize(cell)
		}
		board.Items = append(board.Items, item)
	}
	return board, nil
}

func (s *Server) canvas() grid.Canvas {
	if err := s.opts.Canvas.Validate(); err != nil {
		return grid.DefaultCanvas()
	}
	return s.opts.Canvas
}

// === Mappers ===

func mapBoardItem(item domain.BoardItem) BoardItemPayload {
	return BoardItemPayload{
		ID:        item.ID,
		ProductID: item.ProductID,
		Position:  item.Position,
		Size:      item.Size,
		ZIndex:    item.ZIndex,
	}
}

func mapBudget(b domain.Budget) BudgetResponse {
	return BudgetResponse{
		Total:      b.Total.StringFixed(2),
		Unresolved: b.Unresolved,
	}
}

func mapBoard(b *domain.VisionBoard, budget domain.Budget) BoardResponse {
	resp := BoardResponse{
		ID:        b.ID,
		Name:      b.Name,
		Items:     MapSlice(b.Items, mapBoardItem),
		ItemCount: b.ItemCount(),
		Budget:    mapBudget(budget),
		SavedAt:   b.SavedAt,
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = &b.CreatedAt
	}
	if !b.UpdatedAt.IsZero() {
		resp.UpdatedAt = &b.UpdatedAt
	}
	return resp
}
