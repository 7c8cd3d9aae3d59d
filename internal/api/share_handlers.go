package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/grid"
)

func (s *Server) registerShareRoutes() {
	getShared := huma.Operation{
		OperationID: "getSharedBoard",
		Method:      http.MethodGet,
		Path:        "/api/v1/shared/{token}",
		Summary:     "Get shared board",
		Description: "Returns the read-only snapshot behind a share link. No authentication required",
		Tags:        []string{"Sharing"},
	}
	if s.opts.PublicLimiter != nil {
		getShared.Middlewares = huma.Middlewares{s.rateLimitByIP(s.opts.PublicLimiter)}
	}
	huma.Register(s.api, getShared, s.handleGetSharedBoard)

	huma.Register(s.api, huma.Operation{
		OperationID: "listShares",
		Method:      http.MethodGet,
		Path:        "/api/v1/shares",
		Summary:     "List shares",
		Description: "Lists the owner's published share links",
		Tags:        []string{"Sharing"},
		Security:    bearerAuth,
	}, s.handleListShares)

	huma.Register(s.api, huma.Operation{
		OperationID: "revokeShare",
		Method:      http.MethodDelete,
		Path:        "/api/v1/shares/{token}",
		Summary:     "Revoke share",
		Description: "Takes a share link down",
		Tags:        []string{"Sharing"},
		Security:    bearerAuth,
	}, s.handleRevokeShare)
}

// === DTOs ===

// SharedItemResponse is one item as it appears on a shared board.
type SharedItemResponse struct {
	BoardItemPayload
	Column  int              `json:"column" doc:"Grid column of the top-left corner"`
	Row     int              `json:"row" doc:"Grid row of the top-left corner"`
	Product *ProductResponse `json:"product,omitempty" doc:"Product details; absent when it no longer resolves"`
}

// SharedBoardResponse is the read-only board snapshot behind a link.
type SharedBoardResponse struct {
	BoardID     string               `json:"board_id" doc:"Board the snapshot was taken from"`
	BoardName   string               `json:"board_name" doc:"Board name at publish time"`
	Items       []SharedItemResponse `json:"items" doc:"Items with grid cells and product details"`
	TotalBudget string               `json:"total_budget" doc:"Total as a decimal string"`
	Unresolved  []string             `json:"unresolved,omitempty" doc:"Item IDs whose product could not be resolved"`
	Canvas      grid.Canvas          `json:"canvas" doc:"Canvas geometry"`
	CreatedAt   time.Time            `json:"created_at" doc:"When the snapshot was taken"`
}

// ShareLinkResponse is a published share link.
type ShareLinkResponse struct {
	Token     string              `json:"token" doc:"Public share token"`
	BoardID   string              `json:"board_id" doc:"Shared board"`
	CreatedAt time.Time           `json:"created_at" doc:"Publish time"`
	Board     SharedBoardResponse `json:"board" doc:"Board snapshot"`
}

// ShareLinkOutput wraps a share link for huma.
type ShareLinkOutput struct {
	Body ShareLinkResponse
}

// ShareTokenInput identifies a share link.
type ShareTokenInput struct {
	Token string `path:"token" doc:"Share token"`
}

// ListSharesResponse contains share links.
type ListSharesResponse struct {
	Shares []ShareLinkResponse `json:"shares" doc:"Published share links"`
}

// ListSharesOutput wraps the list shares response for huma.
type ListSharesOutput struct {
	Body ListSharesResponse
}

// === Handlers ===

func (s *Server) handleGetSharedBoard(ctx context.Context, input *ShareTokenInput) (*ShareLinkOutput, error) {
	link, err := s.services.Shares.Get(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	return &ShareLinkOutput{Body: mapShareLink(link)}, nil
}

func (s *Server) handleListShares(ctx context.Context, _ *struct{}) (*ListSharesOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	links, err := s.services.Shares.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &ListSharesOutput{Body: ListSharesResponse{Shares: MapSlice(links, mapShareLink)}}, nil
}

func (s *Server) handleRevokeShare(ctx context.Context, input *ShareTokenInput) (*MessageOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Shares.Revoke(ctx, ownerID, input.Token); err != nil {
		return nil, err
	}
	return message("Share revoked"), nil
}

// === Mappers ===

func mapSharedItem(item domain.SharedItem) SharedItemResponse {
	resp := SharedItemResponse{
		BoardItemPayload: mapBoardItem(item.BoardItem),
		Column:           item.Column,
		Row:              item.Row,
	}
	if item.Product != nil {
		p := mapProduct(*item.Product)
		resp.Product = &p
	}
	return resp
}

func mapShareLink(link *domain.ShareLink) ShareLinkResponse {
	resp := ShareLinkResponse{
		Token:     link.Token,
		BoardID:   link.BoardID,
		CreatedAt: link.CreatedAt,
	}
	if p := link.Payload; p != nil {
		resp.Board = SharedBoardResponse{
			BoardID:     p.BoardID,
			BoardName:   p.BoardName,
			Items:       MapSlice(p.Items, mapSharedItem),
			TotalBudget: p.TotalBudget.StringFixed(2),
			Unresolved:  p.Unresolved,
			Canvas:      p.Canvas,
			CreatedAt:   p.CreatedAt,
		}
	}
	return resp
}
