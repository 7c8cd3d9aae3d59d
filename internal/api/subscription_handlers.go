package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/quota"
)

func (s *Server) registerSubscriptionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSubscription",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscription",
		Summary:     "Get subscription",
		Description: "Returns the owner's tier, its limits and current saved board usage",
		Tags:        []string{"Subscription"},
		Security:    bearerAuth,
	}, s.handleGetSubscription)
}

// SubscriptionResponse describes the owner's plan and usage.
type SubscriptionResponse struct {
	Tier            domain.Tier   `json:"tier" doc:"free, pro or studio"`
	Limits          domain.Limits `json:"limits" doc:"Tier limits; max_saved_boards is -1 when unlimited"`
	SavedBoards     int           `json:"saved_boards" doc:"Boards currently saved"`
	RemainingBoards int           `json:"remaining_boards" doc:"Boards that can still be created; -1 when unlimited"`
}

// SubscriptionOutput wraps the subscription response for huma.
type SubscriptionOutput struct {
	Body SubscriptionResponse
}

func (s *Server) handleGetSubscription(ctx context.Context, _ *struct{}) (*SubscriptionOutput, error) {
	ownerID, err := GetOwnerID(ctx)
	if err != nil {
		return nil, err
	}

	tier, err := s.services.Subscriptions.GetTier(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	count, err := s.services.Boards.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &SubscriptionOutput{Body: SubscriptionResponse{
		Tier:            tier.Tier,
		Limits:          tier.Limits,
		SavedBoards:     count,
		RemainingBoards: quota.RemainingBoards(tier, count),
	}}, nil
}
