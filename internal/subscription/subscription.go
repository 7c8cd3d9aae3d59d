// Package subscription reads an owner's plan from the billing service's Redis
// keyspace and maps it onto the configured tier limits.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
)

// KeyPrefix namespaces tier keys. The billing service writes
// "subscription:tier:<ownerID>" = "free" | "pro" | "studio".
const KeyPrefix = "subscription:tier:"

// Key returns the Redis key holding the owner's tier.
func Key(ownerID string) string {
	return KeyPrefix + ownerID
}

// Service resolves subscription tiers.
type Service struct {
	client  redis.UniversalClient
	limits  map[domain.Tier]domain.Limits
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates a subscription service. limits falls back to
// domain.DefaultTierLimits when nil.
func NewService(client redis.UniversalClient, limits map[domain.Tier]domain.Limits, timeout time.Duration, logger *slog.Logger) *Service {
	if limits == nil {
		limits = domain.DefaultTierLimits()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		client:  client,
		limits:  maps.Clone(limits),
		timeout: timeout,
		logger:  logger,
	}
}

// Limits returns the limits for a tier.
func (s *Service) Limits(tier domain.Tier) domain.Limits {
	return s.limits[tier]
}

// GetTier reads the owner's current tier. A missing key means the owner never
// subscribed and is on the free tier. Redis failures surface as
// SERVICE_UNAVAILABLE so callers can refuse quota-gated actions.
func (s *Service) GetTier(ctx context.Context, ownerID string) (domain.SubscriptionTier, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tier := domain.TierFree
	val, err := s.client.Get(ctx, Key(ownerID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		s.logger.Error("subscription lookup failed", "owner_id", ownerID, "error", err)
		return domain.SubscriptionTier{}, domainerrors.ServiceUnavailable("subscription", err)
	case domain.Tier(val).Valid():
		tier = domain.Tier(val)
	default:
		s.logger.Warn("unknown subscription tier, treating as free", "owner_id", ownerID, "tier", val)
	}

	return domain.SubscriptionTier{Tier: tier, Limits: s.limits[tier]}, nil
}

// SetTier writes the owner's tier. Used by seeding and admin tooling; in
// production the billing service owns these keys.
func (s *Service) SetTier(ctx context.Context, ownerID string, tier domain.Tier) error {
	if !tier.Valid() {
		return domainerrors.Validationf("unknown tier %q", tier)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, Key(ownerID), string(tier), 0).Err(); err != nil {
		return domainerrors.ServiceUnavailable("subscription", fmt.Errorf("set tier: %w", err))
	}
	s.logger.Info("subscription tier set", "owner_id", ownerID, "tier", tier)
	return nil
}

// Ping checks connectivity to Redis.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
