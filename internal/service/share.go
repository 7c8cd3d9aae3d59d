package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/id"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/ratelimit"
	"github.com/roomcraft/visionboard/internal/sse"
	"github.com/roomcraft/visionboard/internal/store"
)

// ShareService publishes read-only board snapshots under opaque tokens.
type ShareService struct {
	store      store.ShareStore
	limiter    *ratelimit.KeyedRateLimiter
	sseManager *sse.Manager
	metrics    *metrics.Manager
	logger     *slog.Logger
	now        func() time.Time
}

// NewShareService creates a new share service. limiter, sseManager and m may be nil.
func NewShareService(s store.ShareStore, limiter *ratelimit.KeyedRateLimiter, sseManager *sse.Manager, m *metrics.Manager, logger *slog.Logger) *ShareService {
	return &ShareService{
		store:      s,
		limiter:    limiter,
		sseManager: sseManager,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Publish stores the payload and returns the link that serves it.
// Publishing is rate limited per owner.
func (s *ShareService) Publish(ctx context.Context, payload *domain.SharePayload) (*domain.ShareLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if payload == nil || payload.BoardID == "" {
		return nil, domainerrors.ErrBoardNotSaved
	}
	if len(payload.Items) == 0 {
		return nil, domainerrors.ErrBoardEmpty
	}

	if s.limiter != nil && !s.limiter.Allow(payload.OwnerID) {
		s.metrics.ShareThrottled()
		s.logger.Warn("share publish rate limited", "owner_id", payload.OwnerID, "board_id", payload.BoardID)
		return nil, domainerrors.ErrRateLimited
	}

	token, err := id.ShareToken()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate share token")
	}

	link := &domain.ShareLink{
		Token:     token,
		OwnerID:   payload.OwnerID,
		BoardID:   payload.BoardID,
		CreatedAt: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.store.CreateShare(ctx, link); err != nil {
		return nil, domainerrors.PersistenceUnavailable("share", err)
	}

	s.metrics.SharePublished()
	s.emit(sse.NewSharePublishedEvent(link))
	s.logger.Info("board shared",
		"board_id", link.BoardID,
		"owner_id", link.OwnerID,
		"token", link.Token,
	)
	return link, nil
}

// Get returns a published link. Anyone holding the token may read it.
func (s *ShareService) Get(ctx context.Context, token string) (*domain.ShareLink, error) {
	if !id.HasPrefix(token, id.PrefixShare) {
		return nil, domainerrors.NotFound("share link not found")
	}
	link, err := s.store.GetShare(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			return nil, domainerrors.NotFound("share link not found")
		}
		return nil, domainerrors.PersistenceUnavailable("share", err)
	}
	return link, nil
}

// List returns the owner's published links.
func (s *ShareService) List(ctx context.Context, ownerID string) ([]*domain.ShareLink, error) {
	links, err := s.store.ListSharesByOwner(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.PersistenceUnavailable("share", err)
	}
	return links, nil
}

// Revoke deletes a link. Links of other owners are reported as not found.
func (s *ShareService) Revoke(ctx context.Context, ownerID, token string) error {
	link, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return domainerrors.NotFound("share link not found")
	}

	if err := s.store.DeleteShare(ctx, token); err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			return domainerrors.NotFound("share link not found")
		}
		return domainerrors.PersistenceUnavailable("share", err)
	}

	s.emit(sse.NewShareRevokedEvent(link, s.now().UTC()))
	s.logger.Info("share revoked", "board_id", link.BoardID, "owner_id", ownerID, "token", token)
	return nil
}

func (s *ShareService) emit(event sse.Event) {
	if s.sseManager != nil {
		s.sseManager.Emit(event)
	}
}
