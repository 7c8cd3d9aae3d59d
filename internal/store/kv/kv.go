// Package kv is the Badger-backed key/value store for published share links.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/store"
)

const sharePrefix = "share:"

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	shares *Entity[domain.ShareLink]
}

var _ store.ShareStore = (*Store)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions(path), path, logger)
}

// NewInMemory opens a Badger database that lives only in memory.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), ":memory:", logger)
}

func open(opts badger.Options, path string, logger *slog.Logger) (*Store, error) {
	opts.Logger = nil // Disable Badger's internal logging
	if !opts.InMemory {
		opts.SyncWrites = true
		opts.CompactL0OnClose = true
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.shares = NewEntity[domain.ShareLink](s, sharePrefix).
		WithIndex("owner", func(l *domain.ShareLink) []string { return []string{l.OwnerID} }).
		WithIndex("board", func(l *domain.ShareLink) []string { return []string{l.BoardID} })

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing share database")
	}
	return s.db.Close()
}

// CreateShare stores a new share link keyed by its token.
func (s *Store) CreateShare(ctx context.Context, link *domain.ShareLink) error {
	if err := s.shares.Create(ctx, link.Token, link); err != nil {
		return fmt.Errorf("create share: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("share link created",
			"token", link.Token,
			"board_id", link.BoardID,
			"owner_id", link.OwnerID,
		)
	}
	return nil
}

// GetShare retrieves a share link by token.
func (s *Store) GetShare(ctx context.Context, token string) (*domain.ShareLink, error) {
	link, err := s.shares.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrShareNotFound
		}
		return nil, fmt.Errorf("get share: %w", err)
	}
	return link, nil
}

// DeleteShare removes a share link.
func (s *Store) DeleteShare(ctx context.Context, token string) error {
	if _, err := s.GetShare(ctx, token); err != nil {
		return err
	}
	if err := s.shares.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return nil
}

// ListSharesByOwner returns every share link the owner published.
func (s *Store) ListSharesByOwner(ctx context.Context, ownerID string) ([]*domain.ShareLink, error) {
	links, err := s.shares.FindByIndex(ctx, "owner", ownerID)
	if err != nil {
		return nil, fmt.Errorf("find shares by owner: %w", err)
	}
	return links, nil
}

// ListSharesByBoard returns every share link published from the board.
func (s *Store) ListSharesByBoard(ctx context.Context, boardID string) ([]*domain.ShareLink, error) {
	links, err := s.shares.FindByIndex(ctx, "board", boardID)
	if err != nil {
		return nil, fmt.Errorf("find shares by board: %w", err)
	}
	return links, nil
}
