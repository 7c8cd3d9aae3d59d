// Package service provides the business logic layer for saving, sharing and
// listing vision boards.
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
	"github.com/roomcraft/visionboard/internal/normalize"
	"github.com/roomcraft/visionboard/internal/sse"
	"github.com/roomcraft/visionboard/internal/store"
)

// SaveOptions tunes a single save.
type SaveOptions struct {
	// MaxSavedBoards is enforced by the store together with the insert of a
	// new board. Negative (domain.Unlimited) disables the check. Updates
	// ignore it.
	MaxSavedBoards int
}

// BoardService is the persistence gateway for saved boards. It enforces
// ownership and maps storage failures onto the domain error codes.
type BoardService struct {
	store      store.BoardStore
	sseManager *sse.Manager
	metrics    *metrics.Manager
	logger     *slog.Logger
	now        func() time.Time
}

// NewBoardService creates a new board service. sseManager and m may be nil.
func NewBoardService(s store.BoardStore, sseManager *sse.Manager, m *metrics.Manager, logger *slog.Logger) *BoardService {
	return &BoardService{
		store:      s,
		sseManager: sseManager,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Save persists the board and returns its ID. A board without an ID is
// inserted; one with an ID is updated in place. The caller's board is not
// modified.
//
// A retried first save is recognized by the board's DraftKey and updates the
// record the earlier attempt created instead of inserting a second one.
func (s *BoardService) Save(ctx context.Context, board *domain.VisionBoard, opts SaveOptions) (savedID string, err error) {
	defer s.observe("save", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if board == nil || board.OwnerID == "" {
		return "", domainerrors.Validation("board owner is required")
	}

	b := board.Clone()
	b.Name = normalize.BoardName(b.Name)
	if b.Name == "" {
		return "", domainerrors.Validation("board name is required")
	}
	if b.ItemCount() == 0 {
		return "", domainerrors.ErrBoardEmpty
	}

	now := s.now().UTC()
	b.UpdatedAt = now
	b.SavedAt = &now

	if b.IsSaved() {
		existing, err := s.owned(ctx, "save", b.OwnerID, b.ID)
		if err != nil {
			return "", err
		}
		return b.ID, s.update(ctx, existing, b)
	}

	// A previous attempt may already have landed.
	if existing, err := s.store.GetBoardByDraftKey(ctx, b.OwnerID, b.DraftKey); err == nil {
		b.ID = existing.ID
		return b.ID, s.update(ctx, existing, b)
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", domainerrors.PersistenceUnavailable("save", err)
	}

	b.ID, err = id.Generate(id.PrefixBoard)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "generate board id")
	}
	b.CreatedAt = now

	err = s.store.CreateBoard(ctx, b, opts.MaxSavedBoards)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrQuotaExceeded):
		s.metrics.QuotaDenied(string(domainerrors.CodeQuotaExceeded))
		return "", domainerrors.ErrQuotaExceeded
	case errors.Is(err, store.ErrAlreadyExists):
		// Lost the race against a concurrent retry of the same draft.
		existing, lookupErr := s.store.GetBoardByDraftKey(ctx, b.OwnerID, b.DraftKey)
		if lookupErr != nil {
			return "", domainerrors.PersistenceUnavailable("save", lookupErr)
		}
		b.ID = existing.ID
		return b.ID, s.update(ctx, existing, b)
	default:
		return "", domainerrors.PersistenceUnavailable("save", err)
	}

	s.metrics.BoardSaved(true)
	s.emit(sse.NewBoardSavedEvent(b, true))
	s.logger.Info("board created",
		"board_id", b.ID,
		"owner_id", b.OwnerID,
		"items", b.ItemCount(),
	)
	return b.ID, nil
}

func (s *BoardService) update(ctx context.Context, existing, b *domain.VisionBoard) error {
	b.CreatedAt = existing.CreatedAt
	b.DraftKey = existing.DraftKey

	if err := s.store.UpdateBoard(ctx, b); err != nil {
		return s.mapErr("save", b.ID, err)
	}

	s.metrics.BoardSaved(false)
	s.emit(sse.NewBoardSavedEvent(b, false))
	s.logger.Info("board updated",
		"board_id", b.ID,
		"owner_id", b.OwnerID,
		"items", b.ItemCount(),
	)
	return nil
}

// Load returns the owner's saved board.
func (s *BoardService) Load(ctx context.Context, ownerID, boardID string) (_ *domain.VisionBoard, err error) {
	defer s.observe("load", time.Now(), &err)
	return s.owned(ctx, "load", ownerID, boardID)
}

// Rename changes the name of a saved board.
func (s *BoardService) Rename(ctx context.Context, ownerID, boardID, newName string) (err error) {
	defer s.observe("rename", time.Now(), &err)

	name := normalize.BoardName(newName)
	if name == "" {
		return domainerrors.Validation("board name is required")
	}
	if _, err := s.owned(ctx, "rename", ownerID, boardID); err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.store.RenameBoard(ctx, boardID, name, now); err != nil {
		return s.mapErr("rename", boardID, err)
	}

	s.emit(sse.NewBoardRenamedEvent(ownerID, boardID, name, now))
	s.logger.Info("board renamed", "board_id", boardID, "owner_id", ownerID)
	return nil
}

// Delete removes a saved board.
func (s *BoardService) Delete(ctx context.Context, ownerID, boardID string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if _, err := s.owned(ctx, "delete", ownerID, boardID); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return s.mapErr("delete", boardID, err)
	}

	s.emit(sse.NewBoardDeletedEvent(ownerID, boardID, s.now().UTC()))
	s.logger.Info("board deleted", "board_id", boardID, "owner_id", ownerID)
	return nil
}

// List returns summaries of the owner's saved boards, most recent first.
func (s *BoardService) List(ctx context.Context, ownerID string) (_ []domain.BoardSummary, err error) {
	defer s.observe("list", time.Now(), &err)

	boards, err := s.store.ListBoards(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.PersistenceUnavailable("list", err)
	}
	return boards, nil
}

// FindDraft returns the ID of the board an earlier save of the draft created,
// or "" when no attempt with that draft key has landed.
func (s *BoardService) FindDraft(ctx context.Context, ownerID, draftKey string) (_ string, err error) {
	defer s.observe("find_draft", time.Now(), &err)

	if draftKey == "" {
		return "", nil
	}
	b, err := s.store.GetBoardByDraftKey(ctx, ownerID, draftKey)
	switch {
	case err == nil:
		return b.ID, nil
	case errors.Is(err, store.ErrNotFound):
		return "", nil
	default:
		return "", domainerrors.PersistenceUnavailable("find_draft", err)
	}
}

// Count returns how many boards the owner has saved.
func (s *BoardService) Count(ctx context.Context, ownerID string) (_ int, err error) {
	defer s.observe("count", time.Now(), &err)

	n, err := s.store.CountBoards(ctx, ownerID)
	if err != nil {
		return 0, domainerrors.PersistenceUnavailable("count", err)
	}
	return n, nil
}

// owned loads a board and hides boards of other owners behind NOT_FOUND.
func (s *BoardService) owned(ctx context.Context, op, ownerID, boardID string) (*domain.VisionBoard, error) {
	if boardID == "" {
		return nil, domainerrors.NotFound("board not found")
	}
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, s.mapErr(op, boardID, err)
	}
	if b.OwnerID != ownerID {
		s.logger.Warn("board access by non-owner", "board_id", boardID, "owner_id", ownerID)
		return nil, domainerrors.NotFoundf("board %s not found", boardID)
	}
	return b, nil
}

func (s *BoardService) mapErr(op, boardID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("board %s not found", boardID)
	}
	return domainerrors.PersistenceUnavailable(op, err)
}

func (s *BoardService) observe(op string, started time.Time, err *error) {
	var code string
	if *err != nil {
		code = string(domainerrors.CodeOf(*err))
	}
	s.metrics.ObserveGateway(op, started, code)
}

func (s *BoardService) emit(event sse.Event) {
	if s.sseManager != nil {
		s.sseManager.Emit(event)
	}
}
