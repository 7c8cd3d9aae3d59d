// Package editor holds the in-memory board editing sessions: local layout
// edits, the save/load cycle against the board gateway, and the quota checks
// that gate saving and sharing.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/grid"
	"github.com/roomcraft/visionboard/internal/id"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/normalize"
	"github.com/roomcraft/visionboard/internal/quota"
	"github.com/roomcraft/visionboard/internal/service"
)

// ErrStaleResult marks the result of an operation for a board that stopped
// being the active one while the operation was in flight. Sessions drop such
// results; it never reaches callers.
var ErrStaleResult = errors.New("editor: result for a board that is no longer active")

// Gateway persists boards. *service.BoardService implements it.
type Gateway interface {
	Save(ctx context.Context, board *domain.VisionBoard, opts service.SaveOptions) (string, error)
	Load(ctx context.Context, ownerID, boardID string) (*domain.VisionBoard, error)
	Rename(ctx context.Context, ownerID, boardID, newName string) error
	Delete(ctx context.Context, ownerID, boardID string) error
	Count(ctx context.Context, ownerID string) (int, error)
	// FindDraft returns the ID of the board a save of the draft already
	// created, or "" if none landed.
	FindDraft(ctx context.Context, ownerID, draftKey string) (string, error)
}

// TierSource returns an owner's current subscription tier.
type TierSource interface {
	GetTier(ctx context.Context, ownerID string) (domain.SubscriptionTier, error)
}

// ProductResolver builds product lookups for budget totals.
type ProductResolver interface {
	Lookup(ctx context.Context) domain.ProductLookup
}

// Deps are the collaborators a session talks to.
type Deps struct {
	Gateway  Gateway
	Tiers    TierSource
	Products ProductResolver
	Canvas   grid.Canvas
	Logger   *slog.Logger
	Metrics  *metrics.Manager
}

// Session is one board being edited by one owner.
//
// Local edits take only mu and never wait on I/O. Save, Load, Rename, Delete
// and Share hold persistMu for their whole duration, so a load issued while a
// save is in flight waits for the save to settle. generation changes whenever
// the active board is replaced; an I/O result whose generation no longer
// matches is dropped. revision changes on every local edit and tells a
// finishing save whether the board moved on while it was in flight.
type Session struct {
	id      string
	ownerID string
	deps    Deps
	cell    grid.CellSize
	logger  *slog.Logger
	now     func() time.Time

	persistMu sync.Mutex

	mu         sync.Mutex
	board      *domain.VisionBoard
	state      State
	drag       *DragOverlay
	generation uint64
	revision   uint64

	lastUsed atomic.Int64 // unix nanos
}

// NewSession starts a session on an empty unsaved board.
func NewSession(ownerID string, deps Deps) (*Session, error) {
	if ownerID == "" {
		return nil, domainerrors.Validation("owner id is required")
	}
	if err := deps.Canvas.Validate(); err != nil {
		return nil, domainerrors.Validationf("invalid canvas: %v", err)
	}
	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Session{
		id:      sessionID,
		ownerID: ownerID,
		deps:    deps,
		cell:    deps.Canvas.CellSize(),
		logger:  logger.With("session_id", sessionID, "owner_id", ownerID),
		now:     time.Now,
		board:   domain.NewVisionBoard(ownerID),
		state:   StateEmpty,
	}
	s.touch()
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// OwnerID returns the owner the session belongs to.
func (s *Session) OwnerID() string { return s.ownerID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

// LastUsed returns when the session was last acted on.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// edited records a local change. Callers hold mu.
func (s *Session) edited() {
	s.revision++
	if s.state == StateSaving || s.state == StateLoadingOther {
		// The in-flight operation settles the state when it finishes.
		return
	}
	s.state = s.restingState()
}

// restingState is the state the local board implies when nothing is in
// flight and it differs from the persisted record. Callers hold mu.
func (s *Session) restingState() State {
	if !s.board.IsSaved() && s.board.ItemCount() == 0 {
		return StateEmpty
	}
	return StateDirty
}

// hasUnsavedChanges reports whether replacing the board would lose edits.
// Callers hold mu.
func (s *Session) hasUnsavedChanges() bool {
	return s.state == StateDirty || s.state == StateSaving
}

// pendingChanges reports whether the session holds edits that were never
// persisted, and the board they belong to.
func (s *Session) pendingChanges() (boardID string, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.ID, s.hasUnsavedChanges()
}

// AddItem places a product on the board at the snapped position, on top of
// every other item, with the default two-by-two cell footprint.
func (s *Session) AddItem(productID string, pos grid.Point) (domain.BoardItem, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.board.Place(productID, pos, domain.Size{}, s.cell)
	if err != nil {
		return domain.BoardItem{}, err
	}
	s.edited()
	return item, nil
}

// DragStart begins dragging an item.
func (s *Session) DragStart(itemID string) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.board.Item(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	s.drag = &DragOverlay{
		ItemID:  itemID,
		Origin:  item.Position,
		Current: item.Position,
		Snapped: item.Position,
	}
	return nil
}

// DragMove updates the drag overlay only. The board and state are untouched.
func (s *Session) DragMove(itemID string, raw grid.Point) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag == nil || s.drag.ItemID != itemID {
		return domainerrors.Conflict("no drag in progress for item")
	}
	s.drag.Current = raw
	s.drag.Snapped = grid.Snap(raw, s.cell)
	return nil
}

// DragEnd drops the item: the snapped position is committed and the overlay
// is cleared.
func (s *Session) DragEnd(itemID string, raw grid.Point) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag == nil || s.drag.ItemID != itemID {
		return domainerrors.Conflict("no drag in progress for item")
	}
	s.drag = nil
	return s.moveLocked(itemID, raw)
}

// Move commits a snapped position for the item and brings it to the front.
func (s *Session) Move(itemID string, raw grid.Point) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(itemID, raw)
}

func (s *Session) moveLocked(itemID string, raw grid.Point) error {
	if err := s.board.Move(itemID, raw, s.cell); err != nil {
		return err
	}
	s.edited()
	return nil
}

// Remove takes an item off the board.
func (s *Session) Remove(itemID string) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.board.Remove(itemID); err != nil {
		return err
	}
	if s.drag != nil && s.drag.ItemID == itemID {
		s.drag = nil
	}
	s.edited()
	return nil
}

// BringToFront raises the item above every other item.
func (s *Session) BringToFront(itemID string) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.board.BringToFront(itemID); err != nil {
		return err
	}
	s.edited()
	return nil
}

// Clear removes every item. A saved board keeps its identity.
func (s *Session) Clear() {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.board.Clear()
	s.drag = nil
	s.edited()
}

// New replaces the active board with an empty unsaved one. Unsaved changes
// are only dropped when discardChanges is set. An in-flight save of the old
// board still completes but no longer affects the session.
func (s *Session) New(discardChanges bool) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasUnsavedChanges() && !discardChanges {
		return domainerrors.ErrUnsavedChanges
	}
	s.replaceLocked(domain.NewVisionBoard(s.ownerID), StateEmpty)
	return nil
}

// replaceLocked swaps in a new active board. Callers hold mu.
func (s *Session) replaceLocked(b *domain.VisionBoard, state State) {
	s.board = b
	s.state = state
	s.drag = nil
	s.generation++
	s.revision++
}

// Save persists the board. name is required unless the board already has
// one; a non-empty name renames the board as part of the save.
//
// Creating a new saved board is checked against the owner's plan using a
// fresh tier and board count. A denied save never reaches the gateway. A
// failed save leaves every local item in place and the state Dirty; the user
// retries by saving again. A retry whose earlier attempt already landed
// updates that board and is not counted against the plan a second time.
func (s *Session) Save(ctx context.Context, name string) error {
	s.touch()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	err := s.save(ctx, name)
	if errors.Is(err, ErrStaleResult) {
		return nil
	}
	return err
}

func (s *Session) save(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.board.ItemCount() == 0 {
		s.mu.Unlock()
		return domainerrors.ErrBoardEmpty
	}
	snapshot := s.board.Clone()
	if n := normalize.BoardName(name); n != "" {
		snapshot.Name = n
	}
	if snapshot.Name == "" {
		s.mu.Unlock()
		return domainerrors.Validation("board name is required")
	}
	retry := !snapshot.IsSaved() && s.board.DraftKey != ""
	if !snapshot.IsSaved() && s.board.DraftKey == "" {
		key, err := id.Generate(id.PrefixDraft)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		// Kept on the board so a retry after a lost response reuses it.
		s.board.DraftKey = key
		snapshot.DraftKey = key
	}
	gen, rev := s.generation, s.revision
	s.mu.Unlock()

	if retry {
		landedID, err := s.deps.Gateway.FindDraft(ctx, s.ownerID, snapshot.DraftKey)
		if err != nil {
			return err
		}
		if landedID != "" {
			s.logger.Info("earlier save of draft landed", "board_id", landedID, "draft_key", snapshot.DraftKey)
			snapshot.ID = landedID
		}
	}

	tier, err := s.deps.Tiers.GetTier(ctx, s.ownerID)
	if err != nil {
		return err
	}
	count, err := s.deps.Gateway.Count(ctx, s.ownerID)
	if err != nil {
		return err
	}
	if decision := quota.CanCreateNewSavedBoard(tier, count, snapshot.IsSaved()); !decision.Allowed {
		s.deps.Metrics.QuotaDenied(string(decision.Reason))
		s.logger.Info("save denied by plan", "reason", decision.Reason, "tier", tier.Tier, "saved_boards", count)
		return decision.Err()
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrStaleResult
	}
	s.state = StateSaving
	s.mu.Unlock()

	savedID, err := s.deps.Gateway.Save(ctx, snapshot, service.SaveOptions{MaxSavedBoards: tier.Limits.MaxSavedBoards})

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("dropping save result for replaced board", "board_id", savedID)
		return ErrStaleResult
	}
	if err != nil {
		s.state = s.restingState()
		s.logger.Warn("board save failed", "board_id", snapshot.ID, "error", err)
		return err
	}

	now := s.now().UTC()
	s.board.ID = savedID
	s.board.Name = snapshot.Name
	s.board.SavedAt = &now
	s.board.UpdatedAt = now
	if s.revision == rev {
		s.state = StateSaved
	} else {
		s.state = StateDirty
	}
	s.logger.Info("board saved", "board_id", savedID, "items", snapshot.ItemCount(), "state", s.state)
	return nil
}

// Rename changes the name of the saved board. The new name shows
// immediately and is reverted if the gateway rejects it.
func (s *Session) Rename(ctx context.Context, newName string) error {
	s.touch()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	name := normalize.BoardName(newName)
	if name == "" {
		return domainerrors.Validation("board name is required")
	}

	s.mu.Lock()
	if !s.board.IsSaved() {
		s.mu.Unlock()
		return domainerrors.ErrBoardNotSaved
	}
	boardID, previous, gen := s.board.ID, s.board.Name, s.generation
	s.board.Name = name
	s.mu.Unlock()

	err := s.deps.Gateway.Rename(ctx, s.ownerID, boardID, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	if err != nil {
		if s.board.Name == name {
			s.board.Name = previous
		}
		return err
	}
	return nil
}

// Load replaces the active board with a saved one. With unsaved changes the
// load is refused unless discardChanges is set. On failure the current board
// stays active.
func (s *Session) Load(ctx context.Context, boardID string, discardChanges bool) error {
	s.touch()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	err := s.load(ctx, boardID, discardChanges)
	if errors.Is(err, ErrStaleResult) {
		return nil
	}
	return err
}

func (s *Session) load(ctx context.Context, boardID string, discardChanges bool) error {
	s.mu.Lock()
	if s.hasUnsavedChanges() && !discardChanges {
		s.mu.Unlock()
		return domainerrors.ErrUnsavedChanges
	}
	previous := s.state
	s.state = StateLoadingOther
	s.generation++
	gen, rev := s.generation, s.revision
	s.mu.Unlock()

	b, err := s.deps.Gateway.Load(ctx, s.ownerID, boardID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return ErrStaleResult
	}
	if err != nil {
		s.state = previous
		if s.revision != rev {
			// Edited while the load was in flight.
			s.state = s.restingState()
		}
		return err
	}
	s.replaceLocked(b, StateSaved)
	s.logger.Info("board loaded", "board_id", b.ID, "items", b.ItemCount())
	return nil
}

// Delete removes a saved board. Deleting the active board leaves the session
// on an empty unsaved board.
func (s *Session) Delete(ctx context.Context, boardID string) error {
	s.touch()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.deps.Gateway.Delete(ctx, s.ownerID, boardID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board.ID == boardID {
		s.replaceLocked(domain.NewVisionBoard(s.ownerID), StateEmpty)
	}
	return nil
}

// Share checks the owner's plan and builds the read-only payload from the
// persisted board. Unsaved local edits are not part of it.
func (s *Session) Share(ctx context.Context) (*domain.SharePayload, error) {
	s.touch()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	local := s.board.Clone()
	gen := s.generation
	s.mu.Unlock()

	tier, err := s.deps.Tiers.GetTier(ctx, s.ownerID)
	if err != nil {
		return nil, err
	}

	persisted := local
	if local.IsSaved() {
		persisted, err = s.deps.Gateway.Load(ctx, s.ownerID, local.ID)
		if err != nil {
			return nil, err
		}
	}

	if decision := quota.CanShare(tier, persisted); !decision.Allowed {
		return nil, decision.Err()
	}

	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale {
		return nil, domainerrors.Conflict("board changed while sharing")
	}

	var lookup domain.ProductLookup
	if s.deps.Products != nil {
		lookup = s.deps.Products.Lookup(ctx)
	}
	return domain.BuildSharePayload(persisted, lookup, s.deps.Canvas, s.now().UTC()), nil
}

// View returns a render snapshot including the budget total.
func (s *Session) View(ctx context.Context) SessionView {
	s.touch()
	s.mu.Lock()
	view := SessionView{
		SessionID: s.id,
		State:     s.state,
		Board:     s.board.Clone(),
		ItemCount: s.board.ItemCount(),
		Canvas:    s.deps.Canvas,
	}
	view.LastSaved = view.Board.SavedAt
	if s.drag != nil {
		d := *s.drag
		view.Drag = &d
	}
	s.mu.Unlock()

	var lookup domain.ProductLookup
	if s.deps.Products != nil {
		lookup = s.deps.Products.Lookup(ctx)
	}
	view.Budget = view.Board.TotalBudget(lookup)
	return view
}
