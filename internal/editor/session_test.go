package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/grid"
	"github.com/roomcraft/visionboard/internal/service"
)

// fakeGateway is an in-memory board gateway. When saveGate is set, Save
// blocks until a value is sent on it; loadGate does the same for Load.
type fakeGateway struct {
	mu        sync.Mutex
	boards    map[string]*domain.VisionBoard
	nextID    int
	saves     int
	saveGate  chan struct{}
	saveErr   error
	renameErr error
	loadErr   error
	saveStart chan struct{}
	loadStart chan struct{}
	loadGate  chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{boards: make(map[string]*domain.VisionBoard)}
}

func (g *fakeGateway) Save(_ context.Context, b *domain.VisionBoard, opts service.SaveOptions) (string, error) {
	if g.saveStart != nil {
		g.saveStart <- struct{}{}
	}
	if g.saveGate != nil {
		<-g.saveGate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.saveErr != nil {
		return "", g.saveErr
	}

	stored := b.Clone()
	if stored.ID == "" {
		if opts.MaxSavedBoards >= 0 && g.countLocked(b.OwnerID) >= opts.MaxSavedBoards {
			return "", domainerrors.ErrQuotaExceeded
		}
		g.nextID++
		stored.ID = fmt.Sprintf("board-%d", g.nextID)
	}
	g.boards[stored.ID] = stored
	return stored.ID, nil
}

func (g *fakeGateway) Load(_ context.Context, ownerID, boardID string) (*domain.VisionBoard, error) {
	if g.loadStart != nil {
		g.loadStart <- struct{}{}
	}
	if g.loadGate != nil {
		<-g.loadGate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	b, ok := g.boards[boardID]
	if !ok || b.OwnerID != ownerID {
		return nil, domainerrors.NotFound("board not found")
	}
	return b.Clone(), nil
}

func (g *fakeGateway) Rename(_ context.Context, ownerID, boardID, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.renameErr != nil {
		return g.renameErr
	}
	b, ok := g.boards[boardID]
	if !ok || b.OwnerID != ownerID {
		return domainerrors.NotFound("board not found")
	}
	b.Name = name
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, ownerID, boardID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.boards[boardID]
	if !ok || b.OwnerID != ownerID {
		return domainerrors.NotFound("board not found")
	}
	delete(g.boards, boardID)
	return nil
}

func (g *fakeGateway) Count(_ context.Context, ownerID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.countLocked(ownerID), nil
}

func (g *fakeGateway) FindDraft(_ context.Context, ownerID, draftKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, b := range g.boards {
		if b.OwnerID == ownerID && draftKey != "" && b.DraftKey == draftKey {
			return id, nil
		}
	}
	return "", nil
}

func (g *fakeGateway) countLocked(ownerID string) int {
	n := 0
	for _, b := range g.boards {
		if b.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (g *fakeGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

type fakeTiers struct {
	tier domain.Tier
	err  error
}

func (f *fakeTiers) GetTier(context.Context, string) (domain.SubscriptionTier, error) {
	if f.err != nil {
		return domain.SubscriptionTier{}, f.err
	}
	return domain.SubscriptionTier{Tier: f.tier, Limits: domain.DefaultTierLimits()[f.tier]}, nil
}

type fakeProducts map[string]domain.Product

func (f fakeProducts) Lookup(context.Context) domain.ProductLookup {
	return func(id string) (domain.Product, bool) {
		p, ok := f[id]
		return p, ok
	}
}

var testProducts = fakeProducts{
	"sofa":  {ID: "sofa", Name: "Velvet Sofa", Price: decimal.RequireFromString("899.00"), Marketplace: domain.MarketplaceAmazon},
	"lamp":  {ID: "lamp", Name: "Arc Lamp", Price: decimal.RequireFromString("120.50"), Marketplace: domain.MarketplaceEtsy},
	"plant": {ID: "plant", Name: "Fiddle Leaf", Price: decimal.RequireFromString("45.00"), Marketplace: domain.MarketplaceEtsy},
}

type fixture struct {
	session *Session
	gateway *fakeGateway
	tiers   *fakeTiers
}

func newFixture(t *testing.T, tier domain.Tier) *fixture {
	t.Helper()

	f := &fixture{gateway: newFakeGateway(), tiers: &fakeTiers{tier: tier}}
	s, err := NewSession("owner-1", Deps{
		Gateway:  f.gateway,
		Tiers:    f.tiers,
		Products: testProducts,
		Canvas:   grid.DefaultCanvas(),
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	f.session = s
	return f
}

func (f *fixture) add(t *testing.T, productID string, x, y float64) domain.BoardItem {
	t.Helper()
	item, err := f.session.AddItem(productID, grid.Point{X: x, Y: y})
	require.NoError(t, err)
	return item
}

func TestNewSession_StartsEmpty(t *testing.T) {
	f := newFixture(t, domain.TierFree)

	assert.Equal(t, StateEmpty, f.session.State())
	view := f.session.View(context.Background())
	assert.Equal(t, 0, view.ItemCount)
	assert.True(t, view.Budget.Total.IsZero())

	_, err := NewSession("", Deps{Canvas: grid.DefaultCanvas()})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestLocalEdits_StateTransitions(t *testing.T) {
	f := newFixture(t, domain.TierFree)

	item := f.add(t, "sofa", 130, 95)
	assert.Equal(t, StateDirty, f.session.State())
	cell := grid.DefaultCanvas().CellSize()
	assert.Equal(t, grid.Snap(grid.Point{X: 130, Y: 95}, cell), item.Position)

	require.NoError(t, f.session.Remove(item.ID))
	assert.Equal(t, StateEmpty, f.session.State(), "unsaved board with no items is empty")

	f.add(t, "lamp", 0, 0)
	f.session.Clear()
	assert.Equal(t, StateEmpty, f.session.State())

	err := f.session.Remove("item-missing")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestBringToFront(t *testing.T) {
	f := newFixture(t, domain.TierFree)

	a := f.add(t, "sofa", 0, 0)
	f.add(t, "lamp", 0, 0)
	f.add(t, "plant", 0, 0)

	require.NoError(t, f.session.BringToFront(a.ID))
	view := f.session.View(context.Background())

	var top domain.BoardItem
	for _, it := range view.Board.Items {
		if it.ZIndex >= top.ZIndex {
			top = it
		}
	}
	assert.Equal(t, a.ID, top.ID)
}

func TestDrag_OverlayIsEphemeral(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	item := f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Lounge"))
	require.Equal(t, StateSaved, f.session.State())

	require.NoError(t, f.session.DragStart(item.ID))
	require.NoError(t, f.session.DragMove(item.ID, grid.Point{X: 310, Y: 12}))

	view := f.session.View(ctx)
	require.NotNil(t, view.Drag)
	assert.Equal(t, grid.Point{X: 310, Y: 12}, view.Drag.Current)
	assert.Equal(t, StateSaved, view.State, "drag moves never dirty the board")
	got, _ := view.Board.Item(item.ID)
	assert.Equal(t, item.Position, got.Position)

	require.NoError(t, f.session.DragEnd(item.ID, grid.Point{X: 310, Y: 12}))
	view = f.session.View(ctx)
	assert.Nil(t, view.Drag)
	assert.Equal(t, StateDirty, view.State)
	got, _ = view.Board.Item(item.ID)
	cell := grid.DefaultCanvas().CellSize()
	assert.Equal(t, grid.Snap(grid.Point{X: 310, Y: 12}, cell), got.Position)

	err := f.session.DragMove(item.ID, grid.Point{})
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))
}

func TestSave_RequiresItemsAndName(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	err := f.session.Save(ctx, "Empty")
	assert.Equal(t, domainerrors.CodeBoardEmpty, domainerrors.CodeOf(err))

	f.add(t, "sofa", 0, 0)
	err = f.session.Save(ctx, "   ")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	assert.Equal(t, 0, f.gateway.saveCount())

	require.NoError(t, f.session.Save(ctx, "Living Room"))
	assert.Equal(t, StateSaved, f.session.State())

	// Named boards save without a new name.
	f.add(t, "lamp", 0, 0)
	require.NoError(t, f.session.Save(ctx, ""))
	view := f.session.View(ctx)
	assert.Equal(t, "Living Room", view.Board.Name)
	assert.Equal(t, StateSaved, view.State)
	assert.NotNil(t, view.LastSaved)
}

func TestSave_QuotaDeniedNeverReachesGateway(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	ctx := context.Background()

	// The free plan's single slot is already used.
	f.gateway.boards["board-old"] = &domain.VisionBoard{ID: "board-old", OwnerID: "owner-1", Name: "Old"}

	f.add(t, "sofa", 0, 0)
	err := f.session.Save(ctx, "Second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrQuotaExceeded))
	assert.Equal(t, 0, f.gateway.saveCount())
	assert.Equal(t, StateDirty, f.session.State())
	assert.Equal(t, 1, f.session.View(ctx).ItemCount)
}

func TestSave_UpdatingExistingIgnoresQuota(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	ctx := context.Background()

	f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Only Board"))

	// At the free limit now; updates must still go through.
	f.add(t, "lamp", 0, 0)
	require.NoError(t, f.session.Save(ctx, ""))
	assert.Equal(t, 2, f.gateway.saveCount())
	assert.Equal(t, StateSaved, f.session.State())
}

func TestSave_FailureKeepsLocalItems(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	f.add(t, "sofa", 0, 0)
	f.add(t, "lamp", 120, 0)
	f.gateway.saveErr = domainerrors.PersistenceUnavailable("save", errors.New("connection reset"))

	err := f.session.Save(ctx, "Den")
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))
	assert.Equal(t, StateDirty, f.session.State())
	view := f.session.View(ctx)
	assert.Equal(t, 2, view.ItemCount)
	assert.False(t, view.Board.IsSaved())
	draftKey := view.Board.DraftKey
	assert.NotEmpty(t, draftKey)

	// The user retries by saving again; the same draft key is reused.
	f.gateway.saveErr = nil
	require.NoError(t, f.session.Save(ctx, "Den"))
	assert.Equal(t, StateSaved, f.session.State())
	assert.Equal(t, draftKey, f.session.View(ctx).Board.DraftKey)
}

func TestSave_SubscriptionUnavailable(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	f.tiers.err = domainerrors.ServiceUnavailable("subscription", errors.New("dial tcp: refused"))

	f.add(t, "sofa", 0, 0)
	err := f.session.Save(context.Background(), "Den")
	assert.Equal(t, domainerrors.CodeServiceUnavailable, domainerrors.CodeOf(err))
	assert.Equal(t, 0, f.gateway.saveCount())
	assert.Equal(t, StateDirty, f.session.State())
}

func TestSave_EditDuringFlightEndsDirty(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()
	f.gateway.saveStart = make(chan struct{})
	f.gateway.saveGate = make(chan struct{})

	f.add(t, "sofa", 0, 0)

	done := make(chan error, 1)
	go func() { done <- f.session.Save(ctx, "Nook") }()

	<-f.gateway.saveStart
	assert.Equal(t, StateSaving, f.session.State())

	// Local edits never wait on the in-flight save.
	f.add(t, "plant", 240, 0)
	assert.Equal(t, StateSaving, f.session.State())

	close(f.gateway.saveGate)
	require.NoError(t, <-done)

	view := f.session.View(ctx)
	assert.Equal(t, StateDirty, view.State)
	assert.True(t, view.Board.IsSaved())
	assert.Equal(t, 2, view.ItemCount)
}

func TestLoad_RequiresConfirmationWhenDirty(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	f.gateway.boards["board-9"] = &domain.VisionBoard{
		ID: "board-9", OwnerID: "owner-1", Name: "Bedroom",
		Items: []domain.BoardItem{{ID: "item-a", ProductID: "lamp"}},
	}

	f.add(t, "sofa", 0, 0)
	err := f.session.Load(ctx, "board-9", false)
	assert.True(t, errors.Is(err, domainerrors.ErrUnsavedChanges))
	assert.Equal(t, StateDirty, f.session.State())

	require.NoError(t, f.session.Load(ctx, "board-9", true))
	view := f.session.View(ctx)
	assert.Equal(t, StateSaved, view.State)
	assert.Equal(t, "Bedroom", view.Board.Name)
	assert.Equal(t, "120.5", view.Budget.Total.String())
}

func TestLoad_FailureKeepsCurrentBoard(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Keep"))

	err := f.session.Load(ctx, "board-missing", false)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	view := f.session.View(ctx)
	assert.Equal(t, StateSaved, view.State)
	assert.Equal(t, "Keep", view.Board.Name)
}

func TestLoad_EditDuringFailedLoadStaysDirty(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Keep"))
	f.gateway.boards["board-9"] = &domain.VisionBoard{ID: "board-9", OwnerID: "owner-1", Name: "Other"}

	f.gateway.loadStart = make(chan struct{})
	f.gateway.loadGate = make(chan struct{})
	f.gateway.loadErr = domainerrors.PersistenceUnavailable("load", errors.New("timeout"))

	loaded := make(chan error, 1)
	go func() { loaded <- f.session.Load(ctx, "board-x", false) }()
	<-f.gateway.loadStart
	assert.Equal(t, StateLoadingOther, f.session.State())

	f.add(t, "lamp", 200, 0)
	close(f.gateway.loadGate)
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(<-loaded))

	view := f.session.View(ctx)
	assert.Equal(t, StateDirty, view.State)
	assert.Equal(t, 2, view.ItemCount)

	// The new item is not dropped by a load the user never confirmed.
	f.gateway.loadStart, f.gateway.loadGate, f.gateway.loadErr = nil, nil, nil
	err := f.session.Load(ctx, "board-9", false)
	assert.True(t, errors.Is(err, domainerrors.ErrUnsavedChanges))
	assert.Equal(t, 2, f.session.View(ctx).ItemCount)
}

func TestLoad_FailureWithoutEditsRestoresState(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Keep"))
	f.gateway.loadErr = domainerrors.PersistenceUnavailable("load", errors.New("timeout"))

	err := f.session.Load(ctx, "board-9", false)
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))
	assert.Equal(t, StateSaved, f.session.State())
}

func TestLoad_WaitsForInFlightSave(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()
	f.gateway.saveStart = make(chan struct{})
	f.gateway.saveGate = make(chan struct{})

	f.gateway.boards["board-9"] = &domain.VisionBoard{ID: "board-9", OwnerID: "owner-1", Name: "Other", Items: []domain.BoardItem{}}
	f.add(t, "sofa", 0, 0)

	saved := make(chan error, 1)
	go func() { saved <- f.session.Save(ctx, "First") }()
	<-f.gateway.saveStart

	loaded := make(chan error, 1)
	go func() { loaded <- f.session.Load(ctx, "board-9", false) }()

	select {
	case <-loaded:
		t.Fatal("load finished while a save was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.gateway.saveGate)
	require.NoError(t, <-saved)
	require.NoError(t, <-loaded)

	assert.Equal(t, "Other", f.session.View(ctx).Board.Name)
	n, err := f.gateway.Count(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNew_DropsStaleSaveResult(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()
	f.gateway.saveStart = make(chan struct{})
	f.gateway.saveGate = make(chan struct{})

	f.add(t, "sofa", 0, 0)

	saved := make(chan error, 1)
	go func() { saved <- f.session.Save(ctx, "Abandoned") }()
	<-f.gateway.saveStart

	err := f.session.New(false)
	assert.True(t, errors.Is(err, domainerrors.ErrUnsavedChanges))
	require.NoError(t, f.session.New(true))

	close(f.gateway.saveGate)
	require.NoError(t, <-saved, "stale results are dropped silently")

	view := f.session.View(ctx)
	assert.Equal(t, StateEmpty, view.State)
	assert.False(t, view.Board.IsSaved())
	assert.Equal(t, 0, view.ItemCount)
}

func TestRename(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	err := f.session.Rename(ctx, "Nope")
	assert.True(t, errors.Is(err, domainerrors.ErrBoardNotSaved))

	f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Before"))
	require.NoError(t, f.session.Rename(ctx, "After"))
	assert.Equal(t, "After", f.session.View(ctx).Board.Name)
	assert.Equal(t, StateSaved, f.session.State())

	f.gateway.renameErr = domainerrors.PersistenceUnavailable("rename", errors.New("timeout"))
	err = f.session.Rename(ctx, "Failed")
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))
	assert.Equal(t, "After", f.session.View(ctx).Board.Name, "optimistic rename is reverted")
}

func TestDelete(t *testing.T) {
	f := newFixture(t, domain.TierPro)
	ctx := context.Background()

	f.gateway.boards["board-other"] = &domain.VisionBoard{ID: "board-other", OwnerID: "owner-1", Name: "Other"}

	f.add(t, "sofa", 0, 0)
	require.NoError(t, f.session.Save(ctx, "Active"))
	activeID := f.session.View(ctx).Board.ID

	// Deleting another board leaves the active one alone.
	require.NoError(t, f.session.Delete(ctx, "board-other"))
	assert.Equal(t, StateSaved, f.session.State())

	require.NoError(t, f.session.Delete(ctx, activeID))
	view := f.session.View(ctx)
	assert.Equal(t, StateEmpty, view.State)
	assert.False(t, view.Board.IsSaved())

	err := f.session.Delete(ctx, activeID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestShare(t *testing.T) {
	ctx := context.Background()

	t.Run("empty board is denied on every plan", func(t *testing.T) {
		f := newFixture(t, domain.TierStudio)
		_, err := f.session.Share(ctx)
		assert.True(t, errors.Is(err, domainerrors.ErrBoardEmpty))
	})

	t.Run("free plan cannot share", func(t *testing.T) {
		f := newFixture(t, domain.TierFree)
		f.add(t, "sofa", 0, 0)
		require.NoError(t, f.session.Save(ctx, "Mine"))
		_, err := f.session.Share(ctx)
		assert.True(t, errors.Is(err, domainerrors.ErrSharingNotPermitted))
	})

	t.Run("unsaved board is denied", func(t *testing.T) {
		f := newFixture(t, domain.TierPro)
		f.add(t, "sofa", 0, 0)
		_, err := f.session.Share(ctx)
		assert.True(t, errors.Is(err, domainerrors.ErrBoardNotSaved))
	})

	t.Run("payload comes from the persisted board", func(t *testing.T) {
		f := newFixture(t, domain.TierPro)
		f.add(t, "sofa", 0, 0)
		f.add(t, "lamp", 240, 0)
		require.NoError(t, f.session.Save(ctx, "Shared Den"))

		// Unsaved edit: not part of the share.
		f.add(t, "plant", 480, 0)

		payload, err := f.session.Share(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Shared Den", payload.BoardName)
		assert.Equal(t, f.session.View(ctx).Board.ID, payload.BoardID)
		assert.Len(t, payload.Items, 2)
		assert.Equal(t, "1019.5", payload.TotalBudget.String())
		for _, it := range payload.Items {
			assert.NotNil(t, it.Product)
		}
	})
}

func TestView_FlagsUnresolvedProducts(t *testing.T) {
	f := newFixture(t, domain.TierPro)

	f.add(t, "sofa", 0, 0)
	gone := f.add(t, "discontinued", 0, 0)

	view := f.session.View(context.Background())
	assert.Equal(t, "899", view.Budget.Total.String())
	assert.True(t, view.Unresolved(gone.ID))
	assert.Equal(t, 2, view.ItemCount)
}

func TestView_IsASnapshot(t *testing.T) {
	f := newFixture(t, domain.TierPro)

	f.add(t, "sofa", 0, 0)
	view := f.session.View(context.Background())
	view.Board.Items[0].ProductID = "tampered"

	again := f.session.View(context.Background())
	assert.Equal(t, "sofa", again.Board.Items[0].ProductID)
}
