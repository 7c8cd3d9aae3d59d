package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
	"github.com/roomcraft/visionboard/internal/grid"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/sse"
	"github.com/roomcraft/visionboard/internal/store"
	"github.com/roomcraft/visionboard/internal/store/sqlite"
)

// setupBoardTest creates a board service over a temporary SQLite database.
func setupBoardTest(t *testing.T) (*BoardService, *sqlite.Store) {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return NewBoardService(s, nil, nil, slog.New(slog.DiscardHandler)), s
}

// boardWithItems builds an unsaved board holding n placed products.
func boardWithItems(t *testing.T, ownerID string, n int) *domain.VisionBoard {
	t.Helper()

	b := domain.NewVisionBoard(ownerID)
	b.Name = "Living Room"
	cell := grid.DefaultCanvas().CellSize()
	for i := range n {
		_, err := b.Place("prod-"+string(rune('a'+i)), grid.Point{X: float64(i) * cell.Width, Y: 0}, domain.Size{}, cell)
		require.NoError(t, err)
	}
	return b
}

func TestBoardService_SaveCreatesThenUpdates(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	b := boardWithItems(t, "owner-1", 2)
	boardID, err := svc.Save(ctx, b, SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.NoError(t, err)
	assert.NotEmpty(t, boardID)
	assert.Empty(t, b.ID, "caller's board must not be modified")

	loaded, err := svc.Load(ctx, "owner-1", boardID)
	require.NoError(t, err)
	assert.Equal(t, "Living Room", loaded.Name)
	assert.Len(t, loaded.Items, 2)
	require.NotNil(t, loaded.SavedAt)

	// Same id, one more item: still one record.
	b.ID = boardID
	cell := grid.DefaultCanvas().CellSize()
	_, err = b.Place("prod-z", grid.Point{}, domain.Size{}, cell)
	require.NoError(t, err)

	again, err := svc.Save(ctx, b, SaveOptions{MaxSavedBoards: 1})
	require.NoError(t, err)
	assert.Equal(t, boardID, again)

	count, err := svc.Count(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err = svc.Load(ctx, "owner-1", boardID)
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 3)
}

func TestBoardService_SaveTwiceSameContentIsOneRecord(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	b := boardWithItems(t, "owner-1", 1)
	boardID, err := svc.Save(ctx, b, SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.NoError(t, err)

	b.ID = boardID
	_, err = svc.Save(ctx, b, SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.NoError(t, err)

	list, err := svc.List(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBoardService_RetriedFirstSaveUsesDraftKey(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	b := boardWithItems(t, "owner-1", 1)
	b.DraftKey = "draft-abc"

	first, err := svc.Save(ctx, b, SaveOptions{MaxSavedBoards: 1})
	require.NoError(t, err)

	// The client never saw the id and retries the same unsaved board. The
	// quota of one would reject a second insert.
	second, err := svc.Save(ctx, b, SaveOptions{MaxSavedBoards: 1})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := svc.Count(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoardService_FindDraft(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	got, err := svc.FindDraft(ctx, "owner-1", "draft-abc")
	require.NoError(t, err)
	assert.Empty(t, got)

	b := boardWithItems(t, "owner-1", 1)
	b.DraftKey = "draft-abc"
	savedID, err := svc.Save(ctx, b, SaveOptions{MaxSavedBoards: 1})
	require.NoError(t, err)

	got, err = svc.FindDraft(ctx, "owner-1", "draft-abc")
	require.NoError(t, err)
	assert.Equal(t, savedID, got)

	got, err = svc.FindDraft(ctx, "owner-2", "draft-abc")
	require.NoError(t, err)
	assert.Empty(t, got, "drafts are owner scoped")

	got, err = svc.FindDraft(ctx, "owner-1", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoardService_ConcurrentRetriesOfSameDraft(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	b := boardWithItems(t, "owner-1", 1)
	b.DraftKey = "draft-race"

	const attempts = 5
	ids := make([]string, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = svc.Save(ctx, b, SaveOptions{MaxSavedBoards: domain.Unlimited})
		}()
	}
	wg.Wait()

	for i := range attempts {
		if errs[i] != nil {
			// SQLite may report the writer as busy; that surfaces as a
			// retryable persistence error, never as a duplicate.
			assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(errs[i]))
			continue
		}
		assert.Equal(t, ids[0], ids[i])
	}

	count, err := svc.Count(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoardService_SaveEnforcesQuotaAtInsert(t *testing.T) {
	svc, _ := setupBoardTest(t)
	m := metrics.NewManager()
	svc.metrics = m
	ctx := context.Background()

	_, err := svc.Save(ctx, boardWithItems(t, "owner-1", 1), SaveOptions{MaxSavedBoards: 1})
	require.NoError(t, err)

	_, err = svc.Save(ctx, boardWithItems(t, "owner-1", 1), SaveOptions{MaxSavedBoards: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrQuotaExceeded))

	// Another owner is unaffected.
	_, err = svc.Save(ctx, boardWithItems(t, "owner-2", 1), SaveOptions{MaxSavedBoards: 1})
	require.NoError(t, err)

	count, err := svc.Count(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	denials, err := testutil.GatherAndCount(m.Registry(), "visionboard_quota_denials_total")
	require.NoError(t, err)
	assert.Equal(t, 1, denials)
}

func TestBoardService_SaveValidation(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		board func() *domain.VisionBoard
		code  domainerrors.Code
	}{
		{
			name:  "missing owner",
			board: func() *domain.VisionBoard { return boardWithItems(t, "", 1) },
			code:  domainerrors.CodeValidation,
		},
		{
			name: "blank name",
			board: func() *domain.VisionBoard {
				b := boardWithItems(t, "owner-1", 1)
				b.Name = "   "
				return b
			},
			code: domainerrors.CodeValidation,
		},
		{
			name:  "empty board",
			board: func() *domain.VisionBoard { return boardWithItems(t, "owner-1", 0) },
			code:  domainerrors.CodeBoardEmpty,
		},
		{
			name: "unknown id",
			board: func() *domain.VisionBoard {
				b := boardWithItems(t, "owner-1", 1)
				b.ID = "board-missing"
				return b
			},
			code: domainerrors.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(ctx, tt.board(), SaveOptions{MaxSavedBoards: domain.Unlimited})
			assert.Equal(t, tt.code, domainerrors.CodeOf(err))
		})
	}
}

func TestBoardService_OwnershipHidesOtherBoards(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	boardID, err := svc.Save(ctx, boardWithItems(t, "owner-1", 1), SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.NoError(t, err)

	_, err = svc.Load(ctx, "intruder", boardID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	err = svc.Rename(ctx, "intruder", boardID, "Mine now")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	err = svc.Delete(ctx, "intruder", boardID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	stolen := boardWithItems(t, "intruder", 1)
	stolen.ID = boardID
	_, err = svc.Save(ctx, stolen, SaveOptions{MaxSavedBoards: domain.Unlimited})
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	loaded, err := svc.Load(ctx, "owner-1", boardID)
	require.NoError(t, err)
	assert.Equal(t, "Living Room", loaded.Name)
}

func TestBoardService_RenameAndDelete(t *testing.T) {
	svc, _ := setupBoardTest(t)
	ctx := context.Background()

	boardID, err := svc.Save(ctx, boardWithItems(t, "owner-1", 1), SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.NoError(t, err)

	require.NoError(t, svc.Rename(ctx, "owner-1", boardID, "  Cozy   Den "))
	loaded, err := svc.Load(ctx, "owner-1", boardID)
	require.NoError(t, err)
	assert.Equal(t, "Cozy Den", loaded.Name)

	err = svc.Rename(ctx, "owner-1", boardID, " ")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	require.NoError(t, svc.Delete(ctx, "owner-1", boardID))
	_, err = svc.Load(ctx, "owner-1", boardID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	err = svc.Delete(ctx, "owner-1", boardID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestBoardService_EmitsEventsToOwner(t *testing.T) {
	svc, _ := setupBoardTest(t)
	manager := sse.NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Start(ctx)
	svc.sseManager = manager

	client, err := manager.Connect("owner-1")
	require.NoError(t, err)

	boardID, err := svc.Save(ctx, boardWithItems(t, "owner-1", 1), SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.NoError(t, err)
	require.NoError(t, svc.Rename(ctx, "owner-1", boardID, "Den"))
	require.NoError(t, svc.Delete(ctx, "owner-1", boardID))

	var got []sse.EventType
	for len(got) < 3 {
		select {
		case e := <-client.EventChan:
			got = append(got, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("received %v, want three events", got)
		}
	}
	assert.Equal(t, []sse.EventType{sse.EventBoardSaved, sse.EventBoardRenamed, sse.EventBoardDeleted}, got)
}

// failingBoardStore simulates an unreachable database.
type failingBoardStore struct {
	store.BoardStore
}

var errDiskGone = errors.New("disk I/O error")

func (failingBoardStore) GetBoard(context.Context, string) (*domain.VisionBoard, error) {
	return nil, errDiskGone
}

func (failingBoardStore) GetBoardByDraftKey(context.Context, string, string) (*domain.VisionBoard, error) {
	return nil, store.ErrNotFound
}

func (failingBoardStore) CreateBoard(context.Context, *domain.VisionBoard, int) error {
	return errDiskGone
}

func (failingBoardStore) ListBoards(context.Context, string) ([]domain.BoardSummary, error) {
	return nil, errDiskGone
}

func (failingBoardStore) CountBoards(context.Context, string) (int, error) {
	return 0, errDiskGone
}

func TestBoardService_StorageFailureIsRetryable(t *testing.T) {
	m := metrics.NewManager()
	svc := NewBoardService(failingBoardStore{}, nil, m, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	_, err := svc.Save(ctx, boardWithItems(t, "owner-1", 1), SaveOptions{MaxSavedBoards: domain.Unlimited})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))
	assert.True(t, domainerrors.CodeOf(err).Retryable())
	assert.ErrorIs(t, err, errDiskGone)

	_, err = svc.Load(ctx, "owner-1", "board-1")
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))

	_, err = svc.List(ctx, "owner-1")
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))

	_, err = svc.Count(ctx, "owner-1")
	assert.Equal(t, domainerrors.CodePersistenceUnavailable, domainerrors.CodeOf(err))

	failures, err := testutil.GatherAndCount(m.Registry(), "visionboard_gateway_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 4, failures)
}
