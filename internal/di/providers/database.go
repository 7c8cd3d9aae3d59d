package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/roomcraft/visionboard/internal/config"
	"github.com/roomcraft/visionboard/internal/logger"
	"github.com/roomcraft/visionboard/internal/sse"
	"github.com/roomcraft/visionboard/internal/store/kv"
	"github.com/roomcraft/visionboard/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the board store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite board and product store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Data.DatabasePath()
	db, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ShareStoreHandle wraps the share link store with shutdown capability.
type ShareStoreHandle struct {
	*kv.Store
}

// Shutdown implements do.Shutdownable.
func (h *ShareStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideShareStore provides the Badger share link store.
func ProvideShareStore(i do.Injector) (*ShareStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Data.SharesPath()
	s, err := kv.New(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Share store initialized", "path", path)

	return &ShareStoreHandle{Store: s}, nil
}
