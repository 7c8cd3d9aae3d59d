package providers

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"

	"github.com/roomcraft/visionboard/internal/catalog"
	"github.com/roomcraft/visionboard/internal/config"
	"github.com/roomcraft/visionboard/internal/editor"
	"github.com/roomcraft/visionboard/internal/logger"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/ratelimit"
	"github.com/roomcraft/visionboard/internal/service"
	"github.com/roomcraft/visionboard/internal/subscription"
)

// Public share lookups are throttled per client IP.
const (
	publicLookupsPerMinute = 120
	publicLookupBurst      = 30
)

// RedisHandle wraps the Redis client with shutdown capability.
type RedisHandle struct {
	redis.UniversalClient
}

// Shutdown implements do.Shutdownable.
func (h *RedisHandle) Shutdown() error {
	return h.Close()
}

// ProvideRedis provides the Redis client backing subscription tiers.
// The server starts even when Redis is down; tier reads then fail as
// SERVICE_UNAVAILABLE and /health reports it.
func ProvideRedis(i do.Injector) (*RedisHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
	} else {
		log.Info("Redis connected", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	}

	return &RedisHandle{UniversalClient: client}, nil
}

// ProvideSubscriptionService provides the subscription tier reader.
func ProvideSubscriptionService(i do.Injector) (*subscription.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	redisHandle := do.MustInvoke[*RedisHandle](i)

	return subscription.NewService(redisHandle.UniversalClient, cfg.Tiers, cfg.Redis.Timeout, log.Logger), nil
}

// ProvideMetrics provides the Prometheus metrics manager, or nil when
// metrics are disabled.
func ProvideMetrics(i do.Injector) (*metrics.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	return metrics.NewManager(metrics.WithRuntimeCollectors()), nil
}

// ProvideBoardService provides the board persistence gateway.
func ProvideBoardService(i do.Injector) (*service.BoardService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBoardService(storeHandle.Store, sseHandle.Manager, m, log.Logger), nil
}

// ShareLimiterHandle wraps the per-owner publish limiter with shutdown capability.
type ShareLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *ShareLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideShareLimiter provides the per-owner share publish limiter.
func ProvideShareLimiter(i do.Injector) (*ShareLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &ShareLimiterHandle{
		KeyedRateLimiter: ratelimit.PerMinute(cfg.Share.PublishPerMinute, cfg.Share.PublishBurst),
	}, nil
}

// PublicLimiterHandle wraps the per-IP public lookup limiter with shutdown capability.
type PublicLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *PublicLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvidePublicLimiter provides the per-IP limiter for shared board lookups.
func ProvidePublicLimiter(i do.Injector) (*PublicLimiterHandle, error) {
	return &PublicLimiterHandle{
		KeyedRateLimiter: ratelimit.PerMinute(publicLookupsPerMinute, publicLookupBurst),
	}, nil
}

// ProvideShareService provides the share publishing service.
func ProvideShareService(i do.Injector) (*service.ShareService, error) {
	shareHandle := do.MustInvoke[*ShareStoreHandle](i)
	limiter := do.MustInvoke[*ShareLimiterHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewShareService(shareHandle.Store, limiter.KeyedRateLimiter, sseHandle.Manager, m, log.Logger), nil
}

// EditorManagerHandle wraps the editor session manager and its janitor.
type EditorManagerHandle struct {
	*editor.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EditorManagerHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideEditorManager provides the editor session manager and starts its
// idle-session janitor.
func ProvideEditorManager(i do.Injector) (*EditorManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	boards := do.MustInvoke[*service.BoardService](i)
	subs := do.MustInvoke[*subscription.Service](i)
	products := do.MustInvoke[*catalog.Catalog](i)
	m := do.MustInvoke[*metrics.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := editor.NewManager(editor.Deps{
		Gateway:  boards,
		Tiers:    subs,
		Products: products,
		Canvas:   cfg.Canvas,
	}, cfg.Editor.SessionTTL, m, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("Editor session manager started", "session_ttl", cfg.Editor.SessionTTL)

	return &EditorManagerHandle{Manager: manager, cancel: cancel}, nil
}
