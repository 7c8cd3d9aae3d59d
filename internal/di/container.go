// Package di provides dependency injection configuration for the vision board server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/roomcraft/visionboard/internal/auth"
	"github.com/roomcraft/visionboard/internal/catalog"
	"github.com/roomcraft/visionboard/internal/config"
	"github.com/roomcraft/visionboard/internal/di/providers"
	"github.com/roomcraft/visionboard/internal/logger"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/service"
	"github.com/roomcraft/visionboard/internal/subscription"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideSSEManager)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideShareStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideRedis)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideSubscriptionService)
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideBoardService)
	do.Provide(injector, providers.ProvideShareLimiter)
	do.Provide(injector, providers.ProvideShareService)
	do.Provide(injector, providers.ProvideEditorManager)

	// Server
	do.Provide(injector, providers.ProvidePublicLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Manager](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.ShareStoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.RedisHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*subscription.Service](injector)
	_ = do.MustInvoke[*catalog.Catalog](injector)
	_ = do.MustInvoke[*service.BoardService](injector)
	_ = do.MustInvoke[*service.ShareService](injector)
	_ = do.MustInvoke[*providers.EditorManagerHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
