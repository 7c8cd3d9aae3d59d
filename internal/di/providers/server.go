package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/roomcraft/visionboard/internal/api"
	"github.com/roomcraft/visionboard/internal/auth"
	"github.com/roomcraft/visionboard/internal/catalog"
	"github.com/roomcraft/visionboard/internal/config"
	"github.com/roomcraft/visionboard/internal/logger"
	"github.com/roomcraft/visionboard/internal/metrics"
	"github.com/roomcraft/visionboard/internal/service"
	"github.com/roomcraft/visionboard/internal/subscription"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	publicLimiter := do.MustInvoke[*PublicLimiterHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	m := do.MustInvoke[*metrics.Manager](i)

	subs := do.MustInvoke[*subscription.Service](i)
	services := &api.Services{
		Boards:        do.MustInvoke[*service.BoardService](i),
		Shares:        do.MustInvoke[*service.ShareService](i),
		Catalog:       do.MustInvoke[*catalog.Catalog](i),
		Subscriptions: subs,
		Editor:        do.MustInvoke[*EditorManagerHandle](i).Manager,
	}

	handler := api.NewServer(services, tokens, sseHandle.Manager, m, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Canvas:         cfg.Canvas,
		MetricsPath:    cfg.Metrics.Path,
		PublicLimiter:  publicLimiter.KeyedRateLimiter,
		Checks: map[string]api.HealthCheck{
			"database": func(context.Context) error { return storeHandle.Ping() },
			"redis":    subs.Ping,
		},
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
