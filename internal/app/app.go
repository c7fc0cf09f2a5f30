package app

import (
	"context"
	"net/http"
	"time"

	"cms-admin-service/internal/config"
)

// App owns the HTTP server lifecycle. Infra handles (DB, Redis) stay
// behind the cleanup closure so Shutdown is the single teardown path.
type App struct {
	httpServer *http.Server
	cleanup    func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	router, cleanup, err := setupHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppPort,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		cleanup: cleanup,
	}, nil
}

// Run blocks until the server stops; it returns http.ErrServerClosed
// after a graceful Shutdown.
func (a *App) Run() error {
	return a.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx, then releases the
// infra handles.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}
