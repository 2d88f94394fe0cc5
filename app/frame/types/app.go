package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/gate"
	"github.com/Jaberkh/Nut-test/pkg/ratelimit"
	"github.com/Jaberkh/Nut-test/pkg/refresh"
	redisx "github.com/Jaberkh/Nut-test/pkg/redis"
	"github.com/Jaberkh/Nut-test/pkg/state"
	"github.com/Jaberkh/Nut-test/pkg/stats"
)

type App struct {
	// Persisted dataset + overage ledger
	Store *state.Store

	// Per-request admission control
	Limiter *ratelimit.Limiter
	Gate    *gate.Gate

	// Per-request record assembly
	Stats *stats.Service

	// Background dataset refresh
	Scheduler *refresh.Scheduler

	// Redis Client (best-effort refresh events, may be nil)
	RedisClient *redisx.Client

	// Base URL embedded in share links
	FrameBaseURL string

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the application and blocks until the context is cancelled,
// then shuts everything down in order: tick first, in-flight cycle allowed
// to finish, server drained last.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	a.Logger.Info("Stopping refresh scheduler")
	a.Scheduler.Stop()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	a.Logger.Info("shutdown complete")
}
