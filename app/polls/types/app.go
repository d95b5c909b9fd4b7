package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rankroom/rankroom/pkg/auth"
	"github.com/rankroom/rankroom/pkg/polls"
	"github.com/rankroom/rankroom/pkg/redis"
	"github.com/rankroom/rankroom/pkg/rooms"
)

// App carries every collaborator explicitly so any of them can be swapped in
// tests. Nothing here is a process-wide singleton.
type App struct {
	// Redis is the shared connection used by the store and the broadcaster.
	// Nil when the app is wired with in-memory substitutes.
	Redis *redis.Client

	// Store is the sole authority for poll document state.
	Store polls.Store

	// Service applies session rules on top of the store.
	Service *polls.Service

	// Issuer signs and verifies session tokens.
	Issuer *auth.Issuer

	// Broadcaster fans poll updates out to every group member.
	Broadcaster rooms.Broadcaster

	// Rooms indexes local connections by poll for the janitor.
	Rooms *rooms.Registry

	// Cron runs the expired-poll janitor.
	Cron *cron.Cron

	// Logger is used throughout the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the API and the poll socket.
	Server *http.Server
}

// Start runs the server until ctx is cancelled, then shuts down in order:
// stop accepting connections, stop the janitor, close Redis.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	if a.Cron != nil {
		a.Cron.Start()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	a.Logger.Info("Shutdown complete")
}
