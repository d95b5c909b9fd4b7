package polls

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rankroom/rankroom/app/polls/types"
	"github.com/rankroom/rankroom/pkg/auth"
	"github.com/rankroom/rankroom/pkg/logging"
	pollsdomain "github.com/rankroom/rankroom/pkg/polls"
	"github.com/rankroom/rankroom/pkg/redis"
	"github.com/rankroom/rankroom/pkg/retry"
	"github.com/rankroom/rankroom/pkg/rooms"
	"github.com/rankroom/rankroom/pkg/store"
	"github.com/rankroom/rankroom/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	secret := utils.Env("JWT_SECRET", "")
	if secret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	ttl := utils.EnvSeconds("POLL_DURATION", 2*time.Hour)

	var redisClient *redis.Client
	retryErr := retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "redis connect", func() error {
		var connErr error
		redisClient, connErr = redis.NewClient(ctx, logger)
		return connErr
	})
	if retryErr != nil {
		logger.Fatal("Unable to connect to Redis", zap.Error(retryErr))
	}

	pollStore := store.New(redisClient, ttl, logger)

	app := &types.App{
		Redis:       redisClient,
		Store:       pollStore,
		Service:     pollsdomain.NewService(pollStore, logger),
		Issuer:      auth.NewIssuer([]byte(secret), ttl),
		Broadcaster: rooms.NewRedisBroadcaster(redisClient, logger),
		Rooms:       rooms.NewRegistry(),
		Logger:      logger,
	}

	if err := SetupJanitor(ctx, app); err != nil {
		logger.Fatal("Unable to schedule janitor", zap.Error(err))
	}

	return app
}

// SetupJanitor schedules the expired-poll sweep.
func SetupJanitor(ctx context.Context, app *types.App) error {
	app.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	spec := utils.Env("JANITOR_CRON", "0 * * * * *")
	_, err := app.Cron.AddFunc(spec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		Sweep(rctx, app)
	})
	return err
}
