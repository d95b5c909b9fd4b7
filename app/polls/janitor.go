package polls

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/rankroom/rankroom/app/polls/types"
	pollsdomain "github.com/rankroom/rankroom/pkg/polls"
)

// Sweep closes the broadcast groups of polls whose document has expired out
// of the store. Group membership itself is derived from connection lifetime;
// the sweep only matters for connections idling past their poll's TTL.
// Liveness checks run in parallel on a bounded worker pool.
func Sweep(ctx context.Context, app *types.App) {
	pollIDs := app.Rooms.PollIDs()
	if len(pollIDs) == 0 {
		return
	}

	maxWorkers := 8
	queueSize := len(pollIDs)
	if queueSize < 16 {
		queueSize = 16
	}

	pool := pond.NewPool(maxWorkers, pond.WithQueueSize(queueSize))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, pollID := range pollIDs {
		pollID := pollID
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}

			_, err := app.Store.Get(groupCtx, pollID)
			if err == nil {
				return
			}

			var pe *pollsdomain.Error
			if errors.As(err, &pe) && pe.Kind == pollsdomain.KindNotFound {
				count := app.Rooms.Count(pollID)
				app.Logger.Info("closing group for expired poll",
					zap.String("pollID", pollID),
					zap.Int("connections", count))
				app.Rooms.CloseAll(pollID, "poll expired")
				return
			}

			app.Logger.Warn("janitor liveness check failed",
				zap.String("pollID", pollID),
				zap.Error(err))
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		app.Logger.Warn("janitor sweep incomplete", zap.Error(err))
	}
}
