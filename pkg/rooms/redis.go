package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/rankroom/rankroom/pkg/polls"
	"github.com/rankroom/rankroom/pkg/redis"
)

// RedisBroadcaster implements Broadcaster on Redis Pub/Sub. Each poll's
// group is one channel; subscribers re-establish their subscription with
// exponential backoff if Redis drops.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster returns a Broadcaster backed by the given client.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: logger}
}

// Channel returns the Pub/Sub channel name for a poll's group.
func Channel(pollID string) string {
	return fmt.Sprintf("polls:%s:updated", pollID)
}

// Publish marshals the document and publishes it to the poll's channel.
func (b *RedisBroadcaster) Publish(ctx context.Context, poll *polls.Poll) {
	raw, err := json.Marshal(poll)
	if err != nil {
		b.logger.Error("failed to encode poll for broadcast",
			zap.String("pollID", poll.ID),
			zap.Error(err))
		return
	}
	b.client.Publish(ctx, Channel(poll.ID), raw)
}

// Subscribe joins the poll's channel. The returned stream survives Redis
// outages: the subscription is re-established with backoff until ctx is
// cancelled, at which point the channel is closed.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, pollID string) <-chan *polls.Poll {
	out := make(chan *polls.Poll, 16)

	go func() {
		defer close(out)
		b.subscribeLoop(ctx, pollID, out)
	}()

	return out
}

func (b *RedisBroadcaster) subscribeLoop(ctx context.Context, pollID string, out chan<- *polls.Poll) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	channel := Channel(pollID)
	backoff := initialBackoff
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		attempt++

		err := b.attemptSubscription(ctx, channel, out)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			b.logger.Warn("poll subscription failed, will retry",
				zap.String("channel", channel),
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
		} else {
			b.logger.Warn("poll subscription closed, will retry",
				zap.String("channel", channel),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff = calculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

// attemptSubscription establishes a single subscription and forwards updates
// until it fails or ctx is cancelled. Returns an error if setup fails, nil
// if the established subscription's channel closed.
func (b *RedisBroadcaster) attemptSubscription(ctx context.Context, channel string, out chan<- *polls.Poll) error {
	pubsub := b.client.Subscribe(ctx, channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			b.logger.Error("error closing poll subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()

	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm subscription: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var poll polls.Poll
			if err := json.Unmarshal([]byte(msg.Payload), &poll); err != nil {
				b.logger.Error("failed to parse broadcast payload",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}

			select {
			case out <- &poll:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// calculateNextBackoff calculates the next backoff duration with exponential
// growth and jitter so concurrent subscribers never retry in lockstep.
func calculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}

	return nextWithJitter
}
