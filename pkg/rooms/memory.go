package rooms

import (
	"context"
	"sync"

	"github.com/rankroom/rankroom/pkg/polls"
)

// MemoryBroadcaster is an in-process Broadcaster. It backs single-binary
// test setups where a Redis round trip would add nothing.
type MemoryBroadcaster struct {
	mu     sync.RWMutex
	groups map[string]map[chan *polls.Poll]struct{}
}

// NewMemoryBroadcaster returns an empty in-process broadcaster.
func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{
		groups: make(map[string]map[chan *polls.Poll]struct{}),
	}
}

// Publish delivers the document to every subscriber of the poll's group.
// A subscriber that cannot keep up is skipped rather than blocked on.
func (b *MemoryBroadcaster) Publish(_ context.Context, poll *polls.Poll) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.groups[poll.ID] {
		select {
		case ch <- poll:
		default:
		}
	}
}

// Subscribe joins the poll's group until ctx is cancelled.
func (b *MemoryBroadcaster) Subscribe(ctx context.Context, pollID string) <-chan *polls.Poll {
	ch := make(chan *polls.Poll, 16)

	b.mu.Lock()
	if b.groups[pollID] == nil {
		b.groups[pollID] = make(map[chan *polls.Poll]struct{})
	}
	b.groups[pollID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		delete(b.groups[pollID], ch)
		if len(b.groups[pollID]) == 0 {
			delete(b.groups, pollID)
		}
		b.mu.Unlock()

		close(ch)
	}()

	return ch
}
