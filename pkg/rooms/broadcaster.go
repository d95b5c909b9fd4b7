// Package rooms provides poll broadcast groups: fan-out of updated poll
// documents to every live connection of a session, plus a registry of local
// connections used to sweep groups whose poll has expired.
//
// Group membership is derived entirely from connection lifetime. Nothing
// here is persisted.
package rooms

import (
	"context"

	"github.com/rankroom/rankroom/pkg/polls"
)

// Broadcaster fans poll updates out to every subscriber of a poll's group.
type Broadcaster interface {
	// Publish sends the document to every current subscriber of the poll's
	// group. Publishing to an empty group is a no-op. Best-effort: a failed
	// publish never fails the mutation that produced the document.
	Publish(ctx context.Context, poll *polls.Poll)

	// Subscribe joins the poll's group and returns a channel of updates.
	// The channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context, pollID string) <-chan *polls.Poll
}
