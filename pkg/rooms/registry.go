package rooms

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// Member is a live connection registered to a poll's group. Closing a
// member terminates its connection.
type Member interface {
	Close(reason string)
}

// Registry tracks which local connections belong to which poll. It is a
// derived, ephemeral index over connection lifetimes; the janitor walks it
// to shut down groups whose poll document has expired.
type Registry struct {
	rooms *xsync.Map[string, *xsync.Map[Member, struct{}]]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: xsync.NewMap[string, *xsync.Map[Member, struct{}]]()}
}

// Add registers a member under a poll.
func (r *Registry) Add(pollID string, m Member) {
	group, _ := r.rooms.LoadOrStore(pollID, xsync.NewMap[Member, struct{}]())
	group.Store(m, struct{}{})
}

// Remove drops a member; the group itself is dropped when it empties.
func (r *Registry) Remove(pollID string, m Member) {
	group, ok := r.rooms.Load(pollID)
	if !ok {
		return
	}
	group.Delete(m)
	if group.Size() == 0 {
		r.rooms.Delete(pollID)
	}
}

// Count returns the number of local members in a poll's group.
func (r *Registry) Count(pollID string) int {
	group, ok := r.rooms.Load(pollID)
	if !ok {
		return 0
	}
	return group.Size()
}

// PollIDs returns the polls that currently have local members.
func (r *Registry) PollIDs() []string {
	var out []string
	r.rooms.Range(func(pollID string, _ *xsync.Map[Member, struct{}]) bool {
		out = append(out, pollID)
		return true
	})
	return out
}

// CloseAll closes every member of a poll's group and drops the group.
func (r *Registry) CloseAll(pollID, reason string) {
	group, ok := r.rooms.LoadAndDelete(pollID)
	if !ok {
		return
	}
	group.Range(func(m Member, _ struct{}) bool {
		m.Close(reason)
		return true
	})
}
