package store

import (
	"context"
	"sync"

	"github.com/rankroom/rankroom/pkg/polls"
)

// Memory is an in-process polls.Store. It honors the same contract as the
// Redis store: every SetField/DeleteField is atomic per field, so concurrent
// writers to disjoint fields never lose updates. Used by tests and
// single-binary setups; documents only expire when Expire is called.
type Memory struct {
	mu   sync.Mutex
	docs map[string]*polls.Poll
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*polls.Poll)}
}

// Create stores a copy of the document.
func (m *Memory) Create(_ context.Context, poll *polls.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[poll.ID] = clone(poll)
	return nil
}

// Get returns a snapshot of the current document.
func (m *Memory) Get(_ context.Context, pollID string) (*polls.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[pollID]
	if !ok {
		return nil, polls.NotFound("poll does not exist")
	}
	return clone(doc), nil
}

// SetField writes one field under the store lock.
func (m *Memory) SetField(_ context.Context, pollID string, field polls.Field, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[pollID]
	if !ok {
		return polls.NotFound("poll does not exist")
	}

	segments := field.Segments()
	switch segments[0] {
	case "participants":
		name, ok := value.(string)
		if !ok {
			return polls.StorageError("participant value must be a string", nil)
		}
		doc.Participants[segments[1]] = name
	case "nominations":
		nomination, ok := value.(polls.Nomination)
		if !ok {
			return polls.StorageError("nomination value must be a Nomination", nil)
		}
		doc.Nominations[segments[1]] = nomination
	case "rankings":
		rankings, ok := value.([]string)
		if !ok {
			return polls.StorageError("rankings value must be a string slice", nil)
		}
		doc.Rankings[segments[1]] = append([]string(nil), rankings...)
	case "hasStarted":
		started, ok := value.(bool)
		if !ok {
			return polls.StorageError("hasStarted value must be a bool", nil)
		}
		doc.HasStarted = started
	default:
		return polls.StorageError("unknown field selector", nil)
	}
	return nil
}

// DeleteField removes one field; absence is not an error.
func (m *Memory) DeleteField(_ context.Context, pollID string, field polls.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[pollID]
	if !ok {
		return nil
	}

	segments := field.Segments()
	switch segments[0] {
	case "participants":
		delete(doc.Participants, segments[1])
	case "nominations":
		delete(doc.Nominations, segments[1])
	case "rankings":
		delete(doc.Rankings, segments[1])
	}
	return nil
}

// Expire discards a document, simulating TTL elapse.
func (m *Memory) Expire(pollID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, pollID)
}

func clone(p *polls.Poll) *polls.Poll {
	out := *p
	out.Participants = make(map[string]string, len(p.Participants))
	for k, v := range p.Participants {
		out.Participants[k] = v
	}
	out.Nominations = make(map[string]polls.Nomination, len(p.Nominations))
	for k, v := range p.Nominations {
		out.Nominations[k] = v
	}
	out.Rankings = make(map[string][]string, len(p.Rankings))
	for k, v := range p.Rankings {
		out.Rankings[k] = append([]string(nil), v...)
	}
	return &out
}
