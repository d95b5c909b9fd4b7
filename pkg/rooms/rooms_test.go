package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankroom/rankroom/pkg/polls"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "polls:ABC123:updated", Channel("ABC123"))
}

// TestCalculateNextBackoff tests the exponential backoff calculation with jitter
func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond,
			expectMax:    2200 * time.Millisecond,
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second,
			expectMax:    30 * time.Second,
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second,
			expectMax:    10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Run multiple times to account for randomness in jitter
			for i := 0; i < 10; i++ {
				result := calculateNextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin, "backoff should be >= minimum")
				assert.LessOrEqual(t, result, tt.expectMax, "backoff should be <= maximum")
			}
		})
	}
}

func TestMemoryBroadcaster(t *testing.T) {
	b := NewMemoryBroadcaster()
	doc := &polls.Poll{ID: "ABC123", Topic: "Lunch"}

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, "ABC123")
	other := b.Subscribe(context.Background(), "XYZ789")

	b.Publish(context.Background(), doc)

	select {
	case got := <-sub:
		assert.Equal(t, "Lunch", got.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected a delivery to the poll's group")
	}

	select {
	case got := <-other:
		t.Fatalf("unexpected delivery to another poll's group: %+v", got)
	default:
	}

	// cancelled subscribers leave the group and their channel closes
	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// publishing to a group with no remaining members is a no-op
	b.Publish(context.Background(), doc)
}

type fakeMember struct {
	closed chan string
}

func newFakeMember() *fakeMember {
	return &fakeMember{closed: make(chan string, 1)}
}

func (m *fakeMember) Close(reason string) {
	m.closed <- reason
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	alice := newFakeMember()
	bob := newFakeMember()

	r.Add("ABC123", alice)
	r.Add("ABC123", bob)
	assert.Equal(t, 2, r.Count("ABC123"))
	assert.Equal(t, 0, r.Count("XYZ789"))
	assert.ElementsMatch(t, []string{"ABC123"}, r.PollIDs())

	r.Remove("ABC123", bob)
	assert.Equal(t, 1, r.Count("ABC123"))

	r.CloseAll("ABC123", "poll expired")
	assert.Equal(t, 0, r.Count("ABC123"))
	assert.Empty(t, r.PollIDs())

	select {
	case reason := <-alice.closed:
		assert.Equal(t, "poll expired", reason)
	default:
		t.Fatal("expected the remaining member to be closed")
	}

	select {
	case <-bob.closed:
		t.Fatal("removed member must not be closed")
	default:
	}
}
