package polls_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rankroom/rankroom/pkg/polls"
	"github.com/rankroom/rankroom/pkg/store"
)

func newService(t *testing.T) (*polls.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return polls.NewService(mem, zaptest.NewLogger(t)), mem
}

func createPoll(t *testing.T, svc *polls.Service) (*polls.Poll, string) {
	t.Helper()
	poll, adminID, err := svc.Create(context.Background(), polls.CreateParams{
		Topic:         "Lunch",
		VotesPerVoter: 2,
		Name:          "Alice",
	})
	require.NoError(t, err)
	return poll, adminID
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)

	poll, adminID, err := svc.Create(context.Background(), polls.CreateParams{
		Topic:         "Lunch",
		VotesPerVoter: 2,
		Name:          "Alice",
	})
	require.NoError(t, err)

	assert.False(t, poll.HasStarted)
	assert.Equal(t, "Lunch", poll.Topic)
	assert.Equal(t, 2, poll.VotesPerVoter)
	assert.Equal(t, adminID, poll.AdminID)
	assert.Equal(t, map[string]string{adminID: "Alice"}, poll.Participants)
	assert.Empty(t, poll.Nominations)
	assert.Empty(t, poll.Rankings)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name   string
		params polls.CreateParams
	}{
		{name: "zero votes per voter", params: polls.CreateParams{Topic: "Lunch", VotesPerVoter: 0, Name: "Alice"}},
		{name: "missing topic", params: polls.CreateParams{VotesPerVoter: 2, Name: "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Create(context.Background(), tt.params)
			require.Error(t, err)
			assert.Equal(t, polls.KindInvalidInput, polls.KindOf(err))
		})
	}
}

func TestJoin(t *testing.T) {
	svc, _ := newService(t)
	poll, adminID := createPoll(t, svc)

	joined, bobID, err := svc.Join(context.Background(), poll.ID, "Bob")
	require.NoError(t, err)

	assert.NotEqual(t, adminID, bobID)
	assert.Len(t, joined.Participants, 2)
	assert.Equal(t, "Bob", joined.Participants[bobID])
}

func TestJoinUnknownPoll(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.Join(context.Background(), "NOPE42", "Bob")
	require.Error(t, err)
	assert.Equal(t, polls.KindNotFound, polls.KindOf(err))
}

func TestRejoinIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	poll, _ := createPoll(t, svc)

	_, bobID, err := svc.Join(context.Background(), poll.ID, "Bob")
	require.NoError(t, err)

	first, err := svc.Rejoin(context.Background(), poll.ID, bobID, "Bob")
	require.NoError(t, err)
	second, err := svc.Rejoin(context.Background(), poll.ID, bobID, "Bob")
	require.NoError(t, err)

	assert.Equal(t, first.Participants, second.Participants)
	assert.Len(t, second.Participants, 2)
}

func TestRemoveParticipant(t *testing.T) {
	t.Run("removes a regular participant", func(t *testing.T) {
		svc, _ := newService(t)
		poll, _ := createPoll(t, svc)
		_, bobID, err := svc.Join(context.Background(), poll.ID, "Bob")
		require.NoError(t, err)

		updated, err := svc.RemoveParticipant(context.Background(), poll.ID, bobID)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.NotContains(t, updated.Participants, bobID)
	})

	t.Run("never removes the admin", func(t *testing.T) {
		svc, _ := newService(t)
		poll, adminID := createPoll(t, svc)

		updated, err := svc.RemoveParticipant(context.Background(), poll.ID, adminID)
		require.NoError(t, err)
		assert.Nil(t, updated)

		current, err := svc.Get(context.Background(), poll.ID)
		require.NoError(t, err)
		assert.Contains(t, current.Participants, adminID)
	})

	t.Run("noop once the poll has started", func(t *testing.T) {
		svc, _ := newService(t)
		poll, _ := createPoll(t, svc)
		_, bobID, err := svc.Join(context.Background(), poll.ID, "Bob")
		require.NoError(t, err)
		_, err = svc.Start(context.Background(), poll.ID)
		require.NoError(t, err)

		updated, err := svc.RemoveParticipant(context.Background(), poll.ID, bobID)
		require.NoError(t, err)
		assert.Nil(t, updated)

		current, err := svc.Get(context.Background(), poll.ID)
		require.NoError(t, err)
		assert.Contains(t, current.Participants, bobID)
	})
}

func TestAddNomination(t *testing.T) {
	svc, _ := newService(t)
	poll, adminID := createPoll(t, svc)

	updated, err := svc.AddNomination(context.Background(), poll.ID, adminID, "Pizza")
	require.NoError(t, err)
	require.Len(t, updated.Nominations, 1)
	for _, nomination := range updated.Nominations {
		assert.Equal(t, adminID, nomination.UserID)
		assert.Equal(t, "Pizza", nomination.Text)
	}
}

func TestAddNominationRejections(t *testing.T) {
	svc, _ := newService(t)
	poll, adminID := createPoll(t, svc)

	_, err := svc.AddNomination(context.Background(), poll.ID, adminID, "")
	assert.Equal(t, polls.KindInvalidInput, polls.KindOf(err))

	_, err = svc.Start(context.Background(), poll.ID)
	require.NoError(t, err)

	_, err = svc.AddNomination(context.Background(), poll.ID, adminID, "Tacos")
	assert.Equal(t, polls.KindInvalidState, polls.KindOf(err))
}

func TestRemoveNomination(t *testing.T) {
	svc, _ := newService(t)
	poll, adminID := createPoll(t, svc)

	updated, err := svc.AddNomination(context.Background(), poll.ID, adminID, "Pizza")
	require.NoError(t, err)
	var nominationID string
	for id := range updated.Nominations {
		nominationID = id
	}

	updated, err = svc.RemoveNomination(context.Background(), poll.ID, nominationID)
	require.NoError(t, err)
	assert.Empty(t, updated.Nominations)

	// removing an absent nomination is idempotent
	updated, err = svc.RemoveNomination(context.Background(), poll.ID, nominationID)
	require.NoError(t, err)
	assert.Empty(t, updated.Nominations)

	_, err = svc.Start(context.Background(), poll.ID)
	require.NoError(t, err)
	_, err = svc.RemoveNomination(context.Background(), poll.ID, nominationID)
	assert.Equal(t, polls.KindInvalidState, polls.KindOf(err))
}

func TestStartIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	poll, _ := createPoll(t, svc)

	first, err := svc.Start(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.True(t, first.HasStarted)

	second, err := svc.Start(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.True(t, second.HasStarted)
}

func TestSubmitRankings(t *testing.T) {
	setup := func(t *testing.T) (*polls.Service, *polls.Poll, string, []string) {
		svc, _ := newService(t)
		poll, adminID := createPoll(t, svc)

		updated, err := svc.AddNomination(context.Background(), poll.ID, adminID, "Pizza")
		require.NoError(t, err)
		updated, err = svc.AddNomination(context.Background(), poll.ID, adminID, "Tacos")
		require.NoError(t, err)

		var nominationIDs []string
		for id := range updated.Nominations {
			nominationIDs = append(nominationIDs, id)
		}
		return svc, poll, adminID, nominationIDs
	}

	t.Run("rejected before the poll starts", func(t *testing.T) {
		svc, poll, adminID, nominationIDs := setup(t)

		_, err := svc.SubmitRankings(context.Background(), poll.ID, adminID, nominationIDs[:1])
		assert.Equal(t, polls.KindInvalidState, polls.KindOf(err))
	})

	t.Run("accepted and overwritten by resubmission", func(t *testing.T) {
		svc, poll, adminID, nominationIDs := setup(t)
		_, err := svc.Start(context.Background(), poll.ID)
		require.NoError(t, err)

		updated, err := svc.SubmitRankings(context.Background(), poll.ID, adminID, nominationIDs)
		require.NoError(t, err)
		assert.Equal(t, nominationIDs, updated.Rankings[adminID])

		updated, err = svc.SubmitRankings(context.Background(), poll.ID, adminID, nominationIDs[:1])
		require.NoError(t, err)
		assert.Equal(t, nominationIDs[:1], updated.Rankings[adminID])
	})

	t.Run("rejected when exceeding votes per voter", func(t *testing.T) {
		svc, poll, adminID, nominationIDs := setup(t)
		_, err := svc.Start(context.Background(), poll.ID)
		require.NoError(t, err)

		tooMany := append([]string{}, nominationIDs...)
		tooMany = append(tooMany, nominationIDs[0])
		_, err = svc.SubmitRankings(context.Background(), poll.ID, adminID, tooMany)
		assert.Equal(t, polls.KindInvalidInput, polls.KindOf(err))

		current, err := svc.Get(context.Background(), poll.ID)
		require.NoError(t, err)
		assert.NotContains(t, current.Rankings, adminID)
	})

	t.Run("rejected on unknown nomination", func(t *testing.T) {
		svc, poll, adminID, _ := setup(t)
		_, err := svc.Start(context.Background(), poll.ID)
		require.NoError(t, err)

		_, err = svc.SubmitRankings(context.Background(), poll.ID, adminID, []string{"missing1"})
		assert.Equal(t, polls.KindInvalidInput, polls.KindOf(err))

		current, err := svc.Get(context.Background(), poll.ID)
		require.NoError(t, err)
		assert.NotContains(t, current.Rankings, adminID)
	})
}

// Concurrent nominations from independent connections must all land: the
// store contract is one atomic path-write per nomination, never a
// read-modify-write of the whole document.
func TestConcurrentNominationsAreNotLost(t *testing.T) {
	svc, _ := newService(t)
	poll, adminID := createPoll(t, svc)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.AddNomination(context.Background(), poll.ID, adminID, "option")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	current, err := svc.Get(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Len(t, current.Nominations, n)
}
