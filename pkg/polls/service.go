package polls

import (
	"context"

	"github.com/rankroom/rankroom/pkg/ids"
	"go.uber.org/zap"
)

// CreateParams are the fields needed to open a new poll session.
type CreateParams struct {
	Topic         string
	VotesPerVoter int
	Name          string
}

// Service applies session rules on top of a Store. It is transport-agnostic:
// it knows nothing about connections or broadcast groups, only about legal
// transitions of the poll document.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService returns a Service backed by the given store.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create opens a new poll with the caller as admin. Returns the stored
// document and the generated admin user ID.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Poll, string, error) {
	if params.VotesPerVoter < 1 {
		return nil, "", InvalidInput("votesPerVoter must be at least 1")
	}
	if params.Topic == "" {
		return nil, "", InvalidInput("topic is required")
	}

	pollID := ids.NewPollID()
	adminID := ids.NewUserID()

	poll := &Poll{
		ID:            pollID,
		Topic:         params.Topic,
		VotesPerVoter: params.VotesPerVoter,
		AdminID:       adminID,
		Participants:  map[string]string{adminID: params.Name},
		Nominations:   map[string]Nomination{},
		Rankings:      map[string][]string{},
		HasStarted:    false,
	}

	s.logger.Debug("creating poll",
		zap.String("pollID", pollID),
		zap.String("topic", params.Topic),
		zap.Int("votesPerVoter", params.VotesPerVoter))

	if err := s.store.Create(ctx, poll); err != nil {
		return nil, "", err
	}

	return poll, adminID, nil
}

// Get returns the current document for pollID.
func (s *Service) Get(ctx context.Context, pollID string) (*Poll, error) {
	return s.store.Get(ctx, pollID)
}

// Join adds a new participant with a freshly generated user ID and returns
// the refreshed document alongside that ID.
func (s *Service) Join(ctx context.Context, pollID, name string) (*Poll, string, error) {
	userID := ids.NewUserID()

	poll, err := s.addParticipant(ctx, pollID, userID, name)
	if err != nil {
		return nil, "", err
	}
	return poll, userID, nil
}

// Rejoin re-applies an existing participant entry after a reconnect. It is
// idempotent: re-adding a present participant leaves the document unchanged.
func (s *Service) Rejoin(ctx context.Context, pollID, userID, name string) (*Poll, error) {
	return s.addParticipant(ctx, pollID, userID, name)
}

func (s *Service) addParticipant(ctx context.Context, pollID, userID, name string) (*Poll, error) {
	if err := s.store.SetField(ctx, pollID, FieldParticipant(userID), name); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, pollID)
}

// RemoveParticipant deletes a participant entry and returns the refreshed
// document. It returns (nil, nil) when nothing should be broadcast: once the
// poll has started the roster is frozen, and the admin entry is never
// removed so the admin-presence invariant holds for the document's lifetime.
func (s *Service) RemoveParticipant(ctx context.Context, pollID, userID string) (*Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, nil
	}
	if userID == poll.AdminID {
		return nil, nil
	}

	if err := s.store.DeleteField(ctx, pollID, FieldParticipant(userID)); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, pollID)
}

// AddNomination records a new option proposed by userID.
func (s *Service) AddNomination(ctx context.Context, pollID, userID, text string) (*Poll, error) {
	if text == "" {
		return nil, InvalidInput("nomination text is required")
	}

	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, InvalidState("nominations are closed once the poll has started")
	}

	nominationID := ids.NewNominationID()
	nomination := Nomination{UserID: userID, Text: text}

	if err := s.store.SetField(ctx, pollID, FieldNomination(nominationID), nomination); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, pollID)
}

// RemoveNomination deletes a nomination entry. Admin authorization is the
// caller's responsibility; state legality is enforced here.
func (s *Service) RemoveNomination(ctx context.Context, pollID, nominationID string) (*Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, InvalidState("nominations are closed once the poll has started")
	}

	if err := s.store.DeleteField(ctx, pollID, FieldNomination(nominationID)); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, pollID)
}

// Start flips hasStarted. The transition is one-way and idempotent: starting
// an already started poll returns the current document without error.
func (s *Service) Start(ctx context.Context, pollID string) (*Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return poll, nil
	}

	if err := s.store.SetField(ctx, pollID, FieldHasStarted(), true); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, pollID)
}

// SubmitRankings stores userID's ordered choices. A resubmission overwrites
// the previous one; the latest write per user wins.
func (s *Service) SubmitRankings(ctx context.Context, pollID, userID string, rankings []string) (*Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.HasStarted {
		return nil, InvalidState("participants cannot rank until the poll has started")
	}
	if len(rankings) > poll.VotesPerVoter {
		return nil, InvalidInput("rankings exceed the allowed votes per voter")
	}
	for _, nominationID := range rankings {
		if _, ok := poll.Nominations[nominationID]; !ok {
			return nil, InvalidInput("ranking references an unknown nomination")
		}
	}

	if err := s.store.SetField(ctx, pollID, FieldRankings(userID), rankings); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, pollID)
}
