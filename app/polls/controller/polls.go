package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rankroom/rankroom/pkg/polls"
)

// HandleCreatePoll opens a new poll and returns it with the admin's access token.
func (c *Controller) HandleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Topic         string `json:"topic"`
		VotesPerVoter int    `json:"votesPerVoter"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}

	poll, adminID, err := c.App.Service.Create(r.Context(), polls.CreateParams{
		Topic:         in.Topic,
		VotesPerVoter: in.VotesPerVoter,
		Name:          in.Name,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}

	token, err := c.App.Issuer.Issue(poll.ID, adminID, in.Name)
	if err != nil {
		c.writeError(w, polls.StorageError("failed to issue token", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"poll":        poll,
		"accessToken": token,
	})
}

// HandleJoinPoll adds a participant to an existing poll and returns their token.
func (c *Controller) HandleJoinPoll(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PollID string `json:"pollID"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}

	poll, userID, err := c.App.Service.Join(r.Context(), in.PollID, in.Name)
	if err != nil {
		c.writeError(w, err)
		return
	}

	token, err := c.App.Issuer.Issue(poll.ID, userID, in.Name)
	if err != nil {
		c.writeError(w, polls.StorageError("failed to issue token", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"poll":        poll,
		"accessToken": token,
	})
}

// HandleRejoinPoll re-applies the participant entry for a previously issued
// token. Requires RequireAuth.
func (c *Controller) HandleRejoinPoll(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r)
	if claims == nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	poll, err := c.App.Service.Rejoin(r.Context(), claims.PollID, claims.UserID, claims.Name)
	if err != nil {
		c.writeError(w, err)
		return
	}

	_ = json.NewEncoder(w).Encode(poll)
}

// HandleGetPoll returns the current document for a poll ID.
func (c *Controller) HandleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := mux.Vars(r)["id"]

	poll, err := c.App.Service.Get(r.Context(), pollID)
	if err != nil {
		c.writeError(w, err)
		return
	}

	_ = json.NewEncoder(w).Encode(poll)
}

func (c *Controller) writeError(w http.ResponseWriter, err error) {
	kind := polls.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case polls.KindUnauthorized:
		status = http.StatusUnauthorized
	case polls.KindNotFound:
		status = http.StatusNotFound
	case polls.KindInvalidState, polls.KindInvalidInput:
		status = http.StatusBadRequest
	case polls.KindStorage:
		c.App.Logger.Error("storage failure", zap.Error(err))
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":  string(kind),
		"error": polls.MessageOf(err),
	})
}
