package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankroom/rankroom/pkg/ids"
	"github.com/rankroom/rankroom/pkg/polls"
)

func postJSON(t *testing.T, srv *httptest.Server, path string, body any, header http.Header) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type sessionResponse struct {
	Poll        polls.Poll `json:"poll"`
	AccessToken string     `json:"accessToken"`
}

func TestHandleCreatePoll(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	resp := postJSON(t, srv, "/polls", map[string]any{
		"topic": "Lunch", "votesPerVoter": 2, "name": "Alice",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out sessionResponse
	decodeBody(t, resp, &out)
	assert.Len(t, out.Poll.ID, ids.PollIDLength)
	assert.Equal(t, "Lunch", out.Poll.Topic)
	assert.Equal(t, 2, out.Poll.VotesPerVoter)
	assert.Equal(t, map[string]string{out.Poll.AdminID: "Alice"}, out.Poll.Participants)

	claims, err := app.Issuer.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, out.Poll.ID, claims.PollID)
	assert.Equal(t, out.Poll.AdminID, claims.UserID)
	assert.Equal(t, "Alice", claims.Name)
}

func TestHandleCreatePollRejectsBadInput(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	resp := postJSON(t, srv, "/polls", map[string]any{
		"topic": "Lunch", "votesPerVoter": 0, "name": "Alice",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv, "/polls", map[string]any{
		"votesPerVoter": 2, "name": "Alice",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleJoinPoll(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	poll, _, err := app.Service.Create(context.Background(), polls.CreateParams{
		Topic: "Lunch", VotesPerVoter: 2, Name: "Alice",
	})
	require.NoError(t, err)

	resp := postJSON(t, srv, "/polls/join", map[string]any{
		"pollID": poll.ID, "name": "Bob",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out sessionResponse
	decodeBody(t, resp, &out)
	assert.Len(t, out.Poll.Participants, 2)
	assert.Contains(t, out.Poll.Participants, poll.AdminID)

	claims, err := app.Issuer.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, poll.ID, claims.PollID)
	assert.NotEqual(t, poll.AdminID, claims.UserID)
}

func TestHandleJoinPollUnknownPoll(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	resp := postJSON(t, srv, "/polls/join", map[string]any{
		"pollID": "ZZZZZZ", "name": "Bob",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, string(polls.KindNotFound), out["type"])
}

func TestHandleRejoinPoll(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	poll, adminID, err := app.Service.Create(context.Background(), polls.CreateParams{
		Topic: "Lunch", VotesPerVoter: 2, Name: "Alice",
	})
	require.NoError(t, err)
	token, err := app.Issuer.Issue(poll.ID, adminID, "Alice")
	require.NoError(t, err)

	t.Run("with bearer token", func(t *testing.T) {
		resp := postJSON(t, srv, "/polls/rejoin", map[string]any{}, http.Header{
			"Authorization": []string{"Bearer " + token},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out polls.Poll
		decodeBody(t, resp, &out)
		assert.Equal(t, poll.ID, out.ID)
		assert.Contains(t, out.Participants, adminID)
	})

	t.Run("without token", func(t *testing.T) {
		resp := postJSON(t, srv, "/polls/rejoin", map[string]any{}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("with mangled token", func(t *testing.T) {
		resp := postJSON(t, srv, "/polls/rejoin", map[string]any{}, http.Header{
			"Authorization": []string{"Bearer not-a-token"},
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHandleGetPoll(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	poll, _, err := app.Service.Create(context.Background(), polls.CreateParams{
		Topic: "Lunch", VotesPerVoter: 2, Name: "Alice",
	})
	require.NoError(t, err)

	resp, err := srv.Client().Get(srv.URL + "/polls/" + poll.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out polls.Poll
	decodeBody(t, resp, &out)
	assert.Equal(t, poll.ID, out.ID)

	missing, err := srv.Client().Get(srv.URL + "/polls/ZZZZZZ")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	app, _ := newTestApp(t)
	srv := newTestServer(t, app)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
